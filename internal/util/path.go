package util

import (
	"strings"
	"time"
)

// RestorePointName builds the "<tag>.<YYYYMMDD>.<HHMMSS>" folder name for a run that
// started at when (local time, as the operator sees it).
func RestorePointName(tag string, when time.Time) string {
	return strings.Join([]string{tag, when.Format("20060102"), when.Format("150405")}, ".")
}
