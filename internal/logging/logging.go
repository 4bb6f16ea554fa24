package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Configure builds a zerolog logger on stdout from config values.
func Configure(level, format string) zerolog.Logger {
	return New(os.Stdout, level, format)
}

// New builds a logger writing to out. Unknown levels fall back to info.
func New(out io.Writer, level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Level maps the -v verbosity of the restore command onto a log level. Verbosity 9 and
// up traces every poll, 7 and up logs each folder and destination, 4 and up logs run
// steps. Lower values keep the configured level.
func Level(configured string, verbosity int) string {
	switch {
	case verbosity >= 9:
		return zerolog.TraceLevel.String()
	case verbosity >= 7:
		return zerolog.DebugLevel.String()
	case verbosity >= 4:
		return zerolog.InfoLevel.String()
	default:
		return configured
	}
}
