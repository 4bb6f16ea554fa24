package restore

import (
	"errors"
	"fmt"
)

// ErrPollTimeout is returned when an import job is still running after the poll timeout.
var ErrPollTimeout = errors.New("import job did not finish before the poll timeout")

// FolderCreationError aborts a run: the hierarchy is left as far as it got.
type FolderCreationError struct {
	Path string
	Err  error
}

func (e *FolderCreationError) Error() string {
	return fmt.Sprintf("create folder %q: %v", e.Path, e.Err)
}

func (e *FolderCreationError) Unwrap() error { return e.Err }

// UnresolvedParentError means no restored folder matches a content item's directory.
type UnresolvedParentError struct {
	Path string
}

func (e *UnresolvedParentError) Error() string {
	return fmt.Sprintf("no restored folder for %q", e.Path)
}

// PayloadMissingError means the backup store holds no document for an item.
type PayloadMissingError struct {
	BackupPath string
	Err        error
}

func (e *PayloadMissingError) Error() string {
	return fmt.Sprintf("payload missing for %s", e.BackupPath)
}

func (e *PayloadMissingError) Unwrap() error { return e.Err }

// ImportJobFailedError reports an import job that ended in a non-success state.
type ImportJobFailedError struct {
	JobID   string
	Status  string
	Message string
}

func (e *ImportJobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("import job %s finished with status %s", e.JobID, e.Status)
	}
	return fmt.Sprintf("import job %s finished with status %s: %s", e.JobID, e.Status, e.Message)
}
