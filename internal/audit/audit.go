// Package audit writes the CSV records a restore leaves behind: every node of the
// restored tree, and every content item that could not be imported.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rowjay/content-restore/internal/restore"
)

var (
	Header       = []string{"uid_myself", "uid_parent", "my_type", "my_name", "my_path", "backup_oid", "backup_path"}
	FailedHeader = []string{"uid_myself", "my_type", "my_name", "my_path", "backup_path", "parent_id", "job_id", "status", "error"}
)

// StatusNotStarted marks failures that never reached the import endpoint.
const StatusNotStarted = "NotStarted"

// Files are the local paths written for one run. Failed is empty when nothing failed.
type Files struct {
	Audit  string
	Failed string
}

func FileName(run string) string       { return run + ".csv" }
func FailedFileName(run string) string { return run + ".failed.csv" }

// Write emits the restored tree in visit order.
func Write(w io.Writer, record *restore.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range record.Entries() {
		if err := cw.Write([]string{e.ID, e.ParentID, e.Type, e.Name, e.Path, e.BackupName, e.BackupPath}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFailures emits one row per failed outcome and returns how many were written.
func WriteFailures(w io.Writer, outcomes []restore.Outcome) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(FailedHeader); err != nil {
		return 0, err
	}
	n := 0
	for _, out := range outcomes {
		if out.OK() {
			continue
		}
		status := out.Status
		if status == "" {
			status = StatusNotStarted
		}
		row := out.Row
		if err := cw.Write([]string{row.UID, row.Type, row.Name, row.Path, row.BackupPath, out.ParentID, out.JobID, status, out.Err.Error()}); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

// WriteFiles writes <run>.csv and, when any item failed, <run>.failed.csv into dir.
func WriteFiles(dir, run string, record *restore.Record, outcomes []restore.Outcome) (Files, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Files{}, fmt.Errorf("create audit dir: %w", err)
	}
	var files Files

	files.Audit = filepath.Join(dir, FileName(run))
	if err := writeFile(files.Audit, func(w io.Writer) error { return Write(w, record) }); err != nil {
		return Files{}, err
	}

	if failures(outcomes) == 0 {
		return files, nil
	}
	files.Failed = filepath.Join(dir, FailedFileName(run))
	err := writeFile(files.Failed, func(w io.Writer) error {
		_, err := WriteFailures(w, outcomes)
		return err
	})
	if err != nil {
		return files, err
	}
	return files, nil
}

func failures(outcomes []restore.Outcome) int {
	n := 0
	for _, out := range outcomes {
		if !out.OK() {
			n++
		}
	}
	return n
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
