package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowjay/content-restore/internal/config"
	"github.com/rowjay/content-restore/internal/contentapi"
	"github.com/rowjay/content-restore/internal/manifest"
	"github.com/rowjay/content-restore/internal/restore"
	"github.com/rowjay/content-restore/internal/storage"
)

func sampleRecord() *restore.Record {
	r := restore.NewRecord()
	r.Add(restore.Entry{ID: "R", ParentID: "P", Type: manifest.TypeFolder, Name: "sumologic-restore.20240101.101500", Path: "/sumologic-restore.20240101.101500", BackupName: "R", BackupPath: "R"})
	r.Add(restore.Entry{ID: "A", ParentID: "R", Type: manifest.TypeFolder, Name: "Apps", Path: "/sumologic-restore.20240101.101500/Apps", BackupName: "F1", BackupPath: "F1"})
	r.Add(restore.Entry{ID: "N1", ParentID: "A", Type: "Search", Name: "Errors, 5xx", Path: "/sumologic-restore.20240101.101500/Apps/Errors, 5xx", BackupName: "C1", BackupPath: "F1/C1"})
	return r
}

func sampleOutcomes() []restore.Outcome {
	return []restore.Outcome{
		{Row: manifest.Row{UID: "C1", Type: "Search", Name: "Errors, 5xx", Path: "/Apps/Errors, 5xx", BackupPath: "F1/C1"}, ParentID: "A", JobID: "J1", Status: contentapi.StatusSuccess},
		{Row: manifest.Row{UID: "C2", Type: "Search", Name: "Latency", Path: "/Apps/Latency", BackupPath: "F1/C2"}, ParentID: "A", JobID: "J2", Status: contentapi.StatusFailed,
			Err: &restore.ImportJobFailedError{JobID: "J2", Status: contentapi.StatusFailed}},
		{Row: manifest.Row{UID: "C3", Type: "Dashboard", Name: "Lost", Path: "/Gone/Lost", BackupPath: "Z/C3"},
			Err: &restore.UnresolvedParentError{Path: "Gone"}},
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleRecord()))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 4)
	assert.Equal(t, "uid_myself,uid_parent,my_type,my_name,my_path,backup_oid,backup_path", strings.Join(rows[0], ","))
	assert.Equal(t, []string{"A", "R", "Folder", "Apps", "/sumologic-restore.20240101.101500/Apps", "F1", "F1"}, rows[2])
	assert.Equal(t, "Errors, 5xx", rows[3][3])
}

func TestWriteFailures(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteFailures(&buf, sampleOutcomes())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, FailedHeader, rows[0])
	assert.Equal(t, []string{"C2", "Search", "Latency", "/Apps/Latency", "F1/C2", "A", "J2", "Failed"}, rows[1][:8])
	assert.Equal(t, StatusNotStarted, rows[2][7])
	assert.Contains(t, rows[2][8], "Gone")
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")

	files, err := WriteFiles(dir, "sumologic-restore.20240101.101500", sampleRecord(), sampleOutcomes()[:1])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sumologic-restore.20240101.101500.csv"), files.Audit)
	assert.Empty(t, files.Failed)
	assert.FileExists(t, files.Audit)

	files, err = WriteFiles(dir, "sumologic-restore.20240101.101500", sampleRecord(), sampleOutcomes())
	require.NoError(t, err)
	assert.FileExists(t, files.Failed)
}

func TestUploadAndPrune(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := storage.NewLocal(root)
	dir := t.TempDir()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	runs := []string{"r.20240101.000000", "r.20240201.000000", "r.20240301.000000"}
	for i, name := range runs {
		files, err := WriteFiles(dir, name, sampleRecord(), sampleOutcomes())
		require.NoError(t, err)
		keys, err := Upload(ctx, store, "/restores/", files)
		require.NoError(t, err)
		require.Equal(t, []string{"restores/" + name + ".csv", "restores/" + name + ".failed.csv"}, keys)

		stamp := now.AddDate(0, 0, -30*(len(runs)-i))
		for _, key := range keys {
			require.NoError(t, os.Chtimes(filepath.Join(root, key), stamp, stamp))
		}
	}

	deleted, err := Prune(ctx, store, "restores", config.Retention{}, now)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	deleted, err = Prune(ctx, store, "restores", config.Retention{KeepLast: 1, KeepDays: 65}, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"restores/r.20240101.000000.csv", "restores/r.20240101.000000.failed.csv"}, deleted)

	_, err = store.Stat(ctx, "restores/r.20240101.000000.csv")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	ok, err := store.Exists(ctx, "restores/r.20240201.000000.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}
