package restore

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowjay/content-restore/internal/contentapi"
	"github.com/rowjay/content-restore/internal/manifest"
)

func TestWalkVisitsDepthFirst(t *testing.T) {
	svc := newFakeService()
	svc.folders["R"] = contentapi.Folder{ID: "R", Name: "restore", ParentID: "P", Children: []contentapi.Item{
		{ID: "A", Name: "Apps", ItemType: manifest.TypeFolder, ParentID: "R"},
		{ID: "I1", Name: "Overview", ItemType: "Dashboard", ParentID: "R"},
	}}
	svc.folders["A"] = contentapi.Folder{ID: "A", Name: "Apps", ParentID: "R", Children: []contentapi.Item{
		{ID: "I2", Name: "Errors", ItemType: "Search", ParentID: "A"},
	}}

	w := &Walker{Service: svc, Log: zerolog.Nop()}
	record, err := w.Walk(context.Background(), "R")
	require.NoError(t, err)

	var paths []string
	for _, e := range record.Entries() {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"/restore", "/restore/Apps", "/restore/Apps/Errors", "/restore/Overview"}, paths)

	errs, ok := record.Get("I2")
	require.True(t, ok)
	assert.Equal(t, "A", errs.ParentID)
	assert.Equal(t, "Search", errs.Type)
	assert.Equal(t, "R/A/I2", errs.BackupPath)
}

func TestWalkRecordsEachNodeOnce(t *testing.T) {
	svc := newFakeService()
	svc.folders["R"] = contentapi.Folder{ID: "R", Name: "restore", Children: []contentapi.Item{
		{ID: "A", Name: "A", ItemType: manifest.TypeFolder, ParentID: "R"},
	}}
	svc.folders["A"] = contentapi.Folder{ID: "A", Name: "A", ParentID: "R", Children: []contentapi.Item{
		{ID: "R", Name: "restore", ItemType: manifest.TypeFolder, ParentID: "A"},
		{ID: "A", Name: "A", ItemType: manifest.TypeFolder, ParentID: "A"},
	}}

	record, err := (&Walker{Service: svc, Log: zerolog.Nop()}).Walk(context.Background(), "R")
	require.NoError(t, err)
	assert.Equal(t, 2, record.Len())
}

func TestWalkResolvesOrigins(t *testing.T) {
	svc := newFakeService()
	rows := []manifest.Row{
		folder("F1", "Apps", "/Apps", "F1"),
		item("C1", "Errors", "/Apps/Errors", "F1/C1"),
	}
	m := manifest.New(rows)
	plan, rmap := build(t, svc, rows...)
	appsID, _ := rmap.Get("Apps")

	svc.folders[rootID] = contentapi.Folder{ID: rootID, Name: "restore", Children: []contentapi.Item{
		{ID: appsID, Name: "Apps", ItemType: manifest.TypeFolder, ParentID: rootID},
	}}
	svc.folders[appsID] = contentapi.Folder{ID: appsID, Name: "Apps", ParentID: rootID, Children: []contentapi.Item{
		{ID: "NEW1", Name: "Errors", ItemType: "Search", ParentID: appsID},
	}}

	origins := NewOrigins()
	origins.AddFolders(m, plan, rmap)
	origins.AddItems([]Outcome{{Row: rows[1], ParentID: appsID, Status: contentapi.StatusSuccess}})

	record, err := (&Walker{Service: svc, Origins: origins, Log: zerolog.Nop()}).Walk(context.Background(), rootID)
	require.NoError(t, err)

	apps, _ := record.Get(appsID)
	assert.Equal(t, "F1", apps.BackupName)
	assert.Equal(t, "F1", apps.BackupPath)
	errs, _ := record.Get("NEW1")
	assert.Equal(t, "C1", errs.BackupName)
	assert.Equal(t, "F1/C1", errs.BackupPath)
	assert.Equal(t, "/restore/Apps/Errors", errs.Path)
}

func TestWalkKeepsOriginsOfSameNamedItems(t *testing.T) {
	svc := newFakeService()
	rows := []manifest.Row{
		folder("F1", "Apps", "/Apps", "F1"),
		item("C1", "Errors", "/Apps/Errors", "F1/C1"),
		item("C2", "Errors", "/Apps/Errors", "F1/C2"),
	}
	plan, rmap := build(t, svc, rows...)
	appsID, _ := rmap.Get("Apps")

	svc.folders[rootID] = contentapi.Folder{ID: rootID, Name: "restore", Children: []contentapi.Item{
		{ID: appsID, Name: "Apps", ItemType: manifest.TypeFolder, ParentID: rootID},
	}}
	svc.folders[appsID] = contentapi.Folder{ID: appsID, Name: "Apps", ParentID: rootID, Children: []contentapi.Item{
		{ID: "NEW1", Name: "Errors", ItemType: "Search", ParentID: appsID},
		{ID: "NEW2", Name: "Errors", ItemType: "Search", ParentID: appsID},
	}}

	origins := NewOrigins()
	origins.AddFolders(manifest.New(rows), plan, rmap)
	origins.AddItems([]Outcome{
		{Row: rows[1], ParentID: appsID, Status: contentapi.StatusSuccess},
		{Row: rows[2], ParentID: appsID, Status: contentapi.StatusSuccess},
	})

	record, err := (&Walker{Service: svc, Origins: origins, Log: zerolog.Nop()}).Walk(context.Background(), rootID)
	require.NoError(t, err)

	first, _ := record.Get("NEW1")
	second, _ := record.Get("NEW2")
	assert.Equal(t, "F1/C1", first.BackupPath)
	assert.Equal(t, "F1/C2", second.BackupPath)
}

func TestWalkFailsOnUnreadableRoot(t *testing.T) {
	_, err := (&Walker{Service: newFakeService(), Log: zerolog.Nop()}).Walk(context.Background(), "missing")
	var apiErr *contentapi.APIError
	require.ErrorAs(t, err, &apiErr)
}
