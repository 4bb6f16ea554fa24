package app

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowjay/content-restore/internal/audit"
	"github.com/rowjay/content-restore/internal/backupset"
	"github.com/rowjay/content-restore/internal/config"
	"github.com/rowjay/content-restore/internal/contentapi"
	"github.com/rowjay/content-restore/internal/contentapi/contentapitest"
	"github.com/rowjay/content-restore/internal/manifest"
	"github.com/rowjay/content-restore/internal/notify"
	"github.com/rowjay/content-restore/internal/restore"
	"github.com/rowjay/content-restore/internal/storage"
)

const backupManifest = `uid_myself,uid_parent,my_type,my_name,my_path,backup_path
F1,BK,Folder,Apps,/Root/Apps,BK/F1
F2,F1,Folder,Web,/Root/Apps/Web,BK/F1/F2
C1,F2,Search,Errors,/Root/Apps/Web/Errors,BK/F1/F2/C1
C2,F1,Dashboard,Overview,/Root/Apps/Overview,BK/F1/C2
C3,BK,Search,Loose,/Root/Loose,BK/C3
C4,F2,Search,Broken,/Root/Apps/Web/Broken,BK/F1/F2/C4
`

var payloads = map[string]string{
	"BK/F1/F2/C1": `{"type":"SearchSyncDefinition","name":"Errors"}`,
	"BK/F1/C2":    `{"type":"DashboardV2SyncDefinition","name":"Overview"}`,
	"BK/C3":       `{"type":"SearchSyncDefinition","name":"Loose"}`,
	"BK/F1/F2/C4": `{"type":"SearchSyncDefinition","name":"Broken"}`,
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

type fixture struct {
	app   *App
	fake  *contentapitest.Server
	store *storage.Local
	set   *backupset.Set
	sent  *recorder
}

func newFixture(t *testing.T, manifestCSV string) *fixture {
	t.Helper()
	ctx := context.Background()

	fake := contentapitest.NewServer()
	fake.AccessID, fake.AccessKey = "suID", "secret"
	fake.InProgressPolls = 1
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Global:  config.GlobalConfig{LockFile: filepath.Join(t.TempDir(), "crestore.lock")},
		Service: config.ServiceConfig{Endpoint: srv.URL + "/api", AccessID: "suID", AccessKey: "secret"},
		Restore: config.RestoreConfig{
			Tag:          "sumologic-restore",
			PollInterval: time.Millisecond,
			PollTimeout:  5 * time.Second,
			AuditDir:     t.TempDir(),
			AuditPrefix:  "restores",
		},
	}
	client, err := NewServiceClient(ctx, cfg)
	require.NoError(t, err)

	store := storage.NewLocal(t.TempDir())
	set, err := backupset.New(store, backupset.Options{})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, set.ManifestKey(), strings.NewReader(manifestCSV), -1, nil))
	for bp, doc := range payloads {
		require.NoError(t, set.PutPayload(ctx, bp, []byte(doc)))
	}

	sent := &recorder{}
	a := New(cfg, client, set, store, zerolog.Nop(), sent)
	a.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local) }
	return &fixture{app: a, fake: fake, store: store, set: set, sent: sent}
}

func TestRestoreRecreatesBackup(t *testing.T) {
	f := newFixture(t, backupManifest)
	f.fake.FailImports["Broken"] = true
	f.app.Cfg.Restore.UploadAudit = true

	summary, err := f.app.Restore(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sumologic-restore.20240102.030405", summary.RestorePoint)
	assert.Equal(t, 2, summary.Folders)
	assert.Equal(t, 3, summary.Imported)
	assert.Equal(t, 1, summary.Failed)

	tree := f.fake.Paths(f.fake.PersonalID())
	assert.Equal(t, map[string]string{
		"sumologic-restore.20240102.030405":                 "Folder",
		"sumologic-restore.20240102.030405/Apps":            "Folder",
		"sumologic-restore.20240102.030405/Apps/Web":        "Folder",
		"sumologic-restore.20240102.030405/Apps/Web/Errors": "Search",
		"sumologic-restore.20240102.030405/Apps/Overview":   "DashboardV2",
		"sumologic-restore.20240102.030405/Loose":           "Search",
	}, tree)
	assert.Equal(t, 3, f.fake.Calls(contentapitest.OpCreateFolder))

	data, err := os.ReadFile(summary.Audit.Audit)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, audit.Header, rows[0])
	require.Len(t, rows, 7)
	assert.Equal(t, "/sumologic-restore.20240102.030405", rows[1][4])
	byPath := map[string][]string{}
	for _, row := range rows[1:] {
		byPath[row[4]] = row
	}
	errs := byPath["/sumologic-restore.20240102.030405/Apps/Web/Errors"]
	require.NotNil(t, errs)
	assert.Equal(t, "C1", errs[5])
	assert.Equal(t, "BK/F1/F2/C1", errs[6])

	require.NotEmpty(t, summary.Audit.Failed)
	failed, err := os.ReadFile(summary.Audit.Failed)
	require.NoError(t, err)
	assert.Contains(t, string(failed), "C4,Search,Broken")

	assert.Equal(t, []string{
		"restores/sumologic-restore.20240102.030405.csv",
		"restores/sumologic-restore.20240102.030405.failed.csv",
	}, summary.AuditKeys)

	require.Len(t, f.sent.events, 1)
	assert.Equal(t, notify.StatusPartial, f.sent.events[0].Status)
	assert.Equal(t, 3, f.sent.events[0].Imported)
}

func TestRestoreUnderConfiguredParent(t *testing.T) {
	f := newFixture(t, backupManifest)
	ctx := context.Background()
	parent, err := f.app.Service.CreateFolder(ctx, "Restores", f.fake.PersonalID())
	require.NoError(t, err)
	f.app.Cfg.Restore.ParentID = parent.ID
	f.app.Cfg.Restore.RestorePoint = "manual-point"

	summary, err := f.app.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Failed)
	assert.Contains(t, f.fake.Paths(parent.ID), "manual-point/Apps/Web/Errors")
	assert.Equal(t, notify.StatusSuccess, f.sent.events[0].Status)
}

func TestRestoreMissingPayloadIsPartial(t *testing.T) {
	f := newFixture(t, backupManifest)
	require.NoError(t, f.store.Delete(context.Background(), f.set.ContentKey("BK/F1/C2")))

	summary, err := f.app.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	var missing *restore.PayloadMissingError
	found := false
	for _, out := range summary.Outcomes {
		if errors.As(out.Err, &missing) {
			found = true
			assert.Equal(t, "BK/F1/C2", missing.BackupPath)
		}
	}
	assert.True(t, found)
	assert.Contains(t, f.fake.Paths(f.fake.PersonalID()), "sumologic-restore.20240102.030405/Apps/Web/Errors")
}

func TestRestoreUnreadableManifestTouchesNothing(t *testing.T) {
	f := newFixture(t, "name,type\nx,y\n")

	_, err := f.app.Restore(context.Background())
	require.ErrorIs(t, err, manifest.ErrUnreadable)
	assert.Zero(t, f.fake.Calls(contentapitest.OpCreateFolder))
	assert.Zero(t, f.fake.Calls(contentapitest.OpGetFolder))
	require.Len(t, f.sent.events, 1)
	assert.Equal(t, notify.StatusFailed, f.sent.events[0].Status)
}

func TestRestoreFolderFailureIsFatal(t *testing.T) {
	f := newFixture(t, backupManifest)
	f.fake.FailFolders["Web"] = http.StatusInternalServerError

	summary, err := f.app.Restore(context.Background())
	var folderErr *restore.FolderCreationError
	require.ErrorAs(t, err, &folderErr)
	assert.Equal(t, "Apps/Web", folderErr.Path)
	var apiErr *contentapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, 1, summary.Folders)
	assert.Zero(t, f.fake.Calls(contentapitest.OpStartImport))
}

func TestRestoreDryRun(t *testing.T) {
	f := newFixture(t, backupManifest)
	f.app.Cfg.Restore.DryRun = true

	summary, err := f.app.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.PlannedFolders)
	assert.Equal(t, 4, summary.PlannedItems)
	assert.Zero(t, f.fake.Calls(contentapitest.OpCreateFolder))
}

func TestValidate(t *testing.T) {
	f := newFixture(t, backupManifest)
	ctx := context.Background()

	report, err := f.app.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Folders)
	assert.Equal(t, 4, report.Items)

	require.NoError(t, f.store.Delete(ctx, f.set.ContentKey("BK/C3")))
	report, err = f.app.Validate(ctx)
	require.ErrorIs(t, err, ErrIncompleteBackup)
	require.Len(t, report.Missing, 1)
	assert.Equal(t, "C3", report.Missing[0].UID)

	f.app.Cfg.Service.AccessKey = ""
	_, err = f.app.Validate(ctx)
	require.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestInspect(t *testing.T) {
	f := newFixture(t, backupManifest)
	f.app.Service = nil

	out, err := f.app.Inspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, out.Rows)
	assert.Equal(t, 4, out.Items)
	assert.Equal(t, map[string]int{"Search": 3, "Dashboard": 1}, out.Types)
	require.Len(t, out.Folders, 2)
	assert.Equal(t, "Apps/Web", out.Folders[1].Key)
}
