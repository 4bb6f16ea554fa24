package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowjay/content-restore/internal/audit"
	"github.com/rowjay/content-restore/internal/backupset"
	"github.com/rowjay/content-restore/internal/config"
	"github.com/rowjay/content-restore/internal/contentapi"
	"github.com/rowjay/content-restore/internal/lock"
	"github.com/rowjay/content-restore/internal/manifest"
	"github.com/rowjay/content-restore/internal/notify"
	"github.com/rowjay/content-restore/internal/restore"
	"github.com/rowjay/content-restore/internal/storage"
	"github.com/rowjay/content-restore/internal/util"
)

// ErrIncompleteBackup is reported by Validate when content documents are missing.
var ErrIncompleteBackup = errors.New("backup is missing content documents")

// ContentService is the part of the content API a restore needs.
type ContentService interface {
	restore.FolderService
	restore.FolderReader
	restore.ImportService
	PersonalFolder(ctx context.Context) (contentapi.Folder, error)
}

type App struct {
	Cfg      *config.Config
	Service  ContentService
	Backup   *backupset.Set
	Storage  storage.Storage
	Log      zerolog.Logger
	Notifier notify.Notifier
	Now      func() time.Time
}

func New(cfg *config.Config, svc ContentService, backup *backupset.Set, store storage.Storage, log zerolog.Logger, notifier notify.Notifier) *App {
	return &App{Cfg: cfg, Service: svc, Backup: backup, Storage: store, Log: log, Notifier: notifier, Now: time.Now}
}

// Summary describes a finished (or aborted) restore run.
type Summary struct {
	RestorePoint   string
	RestorePointID string
	PlannedFolders int
	PlannedItems   int
	Folders        int
	Imported       int
	Failed         int
	Outcomes       []restore.Outcome
	Audit          audit.Files
	AuditKeys      []string
	DryRun         bool
}

// Status is the notification status of the run.
func (s *Summary) Status(err error) string {
	switch {
	case err != nil:
		return notify.StatusFailed
	case s.Failed > 0:
		return notify.StatusPartial
	default:
		return notify.StatusSuccess
	}
}

// Restore recreates the backup under a new restore point. The manifest is read and
// planned before anything is created remotely, so manifest errors leave the service
// untouched. Per-item failures do not fail the run; they are counted in the summary
// and written to the failed audit file.
func (a *App) Restore(ctx context.Context) (*Summary, error) {
	start := a.now()
	summary := &Summary{RestorePoint: a.restorePointName(start), DryRun: a.Cfg.Restore.DryRun}
	var opErr error
	defer func() {
		a.notify(start, summary, opErr)
	}()

	guard, err := lock.Acquire(a.Cfg.Global.LockFile)
	if err != nil {
		opErr = err
		return summary, err
	}
	defer guard.Release()

	m, err := a.Backup.Manifest(ctx)
	if err != nil {
		opErr = err
		return summary, err
	}
	plan, err := restore.NewPlan(m)
	if err != nil {
		opErr = err
		return summary, err
	}
	items := m.ContentItems()
	summary.PlannedFolders = len(plan.Folders)
	summary.PlannedItems = len(items)
	a.Log.Info().Int("rows", m.Len()).Int("folders", summary.PlannedFolders).Int("items", summary.PlannedItems).Msg("manifest loaded")

	if a.Cfg.Restore.DryRun {
		for _, step := range plan.Folders {
			a.Log.Info().Str("path", step.Key).Int("depth", step.Depth).Msg("would create folder")
		}
		a.Log.Info().Str("restore_point", summary.RestorePoint).Msg("dry run, nothing restored")
		return summary, nil
	}

	parentID := a.Cfg.Restore.ParentID
	if parentID == "" {
		personal, err := a.Service.PersonalFolder(ctx)
		if err != nil {
			opErr = fmt.Errorf("read personal folder: %w", err)
			return summary, opErr
		}
		parentID = personal.ID
	}
	point, err := a.Service.CreateFolder(ctx, summary.RestorePoint, parentID)
	if err != nil {
		opErr = &restore.FolderCreationError{Path: summary.RestorePoint, Err: err}
		return summary, opErr
	}
	summary.RestorePointID = point.ID
	a.Log.Info().Str("restore_point", summary.RestorePoint).Str("id", point.ID).Msg("created restore point")

	builder := &restore.Builder{Service: a.Service, Log: a.Log}
	rmap, err := builder.Build(ctx, plan, point.ID)
	summary.Folders = rmap.Len()
	if err != nil {
		opErr = err
		return summary, err
	}
	a.Log.Info().Int("folders", summary.Folders).Msg("folder hierarchy restored")

	importer := &restore.Importer{
		Service:  a.Service,
		Payloads: a.Backup,
		Poller: restore.Poller{
			Interval: a.Cfg.Restore.PollInterval,
			Timeout:  a.Cfg.Restore.PollTimeout,
			Log:      a.Log,
		},
		Log: a.Log,
	}
	outcomes, err := importer.ImportAll(ctx, plan, rmap, point.ID, items)
	summary.Outcomes = outcomes
	for _, out := range outcomes {
		if out.OK() {
			summary.Imported++
		} else {
			summary.Failed++
		}
	}
	if err != nil {
		opErr = err
		return summary, err
	}
	a.Log.Info().Int("imported", summary.Imported).Int("failed", summary.Failed).Msg("content imported")

	origins := restore.NewOrigins()
	origins.AddFolders(m, plan, rmap)
	origins.AddItems(outcomes)
	walker := &restore.Walker{Service: a.Service, Origins: origins, Log: a.Log}
	record, err := walker.Walk(ctx, point.ID)
	if err != nil {
		opErr = err
		return summary, err
	}

	files, err := audit.WriteFiles(a.Cfg.Restore.AuditDir, summary.RestorePoint, record, outcomes)
	summary.Audit = files
	if err != nil {
		opErr = err
		return summary, err
	}
	a.Log.Info().Str("audit", files.Audit).Str("failed", files.Failed).Int("entries", record.Len()).Msg("audit written")

	if a.Cfg.Restore.UploadAudit {
		a.uploadAudit(ctx, summary)
	}
	return summary, nil
}

func (a *App) uploadAudit(ctx context.Context, summary *Summary) {
	keys, err := audit.Upload(ctx, a.Storage, a.Cfg.Restore.AuditPrefix, summary.Audit)
	summary.AuditKeys = keys
	if err != nil {
		a.Log.Warn().Err(err).Msg("failed to upload audit")
		return
	}
	deleted, err := audit.Prune(ctx, a.Storage, a.Cfg.Restore.AuditPrefix, a.Cfg.Restore.AuditRetention, a.now())
	if err != nil {
		a.Log.Warn().Err(err).Msg("failed to apply audit retention")
		return
	}
	if len(deleted) > 0 {
		a.Log.Info().Strs("keys", deleted).Msg("pruned old audit files")
	}
}

func (a *App) notify(start time.Time, summary *Summary, opErr error) {
	if a.Notifier == nil {
		return
	}
	end := a.now()
	event := notify.Event{
		Type:           "restore",
		Message:        fmt.Sprintf("restore %s", summary.RestorePoint),
		Status:         summary.Status(opErr),
		RestorePoint:   summary.RestorePoint,
		RestorePointID: summary.RestorePointID,
		Folders:        summary.Folders,
		Imported:       summary.Imported,
		Failed:         summary.Failed,
		AuditFile:      summary.Audit.Audit,
		StartedAt:      start,
		EndedAt:        end,
		Duration:       end.Sub(start).String(),
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if err := a.Notifier.Notify(context.Background(), event); err != nil {
		a.Log.Warn().Err(err).Msg("failed to send notification")
	}
}

// Report is the result of Validate.
type Report struct {
	Endpoint string
	Folders  int
	Items    int
	Missing  []manifest.Row
}

// Validate checks that the service answers with the configured credentials and that
// the backup is complete enough to restore.
func (a *App) Validate(ctx context.Context) (*Report, error) {
	report := &Report{}
	if err := a.Cfg.Service.RequireCredentials(); err != nil {
		return report, err
	}
	if _, err := a.Service.PersonalFolder(ctx); err != nil {
		return report, fmt.Errorf("content service: %w", err)
	}

	m, err := a.Backup.Manifest(ctx)
	if err != nil {
		return report, err
	}
	plan, err := restore.NewPlan(m)
	if err != nil {
		return report, err
	}
	items := m.ContentItems()
	report.Folders = len(plan.Folders)
	report.Items = len(items)

	missing, err := a.Backup.Missing(ctx, items)
	if err != nil {
		return report, err
	}
	report.Missing = missing
	if len(missing) > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrIncompleteBackup, len(missing), len(items))
	}
	return report, nil
}

// Inspection summarises a backup without touching the content service.
type Inspection struct {
	Rows    int
	Folders []restore.FolderStep
	Items   int
	Types   map[string]int
}

func (a *App) Inspect(ctx context.Context) (*Inspection, error) {
	m, err := a.Backup.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := restore.NewPlan(m)
	if err != nil {
		return nil, err
	}
	out := &Inspection{Rows: m.Len(), Folders: plan.Folders, Types: map[string]int{}}
	for _, row := range m.ContentItems() {
		out.Items++
		out.Types[row.Type]++
	}
	return out, nil
}

func (a *App) restorePointName(start time.Time) string {
	if a.Cfg.Restore.RestorePoint != "" {
		return a.Cfg.Restore.RestorePoint
	}
	return util.RestorePointName(a.Cfg.Restore.Tag, start)
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
