package restore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/rowjay/content-restore/internal/contentapi"
	"github.com/rowjay/content-restore/internal/manifest"
	"github.com/rowjay/content-restore/internal/storage"
)

// DefaultPollInterval is used when a Poller has no interval configured.
const DefaultPollInterval = 500 * time.Millisecond

var errStillRunning = errors.New("import job still in progress")

// PayloadSource loads the backed-up document of a content item. A missing document is
// reported with an error wrapping storage.ErrNotFound.
type PayloadSource interface {
	Payload(ctx context.Context, backupPath string) (json.RawMessage, error)
}

// Poller waits for an import job to leave the in-progress state.
type Poller struct {
	Interval time.Duration
	// Timeout bounds the total wait. Zero waits until the job ends or ctx is done.
	Timeout time.Duration
	Log     zerolog.Logger
}

// Wait polls the job status, first immediately and then once per interval, and returns
// the first terminal status.
func (p Poller) Wait(ctx context.Context, svc ImportService, parentID, jobID string) (contentapi.ImportStatus, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	backoff := retry.NewConstant(interval)
	if p.Timeout > 0 {
		backoff = retry.WithMaxDuration(p.Timeout, backoff)
	}

	var final contentapi.ImportStatus
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		status, err := svc.GetImportStatus(ctx, parentID, jobID)
		if err != nil {
			return err
		}
		p.Log.Trace().Str("job_id", jobID).Str("status", status.Status).Msg("import job status")
		if status.InProgress() {
			return retry.RetryableError(errStillRunning)
		}
		final = status
		return nil
	})
	if errors.Is(err, errStillRunning) {
		return contentapi.ImportStatus{Status: contentapi.StatusInProgress}, fmt.Errorf("job %s: %w", jobID, ErrPollTimeout)
	}
	return final, err
}

// Outcome is the result of importing one content row.
type Outcome struct {
	Row      manifest.Row
	ParentID string
	JobID    string
	Status   string
	Err      error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Importer submits content rows into their restored folders.
type Importer struct {
	Service  ImportService
	Payloads PayloadSource
	Poller   Poller
	Log      zerolog.Logger
}

// ImportAll imports every row in order. Per-item failures are recorded in the outcomes
// and do not stop the loop; only a done context ends it early.
func (im *Importer) ImportAll(ctx context.Context, plan *Plan, rmap *Map, rootID string, rows []manifest.Row) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		parentID, err := plan.ResolveParent(row, rmap, rootID)
		if err != nil {
			im.Log.Warn().Err(err).Str("path", row.Path).Msg("skipping content item")
			outcomes = append(outcomes, Outcome{Row: row, Err: err})
			continue
		}
		outcome := im.Import(ctx, row, parentID)
		if !outcome.OK() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				outcomes = append(outcomes, outcome)
				return outcomes, ctxErr
			}
			im.Log.Warn().Err(outcome.Err).Str("path", row.Path).Str("job_id", outcome.JobID).Msg("content import failed")
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// Import loads, submits and tracks a single content row.
func (im *Importer) Import(ctx context.Context, row manifest.Row, parentID string) Outcome {
	out := Outcome{Row: row, ParentID: parentID}
	im.Log.Debug().Str("destination", parentID).Str("source", row.BackupPath).Msg("importing content")

	payload, err := im.Payloads.Payload(ctx, row.BackupPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			out.Err = &PayloadMissingError{BackupPath: row.BackupPath, Err: err}
		} else {
			out.Err = fmt.Errorf("load payload %s: %w", row.BackupPath, err)
		}
		return out
	}

	job, err := im.Service.StartImport(ctx, parentID, payload)
	if err != nil {
		out.Err = fmt.Errorf("start import: %w", err)
		return out
	}
	out.JobID = job.ID

	status, err := im.Poller.Wait(ctx, im.Service, parentID, job.ID)
	out.Status = status.Status
	if err != nil {
		out.Err = err
		return out
	}
	if !status.Succeeded() {
		failed := &ImportJobFailedError{JobID: job.ID, Status: status.Status, Message: status.StatusMessage}
		if status.Error != nil && failed.Message == "" {
			failed.Message = status.Error.Message
		}
		out.Err = failed
	}
	return out
}
