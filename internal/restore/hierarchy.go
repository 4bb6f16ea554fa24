package restore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rowjay/content-restore/internal/contentapi"
)

// FolderService creates folders in the content service.
type FolderService interface {
	CreateFolder(ctx context.Context, name, parentID string) (contentapi.Folder, error)
}

// FolderReader reads folders from the content service.
type FolderReader interface {
	GetFolder(ctx context.Context, id string) (contentapi.Folder, error)
}

// ImportService submits and tracks content imports.
type ImportService interface {
	StartImport(ctx context.Context, parentID string, payload json.RawMessage) (contentapi.ImportJob, error)
	GetImportStatus(ctx context.Context, parentID, jobID string) (contentapi.ImportStatus, error)
}

// Builder recreates the folder hierarchy of a plan under a restore root.
type Builder struct {
	Service FolderService
	Log     zerolog.Logger
}

// Build creates every planned folder exactly once and returns the resulting map. The
// first failed creation stops the build; folders created so far are left in place and
// remain in the returned map.
func (b *Builder) Build(ctx context.Context, plan *Plan, rootID string) (*Map, error) {
	rmap := NewMap()
	for _, step := range plan.Folders {
		if _, ok := rmap.Get(step.Key); ok {
			continue
		}
		parentID := rootID
		if step.ParentKey != "" {
			id, ok := rmap.Get(step.ParentKey)
			if !ok {
				return rmap, &FolderCreationError{Path: step.Key, Err: fmt.Errorf("parent %q was not created", step.ParentKey)}
			}
			parentID = id
		}
		folder, err := b.Service.CreateFolder(ctx, step.Name, parentID)
		if err != nil {
			return rmap, &FolderCreationError{Path: step.Key, Err: err}
		}
		if folder.ID == "" {
			return rmap, &FolderCreationError{Path: step.Key, Err: fmt.Errorf("service returned no folder id")}
		}
		if err := rmap.Set(step.Key, folder.ID); err != nil {
			return rmap, &FolderCreationError{Path: step.Key, Err: err}
		}
		b.Log.Debug().Str("path", step.Key).Str("id", folder.ID).Str("parent_id", parentID).Msg("created restore folder")
	}
	return rmap, nil
}
