package restore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rowjay/content-restore/internal/contentapi"
	"github.com/rowjay/content-restore/internal/manifest"
)

// Entry describes one node of the restored tree.
type Entry struct {
	ID         string
	ParentID   string
	Type       string
	Name       string
	Path       string
	BackupName string
	BackupPath string
}

// Record holds every visited node once, in visit order.
type Record struct {
	byID  map[string]Entry
	order []string
}

func NewRecord() *Record {
	return &Record{byID: map[string]Entry{}}
}

// Add stores e unless its id was already recorded.
func (r *Record) Add(e Entry) bool {
	if _, ok := r.byID[e.ID]; ok {
		return false
	}
	r.byID[e.ID] = e
	r.order = append(r.order, e.ID)
	return true
}

func (r *Record) Get(id string) (Entry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// Entries returns the recorded nodes in visit order.
func (r *Record) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Record) Len() int {
	return len(r.order)
}

// Origins links restored ids back to the manifest rows they came from. Items sharing a
// name inside one folder are handed out in import order.
type Origins struct {
	folders map[string]manifest.Row
	items   map[string][]manifest.Row
}

func NewOrigins() *Origins {
	return &Origins{folders: map[string]manifest.Row{}, items: map[string][]manifest.Row{}}
}

// AddFolders registers every folder of a built map.
func (o *Origins) AddFolders(m *manifest.Manifest, plan *Plan, rmap *Map) {
	for _, step := range plan.Folders {
		id, ok := rmap.Get(step.Key)
		if !ok {
			continue
		}
		if row, ok := m.Lookup(step.UID); ok {
			if _, seen := o.folders[id]; !seen {
				o.folders[id] = row
			}
		}
	}
}

// AddItems registers every successfully imported row.
func (o *Origins) AddItems(outcomes []Outcome) {
	for _, out := range outcomes {
		if out.OK() {
			key := itemKey(out.ParentID, out.Row.Name)
			o.items[key] = append(o.items[key], out.Row)
		}
	}
}

// Take returns the origin of a restored node. An item origin is consumed so the next
// node with the same parent and name gets the following row.
func (o *Origins) Take(id, parentID, name string) (manifest.Row, bool) {
	if o == nil {
		return manifest.Row{}, false
	}
	if row, ok := o.folders[id]; ok {
		return row, true
	}
	key := itemKey(parentID, name)
	rows := o.items[key]
	if len(rows) == 0 {
		return manifest.Row{}, false
	}
	o.items[key] = rows[1:]
	return rows[0], true
}

func itemKey(parentID, name string) string {
	return parentID + "\x00" + name
}

// Walker reads the restored tree back from the content service.
type Walker struct {
	Service FolderReader
	Origins *Origins
	Log     zerolog.Logger
}

type frame struct {
	id       string
	parentID string
	name     string
	itemType string
	path     string
	oidPath  string
}

// Walk visits the tree under rootID depth first and records each node once. Nodes
// without a known origin carry their own id chain as backup path.
func (w *Walker) Walk(ctx context.Context, rootID string) (*Record, error) {
	root, err := w.Service.GetFolder(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("read restore root: %w", err)
	}
	record := NewRecord()
	record.Add(Entry{
		ID:         root.ID,
		ParentID:   root.ParentID,
		Type:       manifest.TypeFolder,
		Name:       root.Name,
		Path:       "/" + root.Name,
		BackupName: root.ID,
		BackupPath: root.ID,
	})

	var stack []frame
	push := func(parent frame, children []contentapi.Item) {
		for i := len(children) - 1; i >= 0; i-- {
			c := children[i]
			stack = append(stack, frame{
				id:       c.ID,
				parentID: c.ParentID,
				name:     c.Name,
				itemType: c.ItemType,
				path:     parent.path + "/" + c.Name,
				oidPath:  parent.oidPath + "/" + c.ID,
			})
		}
	}
	push(frame{path: "/" + root.Name, oidPath: root.ID}, root.Children)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return record, err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := record.Get(f.id); seen {
			w.Log.Warn().Str("id", f.id).Msg("node already recorded, skipping")
			continue
		}
		entry := Entry{ID: f.id, ParentID: f.parentID, Type: f.itemType, Name: f.name, Path: f.path, BackupName: f.id, BackupPath: f.oidPath}
		if row, ok := w.Origins.Take(f.id, f.parentID, f.name); ok {
			entry.BackupName = row.UID
			entry.BackupPath = row.BackupPath
		}
		record.Add(entry)
		w.Log.Debug().Str("path", f.path).Msg("cataloging restored content")

		if f.itemType == manifest.TypeFolder {
			folder, err := w.Service.GetFolder(ctx, f.id)
			if err != nil {
				return record, fmt.Errorf("read folder %s: %w", f.path, err)
			}
			push(f, folder.Children)
		}
	}
	return record, nil
}
