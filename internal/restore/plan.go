package restore

import (
	"fmt"
	"path"
	"strings"

	"github.com/rowjay/content-restore/internal/manifest"
)

// FolderStep is one folder to create. Steps are ordered so a parent always precedes
// its children.
type FolderStep struct {
	Key       string
	ParentKey string
	Name      string
	UID       string
	Depth     int
}

// Plan is the set of folders a manifest needs, computed without touching the service.
type Plan struct {
	Folders []FolderStep
	m       *manifest.Manifest
}

// SanitizeName strips path separators so a name stays a single key segment.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, "/", "")
}

// NewPlan walks the id chain of every folder row and lists each distinct restore path
// once, parents first. Row order in the manifest does not affect the result beyond the
// order of siblings.
func NewPlan(m *manifest.Manifest) (*Plan, error) {
	p := &Plan{m: m}
	seen := map[string]bool{}
	for _, row := range m.Folders() {
		chain := row.Chain()
		if len(chain) == 0 {
			return nil, fmt.Errorf("%w: folder %s has an empty backup_path", manifest.ErrUnreadable, row.UID)
		}
		parentKey := ""
		depth := 0
		for i, uid := range chain {
			ancestor, ok := m.Lookup(uid)
			if !ok {
				if i == 0 {
					continue
				}
				return nil, fmt.Errorf("%w: folder %s references unknown id %s", manifest.ErrUnreadable, row.UID, uid)
			}
			name := SanitizeName(ancestor.Name)
			key := joinKey(parentKey, name)
			if !seen[key] {
				seen[key] = true
				p.Folders = append(p.Folders, FolderStep{Key: key, ParentKey: parentKey, Name: name, UID: ancestor.UID, Depth: depth})
			}
			parentKey = key
			depth++
		}
	}
	return p, nil
}

// ParentKeys returns the candidate restore paths of a content row's folder: the one
// derived from its id chain, then the directory of my_path. A chain that resolves to
// the backup root yields the empty key alone, since the root itself is never created.
func (p *Plan) ParentKeys(row manifest.Row) []string {
	dir := path.Dir(strings.TrimLeft(row.Path, "/"))
	if dir == "." || dir == "/" {
		dir = ""
	}
	key, ok := p.chainKey(row)
	switch {
	case !ok || key == dir:
		return []string{dir}
	case key == "" || dir == "":
		return []string{key}
	}
	return []string{key, dir}
}

// ResolveParent returns the new id of the folder a content row belongs in. Rows at the
// top of the backup land directly in the restore root.
func (p *Plan) ResolveParent(row manifest.Row, rmap *Map, rootID string) (string, error) {
	keys := p.ParentKeys(row)
	for _, key := range keys {
		if key == "" {
			return rootID, nil
		}
		if id, ok := rmap.Get(key); ok {
			return id, nil
		}
	}
	return "", &UnresolvedParentError{Path: keys[0]}
}

func (p *Plan) chainKey(row manifest.Row) (string, bool) {
	chain := row.Chain()
	if n := len(chain); n > 0 && chain[n-1] == row.UID {
		chain = chain[:n-1]
	}
	key := ""
	for i, uid := range chain {
		ancestor, ok := p.m.Lookup(uid)
		if !ok {
			if i == 0 {
				continue
			}
			return "", false
		}
		key = joinKey(key, SanitizeName(ancestor.Name))
	}
	return key, true
}

func joinKey(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
