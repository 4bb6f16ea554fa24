package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// TypeFolder is the my_type value that marks a folder row.
const TypeFolder = "Folder"

// ErrUnreadable is returned when the manifest is missing or cannot be parsed.
var ErrUnreadable = errors.New("manifest unreadable")

// Columns lists the fields every backup manifest must carry.
var Columns = []string{"uid_myself", "uid_parent", "my_type", "my_name", "my_path", "backup_path"}

// Row is one item captured at backup time.
type Row struct {
	UID        string
	ParentUID  string
	Type       string
	Name       string
	Path       string
	BackupPath string
}

// IsFolder reports whether the row describes a folder.
func (r Row) IsFolder() bool {
	return r.Type == TypeFolder
}

// Chain splits the backup path into the original ids from the backup root to the row.
func (r Row) Chain() []string {
	parts := strings.Split(strings.Trim(r.BackupPath, "/"), "/")
	chain := parts[:0]
	for _, p := range parts {
		if p != "" {
			chain = append(chain, p)
		}
	}
	return chain
}

// Manifest is the immutable, parsed backup manifest.
type Manifest struct {
	rows  []Row
	byUID map[string]int
}

// New builds a manifest from rows already in memory.
func New(rows []Row) *Manifest {
	m := &Manifest{rows: append([]Row(nil), rows...), byUID: make(map[string]int, len(rows))}
	for i, row := range m.rows {
		if _, dup := m.byUID[row.UID]; !dup {
			m.byUID[row.UID] = i
		}
	}
	return m
}

// Load parses a CSV manifest. The header must contain every entry of Columns; extra
// columns are ignored.
func Load(r io.Reader) (*Manifest, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrUnreadable)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrUnreadable, col)
		}
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		if len(record) < len(header) {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrUnreadable, line, len(record), len(header))
		}
		field := func(name string) string { return record[index[name]] }
		row := Row{
			UID:        field("uid_myself"),
			ParentUID:  field("uid_parent"),
			Type:       field("my_type"),
			Name:       field("my_name"),
			Path:       field("my_path"),
			BackupPath: field("backup_path"),
		}
		if row.UID == "" {
			return nil, fmt.Errorf("%w: line %d has empty uid_myself", ErrUnreadable, line)
		}
		rows = append(rows, row)
	}
	return New(rows), nil
}

// Rows returns every row in file order.
func (m *Manifest) Rows() []Row {
	return append([]Row(nil), m.rows...)
}

// Folders returns the folder rows in file order.
func (m *Manifest) Folders() []Row {
	return m.filter(func(r Row) bool { return r.IsFolder() })
}

// ContentItems returns every non-folder row in file order.
func (m *Manifest) ContentItems() []Row {
	return m.filter(func(r Row) bool { return !r.IsFolder() })
}

// Lookup finds a row by its original id.
func (m *Manifest) Lookup(uid string) (Row, bool) {
	i, ok := m.byUID[uid]
	if !ok {
		return Row{}, false
	}
	return m.rows[i], true
}

// Len returns the number of rows.
func (m *Manifest) Len() int {
	return len(m.rows)
}

func (m *Manifest) filter(keep func(Row) bool) []Row {
	out := []Row{}
	for _, row := range m.rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}
