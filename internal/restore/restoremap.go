package restore

import "fmt"

// Map records the id of every folder created during a run, keyed by its restore path.
// Keys are written once.
type Map struct {
	ids   map[string]string
	order []string
}

func NewMap() *Map {
	return &Map{ids: map[string]string{}}
}

// Get returns the folder id stored for key.
func (m *Map) Get(key string) (string, bool) {
	id, ok := m.ids[key]
	return id, ok
}

// Set stores the id of a newly created folder.
func (m *Map) Set(key, id string) error {
	if existing, ok := m.ids[key]; ok {
		return fmt.Errorf("restore path %q already mapped to %s", key, existing)
	}
	m.ids[key] = id
	m.order = append(m.order, key)
	return nil
}

// Keys returns the stored paths in creation order.
func (m *Map) Keys() []string {
	return append([]string(nil), m.order...)
}

func (m *Map) Len() int {
	return len(m.order)
}
