// Package testutil provides a reference model and deterministic operation
// generation for fibmap behaviour tests.
//
// Fuzz and property tests decode raw bytes into operation sequences, apply
// them to both a real table and the model, and fail on any observable
// divergence. The model is deliberately trivial so a disagreement always
// points at the table.
package testutil

// Model is the behavioural oracle for a fibmap table: a plain Go map plus
// the first-write-wins value rule (Put never updates an existing key).
type Model struct {
	entries map[uint32]int
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{entries: make(map[uint32]int)}
}

// Put mirrors Table.Put: it returns the value now associated with key and
// whether the key already existed. An existing key keeps its old value.
func (m *Model) Put(key uint32, value int) (int, bool) {
	if v, ok := m.entries[key]; ok {
		return v, true
	}

	m.entries[key] = value

	return value, false
}

// Get returns the value for key and whether it exists.
func (m *Model) Get(key uint32) (int, bool) {
	v, ok := m.entries[key]

	return v, ok
}

// Remove deletes key, reporting whether it was present.
func (m *Model) Remove(key uint32) bool {
	if _, ok := m.entries[key]; !ok {
		return false
	}

	delete(m.entries, key)

	return true
}

// Len returns the number of live keys.
func (m *Model) Len() int { return len(m.entries) }

// Keys returns all live keys in unspecified order.
func (m *Model) Keys() []uint32 {
	keys := make([]uint32, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}

	return keys
}
