package vm

// MapEntry is a single key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an insertion-ordered mapping from Value to Value with unique keys.
//
// Keys are compared structurally (Value.Equal), so containers may be used
// as keys. Lookups go through a hash index keyed by Value.Hash; collisions
// fall back to a linear scan of the bucket. Two maps are equal, and hash
// alike, when they hold the same entries in any insertion order.
type Map struct {
	entries []MapEntry
	index   map[uint64][]int
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{index: make(map[uint64][]int)}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

func (m *Map) find(key Value, h uint64) int {
	if m == nil {
		return -1
	}
	for _, i := range m.index[h] {
		if m.entries[i].Key.Equal(key) {
			return i
		}
	}
	return -1
}

// Get returns a copy of the value stored under key.
func (m *Map) Get(key Value) (Value, bool) {
	i := m.find(key, key.Hash())
	if i < 0 {
		return Value{}, false
	}
	return m.entries[i].Value.Clone(), true
}

// Has reports whether key is present.
func (m *Map) Has(key Value) bool {
	return m.find(key, key.Hash()) >= 0
}

// Put stores copies of key and value, replacing any existing entry for key.
// A replaced entry keeps its original position.
func (m *Map) Put(key, value Value) {
	if m.index == nil {
		m.index = make(map[uint64][]int)
	}
	h := key.Hash()
	if i := m.find(key, h); i >= 0 {
		m.entries[i].Value = value.Clone()
		return
	}
	m.entries = append(m.entries, MapEntry{Key: key.Clone(), Value: value.Clone()})
	m.index[h] = append(m.index[h], len(m.entries)-1)
}

// Delete removes key and reports whether it was present.
func (m *Map) Delete(key Value) bool {
	i := m.find(key, key.Hash())
	if i < 0 {
		return false
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	m.reindex()
	return true
}

func (m *Map) reindex() {
	m.index = make(map[uint64][]int, len(m.entries))
	for i, e := range m.entries {
		h := e.Key.Hash()
		m.index[h] = append(m.index[h], i)
	}
}

// Entries returns deep copies of all entries in insertion order.
func (m *Map) Entries() []MapEntry {
	if m == nil {
		return nil
	}
	out := make([]MapEntry, len(m.entries))
	for i, e := range m.entries {
		out[i] = MapEntry{Key: e.Key.Clone(), Value: e.Value.Clone()}
	}
	return out
}

// Clone returns a deep copy holding every entry of m.
func (m *Map) Clone() *Map {
	out := &Map{
		entries: make([]MapEntry, 0, m.Len()),
		index:   make(map[uint64][]int, m.Len()),
	}
	if m == nil {
		return out
	}
	for _, e := range m.entries {
		out.entries = append(out.entries, MapEntry{Key: e.Key.Clone(), Value: e.Value.Clone()})
	}
	for h, idx := range m.index {
		out.index[h] = append([]int(nil), idx...)
	}
	return out
}

// Equal reports whether both maps hold equal values under equal keys.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	for _, e := range m.entries {
		got, ok := o.Get(e.Key)
		if !ok || !got.Equal(e.Value) {
			return false
		}
	}
	return true
}

func (m *Map) list() []MapEntry {
	if m == nil {
		return nil
	}
	return m.entries
}
