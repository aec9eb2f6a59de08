package storeprim

import (
	"bytes"
	"sort"
	"sync"
)

// VolatileBackend is an in-process, non-persistent Backend. Every Slot
// gets its own map, protected by its own lock, so contention on one
// structure never blocks another. Used by tests and by short-lived
// tooling that doesn't need durability.
type VolatileBackend struct {
	mu    sync.Mutex
	slots map[Slot]*volatileMemory
}

// NewVolatileBackend constructs an empty VolatileBackend.
func NewVolatileBackend() *VolatileBackend {
	return &VolatileBackend{slots: make(map[Slot]*volatileMemory)}
}

func (b *VolatileBackend) OpenSlot(slot Slot) (VirtualMemory, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if vm, ok := b.slots[slot]; ok {
		return vm, nil
	}
	vm := &volatileMemory{data: make(map[string][]byte)}
	b.slots[slot] = vm
	return vm, nil
}

func (b *VolatileBackend) Close() error { return nil }

type volatileMemory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (m *volatileMemory) Get(key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *volatileMemory) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

func (m *volatileMemory) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, string(key))
	return nil
}

func (m *volatileMemory) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = m.data[k]
	}
	m.mu.RUnlock()

	for _, k := range keys {
		if !fn([]byte(k), snapshot[k]) {
			return nil
		}
	}
	return nil
}

func (m *volatileMemory) Count(prefix []byte) (uint64, error) {
	var n uint64
	err := m.Iterate(prefix, func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}

func (m *volatileMemory) MaxValueSize() uint64 { return 0 }
