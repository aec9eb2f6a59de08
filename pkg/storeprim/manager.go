package storeprim

import (
	"sync"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
)

// Backend knows how to open a VirtualMemory scoped to a Slot. A backend
// is shared by every slot it opens — for the badger backend that means
// one *badger.DB per process, key-prefixed per slot; for the volatile
// backend it means one map per slot.
type Backend interface {
	// OpenSlot returns the VirtualMemory for slot, creating its region
	// on first call and reopening the same region on every subsequent
	// call (the volatile backend returns the same instance; the badger
	// backend returns a new handle over the same key prefix). This is
	// the "init" behavior the spec requires — there is no "new" that
	// would discard an existing region.
	OpenSlot(slot Slot) (VirtualMemory, error)
	Close() error
}

// Manager is the process-wide allocator of VirtualMemory regions. Only
// one Manager may exist per process; see Init and the historical-bug
// guardrail tests in manager_test.go.
type Manager struct {
	backend    Backend
	mu         sync.Mutex
	allocated  map[Slot]VirtualMemory
}

var (
	globalMu sync.Mutex
	global   *Manager
)

// Init creates the process-wide Manager backed by backend. It fails
// with an Internal error if a Manager already exists — callers that
// need a second one for a test must call ResetForTest first.
func Init(backend Backend) (*Manager, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return nil, coreerrors.Internal(
			"multiple_memory_managers",
			"a memory manager is already initialized for this process",
		)
	}

	global = &Manager{backend: backend, allocated: make(map[Slot]VirtualMemory)}
	return global, nil
}

// Current returns the process-wide Manager, failing with Internal if
// Init has not been called.
func Current() (*Manager, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		return nil, coreerrors.Internal(
			"memory_manager_uninitialized",
			"storeprim.Init must be called before use",
		)
	}
	return global, nil
}

// ResetForTest closes and discards the process-wide Manager, if any.
// Production code never calls this; it exists solely so tests can
// exercise Init's single-instance guard and run independent backends
// in sequence.
func ResetForTest() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		_ = global.backend.Close()
	}
	global = nil
}

// Get returns the VirtualMemory for slot, opening it on first use.
// Calling Get for the same slot twice returns the identical instance —
// no two logical structures can ever be handed overlapping regions
// through this manager.
func (m *Manager) Get(slot Slot) (VirtualMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vm, ok := m.allocated[slot]; ok {
		return vm, nil
	}

	vm, err := m.backend.OpenSlot(slot)
	if err != nil {
		return nil, err
	}
	m.allocated[slot] = vm
	return vm, nil
}

// Close releases the manager's backend. Callers normally let the
// process exit instead; Close exists for embedding hosts and tests
// that open and close several managers in one process lifetime (always
// paired with ResetForTest).
func (m *Manager) Close() error {
	return m.backend.Close()
}
