package storeprim

// VirtualMemory is a bounded key/value map over one Slot's region. It
// is the sole storage primitive every higher layer (capsule store,
// blob store, upload session manager) builds on; none of them touch a
// backend directly.
//
// Keys and values are caller-defined byte encodings; VirtualMemory
// itself is encoding-agnostic. MaxValueSize bounds serialized values —
// callers that would exceed it get ResourceExhausted before any write
// is attempted.
type VirtualMemory interface {
	// Get returns the value for key, or (nil, false, nil) if absent.
	Get(key []byte) (value []byte, found bool, err error)
	// Set writes key -> value, replacing any existing value.
	Set(key, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix, in key
	// order, until fn returns false or all matching keys are visited.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	// Count returns the number of keys with the given prefix. An empty
	// prefix counts every key in the slot.
	Count(prefix []byte) (uint64, error)
	// MaxValueSize returns the maximum serialized value size this
	// memory accepts, or 0 for unbounded.
	MaxValueSize() uint64
}
