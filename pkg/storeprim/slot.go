package storeprim

// Slot identifies one of the fixed, non-overlapping logical key spaces
// the MemoryManager hands out. Every persistent structure in the core
// is assigned exactly one slot, for the lifetime of the schema.
type Slot uint8

const (
	// SlotCapsules holds the primary capsule store: CapsuleId -> Capsule.
	SlotCapsules Slot = iota
	// SlotSubjectIndex holds the subject secondary index: subject key -> CapsuleId.
	SlotSubjectIndex
	// SlotOwnerIndex holds the owner secondary index: (owner key, CapsuleId) -> ().
	SlotOwnerIndex
	// SlotSessions holds upload sessions: SessionId -> Session.
	SlotSessions
	// SlotChunks holds upload chunk bytes: (SessionId, chunk index) -> bytes.
	SlotChunks
	// SlotSessionCounter holds the session id counter.
	SlotSessionCounter
	// SlotBlobPages holds blob page bytes: (BlobId, page index) -> bytes.
	SlotBlobPages
	// SlotBlobMeta holds blob metadata: BlobId -> BlobMeta.
	SlotBlobMeta
	// SlotBlobCounter holds the blob id counter.
	SlotBlobCounter

	numSlots
)

// String names the slot for diagnostics and guardrail test failures.
func (s Slot) String() string {
	switch s {
	case SlotCapsules:
		return "capsules"
	case SlotSubjectIndex:
		return "subject_index"
	case SlotOwnerIndex:
		return "owner_index"
	case SlotSessions:
		return "sessions"
	case SlotChunks:
		return "chunks"
	case SlotSessionCounter:
		return "session_counter"
	case SlotBlobPages:
		return "blob_pages"
	case SlotBlobMeta:
		return "blob_meta"
	case SlotBlobCounter:
		return "blob_counter"
	default:
		return "unknown_slot"
	}
}
