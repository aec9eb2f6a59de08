package capsule

import (
	"github.com/novabloom/capsulecore/pkg/ids"
)

// Order selects ascending or descending id order for Paginate.
type Order int

const (
	Asc Order = iota
	Desc
)

// Page is one page of a Paginate result. NextCursor is nil when no
// further items remain.
type Page struct {
	Items      []*Capsule
	NextCursor *ids.CapsuleId
}

// Store is the Capsule Store contract. The in-memory and
// storeprim-backed implementations must produce identical observable
// state for any operation sequence.
type Store interface {
	Exists(id ids.CapsuleId) (bool, error)
	Get(id ids.CapsuleId) (*Capsule, bool, error)

	// Upsert replaces the capsule at id wholesale, maintaining the
	// subject/owner indexes atomically (old entries removed before new
	// ones inserted), and returns the prior value if one existed.
	// Rejects a subject already bound to a different CapsuleId with
	// Conflict("subject_already_bound").
	Upsert(id ids.CapsuleId, c *Capsule) (*Capsule, error)

	// PutIfAbsent inserts c at id only if id does not already exist,
	// failing with Conflict("already_exists") otherwise.
	PutIfAbsent(id ids.CapsuleId, c *Capsule) error

	// Update reads the current value, passes it to f for in-place
	// mutation, then commits the result along with any index delta in
	// one critical section. f MUST NOT change c.Id; doing so fails with
	// InvalidArgument("id_immutable"). Returns NotFound if id is absent.
	Update(id ids.CapsuleId, f func(c *Capsule) error) error

	Remove(id ids.CapsuleId) (*Capsule, error)

	// FindBySubject resolves via the subject index, never a scan.
	FindBySubject(subject ids.PersonRef) (*Capsule, bool, error)

	// ListByOwner resolves ids via the owner index only; callers use
	// GetMany for full records.
	ListByOwner(owner ids.PersonRef) ([]ids.CapsuleId, error)

	GetMany(idList []ids.CapsuleId) ([]*Capsule, error)

	// Paginate returns up to limit items strictly after the exclusive
	// after cursor, in order.
	Paginate(after *ids.CapsuleId, limit uint32, order Order) (Page, error)

	// Count reads the primary map; never derived from an index.
	Count() (uint64, error)
}
