package capsule

import (
	"time"

	"github.com/novabloom/capsulecore/pkg/access"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
	"github.com/novabloom/capsulecore/pkg/metrics"
)

// capsuleResource projects c into the shape the access evaluator
// consumes. A Capsule has no AccessEntries or PublicPolicy of its own
// — only its owner/controller set ever grants anything — so every
// capsule-level operation resolves to the ownership fast path or
// nothing at all.
func capsuleResource(c *Capsule) access.Resource {
	return access.Resource{OwnerKeys: c.OwnerKeySet()}
}

func evalCtxFromPerson(principal ids.PersonRef) access.EvalContext {
	return access.EvalContext{PrincipalKey: principal.Key(), IsAuthenticated: !principal.IsEmpty()}
}

// CapsuleInfo is the thin projection returned by ReadBasic: identity
// and cached counters, without the memory/gallery/folder maps a full
// Capsule carries.
type CapsuleInfo struct {
	Id               ids.CapsuleId
	Subject          string
	OwnerCount       int
	ControllerCount  int
	TotalMemories    uint32
	InlineBytesUsed  uint64
	TotalStorageUsed uint64
	BoundToNeon      bool
	CreatedAt        int64
	UpdatedAt        int64
}

func toInfo(c *Capsule) CapsuleInfo {
	return CapsuleInfo{
		Id:               c.Id,
		Subject:          c.Subject.Key(),
		OwnerCount:       len(c.Owners),
		ControllerCount:  len(c.Controllers),
		TotalMemories:    c.Metadata.TotalMemories,
		InlineBytesUsed:  c.Metadata.InlineBytesUsed,
		TotalStorageUsed: c.Metadata.TotalStorageUsed,
		BoundToNeon:      c.BoundToNeon,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// CapsuleHeader is the paginated listing projection returned by List —
// lighter even than CapsuleInfo, the way MemoryHeader is lighter than
// a full Memory.
type CapsuleHeader struct {
	Id            ids.CapsuleId
	Subject       string
	TotalMemories uint32
	BoundToNeon   bool
	CreatedAt     int64
}

func toHeader(c *Capsule) CapsuleHeader {
	return CapsuleHeader{
		Id:            c.Id,
		Subject:       c.Subject.Key(),
		TotalMemories: c.Metadata.TotalMemories,
		BoundToNeon:   c.BoundToNeon,
		CreatedAt:     c.CreatedAt,
	}
}

func requireView(c *Capsule, principal ids.PersonRef) error {
	if !access.HasPerm(capsuleResource(c), evalCtxFromPerson(principal), access.View) {
		return coreerrors.Unauthorized("caller lacks VIEW on capsule %s", c.Id)
	}
	return nil
}

// ReadFull implements capsules_read_full: the complete aggregate,
// requiring VIEW (granted only to owners/controllers — a capsule has
// no independent grant list).
func ReadFull(store Store, principal ids.PersonRef, id ids.CapsuleId) (*Capsule, error) {
	start := time.Now()
	defer func() { metrics.ObserveCapsuleOpDuration("capsules_read_full", time.Since(start)) }()

	c, found, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, coreerrors.NotFound("capsule:"+string(id), "capsule not found")
	}
	if err := requireView(c, principal); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadBasic implements capsules_read_basic: the thin CapsuleInfo
// projection, same VIEW gate as ReadFull.
func ReadBasic(store Store, principal ids.PersonRef, id ids.CapsuleId) (CapsuleInfo, error) {
	start := time.Now()
	defer func() { metrics.ObserveCapsuleOpDuration("capsules_read_basic", time.Since(start)) }()

	c, err := ReadFull(store, principal, id)
	if err != nil {
		return CapsuleInfo{}, err
	}
	return toInfo(c), nil
}

// List implements capsules_list: every capsule principal owns or
// controls, projected to CapsuleHeader. Unlike Paginate, this is
// scoped to the caller rather than a global cursor walk — a principal
// is rarely owner/controller of more than a handful of capsules, so no
// further pagination is offered at this layer.
func List(store Store, principal ids.PersonRef) ([]CapsuleHeader, error) {
	start := time.Now()
	defer func() { metrics.ObserveCapsuleOpDuration("capsules_list", time.Since(start)) }()

	idList, err := store.ListByOwner(principal)
	if err != nil {
		return nil, err
	}
	capsules, err := store.GetMany(idList)
	if err != nil {
		return nil, err
	}
	headers := make([]CapsuleHeader, 0, len(capsules))
	for _, c := range capsules {
		headers = append(headers, toHeader(c))
	}
	return headers, nil
}
