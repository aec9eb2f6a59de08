// Package access implements the Access Control Core: a pure,
// side-effect-free evaluator over a resource's ownership, grants, and
// public policy. It does no I/O and mutates nothing — callers resolve
// group membership and magic-link lookups beforehand and hand the
// results in through EvalContext.
package access

// Perm is a bitmask of grantable permissions.
type Perm uint32

const (
	View    Perm = 1 << 0
	Download Perm = 1 << 1
	Share   Perm = 1 << 2
	Manage  Perm = 1 << 3
	Own     Perm = 1 << 4

	// OwnerMask is the fast-path mask granted to a resource's capsule
	// owners and controllers: every bit.
	OwnerMask = View | Download | Share | Manage | Own
)

// Has reports whether mask carries every bit of want.
func Has(mask, want Perm) bool {
	return mask&want == want
}

// GrantSource discriminates how an AccessEntry's permission was
// granted.
type GrantSource int

const (
	GrantUser GrantSource = iota
	GrantGroup
	GrantMagicLink
	GrantPublicMode
	GrantSystem
)

// Role is a display-only label; evaluation never consults it, only
// PermMask.
type Role int

const (
	RoleOwner Role = iota
	RoleSuperAdmin
	RoleAdmin
	RoleMember
	RoleGuest
)

// AccessEntry grants perm_mask to person_ref on a resource.
type AccessEntry struct {
	Id          string
	PersonKey   string // ids.PersonRef.Key()
	GrantSource GrantSource
	SourceId    string // group id for GrantGroup, link hash for GrantMagicLink
	Role        Role
	PermMask    Perm
	InvitedBy   string
	CreatedAt   int64
	UpdatedAt   int64
}

// PublicMode selects how a resource's public policy is reachable.
type PublicMode int

const (
	// PublicPrivate means the public policy grants nothing.
	PublicPrivate PublicMode = iota
	// PublicAuth is reachable by any authenticated principal.
	PublicAuth
	// PublicLink is reachable by anyone holding a valid magic link,
	// authenticated or not.
	PublicLink
)

// PublicPolicy grants perm_mask to whoever can reach mode.
type PublicPolicy struct {
	Mode      PublicMode
	PermMask  Perm
	CreatedAt int64
	UpdatedAt int64
}

// ResolvedLink is the outcome of a magic-link lookup, performed by the
// caller (the evaluator never hashes or looks up a token itself).
type ResolvedLink struct {
	PermMask Perm
	Valid    bool // false if expired, revoked, or exhausted
}

// EvalContext carries everything the evaluator needs about the caller,
// already resolved by the transport/caller: who they are, which groups
// they belong to, whether they're authenticated, and the outcome of any
// magic-link lookup.
type EvalContext struct {
	PrincipalKey    string // "" if unauthenticated
	Groups          map[string]bool
	Link            *ResolvedLink
	IsAuthenticated bool
}

// Resource is the minimal view of a capsule-scoped resource the
// evaluator needs: its capsule's owner/controller set, its own access
// entries, and its own public policy.
type Resource struct {
	OwnerKeys    map[string]bool // capsule owners ∪ controllers, by PersonRef.Key()
	Entries      []AccessEntry
	PublicPolicy *PublicPolicy
}

// EffectivePermMask evaluates the five ordered rules from the access
// control design and returns the caller's effective permission mask
// for resource under ctx.
func EffectivePermMask(resource Resource, ctx EvalContext) Perm {
	if ctx.PrincipalKey != "" && resource.OwnerKeys[ctx.PrincipalKey] {
		return OwnerMask
	}

	var mask Perm

	for _, e := range resource.Entries {
		if e.GrantSource == GrantUser && ctx.PrincipalKey != "" && e.PersonKey == ctx.PrincipalKey {
			mask |= e.PermMask
		}
	}

	for _, e := range resource.Entries {
		if e.GrantSource == GrantGroup && ctx.Groups[e.SourceId] {
			mask |= e.PermMask
		}
	}

	if ctx.Link != nil && ctx.Link.Valid {
		mask |= ctx.Link.PermMask
	}

	if resource.PublicPolicy != nil {
		switch resource.PublicPolicy.Mode {
		case PublicAuth:
			if ctx.IsAuthenticated {
				mask |= resource.PublicPolicy.PermMask
			}
		case PublicLink:
			if ctx.Link != nil && ctx.Link.Valid {
				mask |= resource.PublicPolicy.PermMask
			}
		}
	}

	return mask
}

// HasPerm reports whether the caller's effective mask for resource
// under ctx carries every bit of want.
func HasPerm(resource Resource, ctx EvalContext, want Perm) bool {
	return Has(EffectivePermMask(resource, ctx), want)
}
