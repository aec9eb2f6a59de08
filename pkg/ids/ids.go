// Package ids defines the identifier and primitive value types shared
// across the capsule storage core: opaque, tenant-unique identifiers
// for capsules, memories, sessions, blobs, and assets; the PersonRef
// tagged union; and the fixed-size Sha256 digest.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// CapsuleId uniquely identifies a Capsule within a tenant. SHOULD be a
// UUIDv7 so lexicographic order matches creation order, which keyset
// pagination depends on.
type CapsuleId string

// MemoryId uniquely identifies a Memory within a tenant.
type MemoryId string

// SessionId uniquely identifies an upload Session.
type SessionId string

// BlobId uniquely identifies a Blob.
type BlobId string

// AssetId uniquely identifies an asset within a Memory.
type AssetId string

// FolderId uniquely identifies a Folder within a capsule.
type FolderId string

// GalleryId uniquely identifies a Gallery within a capsule.
type GalleryId string

// NewCapsuleId generates a time-ordered CapsuleId.
func NewCapsuleId() CapsuleId { return CapsuleId(newUUIDv7()) }

// NewMemoryId generates a time-ordered MemoryId.
func NewMemoryId() MemoryId { return MemoryId(newUUIDv7()) }

// NewSessionId generates a SessionId. Sessions are short-lived and do
// not need time ordering for pagination, but UUIDv7 costs nothing extra
// and keeps id generation uniform across the core.
func NewSessionId() SessionId { return SessionId(newUUIDv7()) }

// NewBlobId generates a BlobId.
func NewBlobId() BlobId { return BlobId(newUUIDv7()) }

// NewAssetId generates an AssetId.
func NewAssetId() AssetId { return AssetId(newUUIDv7()) }

// NewFolderId generates a FolderId.
func NewFolderId() FolderId { return FolderId(newUUIDv7()) }

// NewGalleryId generates a GalleryId.
func NewGalleryId() GalleryId { return GalleryId(newUUIDv7()) }

func newUUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system entropy source is broken,
		// which is unrecoverable for a storage core that depends on
		// unique identifiers for correctness.
		panic(fmt.Sprintf("ids: failed to generate uuidv7: %v", err))
	}
	return id.String()
}

// PersonRefKind discriminates the PersonRef tagged union.
type PersonRefKind int

const (
	// PersonRefPrincipal identifies a cryptographic principal (29 raw
	// bytes, as used by principal-addressed identity systems).
	PersonRefPrincipal PersonRefKind = iota
	// PersonRefOpaque identifies a principal by an opaque string handed
	// in by the authentication collaborator.
	PersonRefOpaque
)

// PersonRef is a tagged reference to a principal: either a 29-byte
// cryptographic principal or an opaque string identifier. Exactly one
// of Principal/Opaque is meaningful, selected by Kind.
type PersonRef struct {
	Kind      PersonRefKind
	Principal [29]byte
	Opaque    string
}

// NewPrincipalRef builds a PersonRef from 29 raw principal bytes.
func NewPrincipalRef(b [29]byte) PersonRef {
	return PersonRef{Kind: PersonRefPrincipal, Principal: b}
}

// NewOpaqueRef builds a PersonRef from an opaque string identifier.
// The string MUST be non-empty — callers validate before constructing
// one, since an empty opaque ref is indistinguishable from "no ref" in
// index keys.
func NewOpaqueRef(s string) PersonRef {
	return PersonRef{Kind: PersonRefOpaque, Opaque: s}
}

// IsEmpty reports whether r carries no identifying data at all (the
// zero value). Capsule store callers reject an empty subject/owner
// ref before it reaches an index.
func (r PersonRef) IsEmpty() bool {
	if r.Kind == PersonRefOpaque {
		return r.Opaque == ""
	}
	return r.Principal == [29]byte{}
}

// Key returns a stable, comparable string form of r suitable for use as
// a map key or index key.
func (r PersonRef) Key() string {
	switch r.Kind {
	case PersonRefPrincipal:
		return "principal:" + hex.EncodeToString(r.Principal[:])
	default:
		return "opaque:" + r.Opaque
	}
}

// String renders r for logs and display.
func (r PersonRef) String() string {
	return r.Key()
}

// Equal reports whether r and other refer to the same principal.
func (r PersonRef) Equal(other PersonRef) bool {
	return r.Key() == other.Key()
}

// Sha256 is a fixed 32-byte SHA-256 digest.
type Sha256 [32]byte

// SumSha256 computes the SHA-256 digest of data.
func SumSha256(data []byte) Sha256 {
	return Sha256(sha256.Sum256(data))
}

// String renders the digest as 64 lowercase hex characters.
func (h Sha256) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero digest (never a valid SHA-256
// of any input of length > 0, but used as a sentinel for "no hash
// computed yet").
func (h Sha256) IsZero() bool {
	return h == Sha256{}
}

// ParseSha256 decodes a 64-character hex string into a Sha256.
func ParseSha256(s string) (Sha256, error) {
	var h Sha256
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("ids: invalid sha256 hex: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("ids: sha256 must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}
