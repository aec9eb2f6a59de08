// Package capsule implements the Capsule Store: the per-tenant
// aggregate root holding memories, galleries, and folders, its
// subject/owner secondary indexes, and the backends (in-memory,
// storeprim-backed) that persist it.
package capsule

import (
	"github.com/novabloom/capsulecore/pkg/access"
	"github.com/novabloom/capsulecore/pkg/blob"
	"github.com/novabloom/capsulecore/pkg/ids"
)

// OwnerState and ControllerState are presently empty markers — the
// data model reserves them for future per-owner metadata (invite
// timestamps, display name overrides) not required by this spec.
type OwnerState struct{}
type ControllerState struct{}

// CapsuleMetadata carries cached counters and the per-capsule role
// display templates. total_memories and inline_bytes_used are
// recomputed on every mutation, never trusted from a caller.
type CapsuleMetadata struct {
	TotalMemories     uint32
	InlineBytesUsed   uint64
	TotalStorageUsed  uint64
	RoleTemplates     map[access.Role]access.Perm
}

// DefaultRoleTemplates returns the built-in display-only role → perm
// mapping assigned to every new capsule. Evaluation never consults
// this map; it exists purely so a UI can label a grant "Admin" instead
// of printing a raw bitmask.
func DefaultRoleTemplates() map[access.Role]access.Perm {
	return map[access.Role]access.Perm{
		access.RoleOwner:      access.OwnerMask,
		access.RoleSuperAdmin: access.OwnerMask &^ access.Own,
		access.RoleAdmin:      access.View | access.Download | access.Share | access.Manage,
		access.RoleMember:     access.View | access.Download,
		access.RoleGuest:      access.View,
	}
}

// Capsule is the aggregate root scoping all memories, galleries, and
// folders of a single subject.
type Capsule struct {
	Id           ids.CapsuleId
	Subject      ids.PersonRef
	Owners       map[string]ids.PersonRef // keyed by PersonRef.Key()
	Controllers  map[string]ids.PersonRef
	Memories     map[ids.MemoryId]*Memory
	Galleries    map[ids.GalleryId]*Gallery
	Folders      map[ids.FolderId]*Folder
	Metadata     CapsuleMetadata
	CreatedAt    int64
	UpdatedAt    int64
	BoundToNeon  bool
}

// OwnerKeySet returns the union of owners and controllers as the key
// set the access evaluator's ownership fast-path checks against.
func (c *Capsule) OwnerKeySet() map[string]bool {
	keys := make(map[string]bool, len(c.Owners)+len(c.Controllers))
	for k := range c.Owners {
		keys[k] = true
	}
	for k := range c.Controllers {
		keys[k] = true
	}
	return keys
}

// Folder is a lightweight named grouping within a capsule.
type Folder struct {
	Id             ids.FolderId
	CapsuleId      ids.CapsuleId
	Name           string
	ParentFolderId *ids.FolderId
	CreatedAt      int64
	UpdatedAt      int64
}

// Gallery is a named, ordered collection of memories within a capsule.
type Gallery struct {
	Id             ids.GalleryId
	CapsuleId      ids.CapsuleId
	Name           string
	MemoryIds      []ids.MemoryId
	CoverMemoryId  *ids.MemoryId
	CreatedAt      int64
	UpdatedAt      int64
}

// SharingStatus is derived from a memory's access entries and public
// policy, recomputed on every write — never stored independently of
// that derivation.
type SharingStatus int

const (
	SharingPrivate SharingStatus = iota
	SharingShared
	SharingPublic
)

// MemoryType classifies what kind of content a memory holds.
type MemoryType int

const (
	MemoryTypeImage MemoryType = iota
	MemoryTypeVideo
	MemoryTypeAudio
	MemoryTypeDocument
	MemoryTypeNote
)

// MemoryMetadata carries a memory's descriptive fields plus cached
// dashboard counters, recomputed on every write.
type MemoryMetadata struct {
	MemoryType          MemoryType
	Title               string
	Description         string
	ContentType         string
	CreatedAt           int64
	UpdatedAt           int64
	UploadedAt          int64
	DateOfMemory        *int64
	FileCreatedAt       *int64
	ParentFolderId      *ids.FolderId
	Tags                []string
	PeopleInMemory      []string
	Location            string
	MemoryNotes         string
	CreatedBy           string
	DatabaseStorageEdges []string

	SharedCount    uint32
	SharingStatus  SharingStatus
	TotalSize      uint64
	AssetCount     uint32
	PlaceholderData []byte // base64-decodable LQIP, kept raw here
}

// AssetType classifies an asset's role within its memory.
type AssetType int

const (
	AssetOriginal AssetType = iota
	AssetDisplay
	AssetThumbnail
	AssetPreview
	AssetDerivative
	AssetMetadataKind
)

// AssetMetadata is the common envelope carried by every asset
// variant, regardless of storage kind.
type AssetMetadata struct {
	Name              string
	Description       string
	Tags              []string
	AssetType         AssetType
	Bytes             uint64
	MimeType          string
	Sha256            *ids.Sha256
	Width             *uint32
	Height            *uint32
	Url               string
	StorageKey        string
	Bucket            string
	AssetLocation     string
	ProcessingStatus  string
	ProcessingError   string
	CreatedAt         int64
	UpdatedAt         int64
	DeletedAt         *int64
}

// AssetKind discriminates the three storage kinds an asset may take.
type AssetKind int

const (
	AssetKindInline AssetKind = iota
	AssetKindBlobInternal
	AssetKindBlobExternal
)

// Asset is a tagged union over the three storage kinds. Exactly one of
// Bytes/BlobRef/(Location,StorageKey) is meaningful, selected by Kind.
type Asset struct {
	Id       ids.AssetId
	Kind     AssetKind
	Metadata AssetMetadata

	Bytes []byte // AssetKindInline

	BlobRef blob.BlobRef // AssetKindBlobInternal

	Location   string // AssetKindBlobExternal
	StorageKey string
	Url        string
}

// Memory aggregates zero or more assets under one set of access
// controls.
type Memory struct {
	Id            ids.MemoryId
	CapsuleId     ids.CapsuleId
	Metadata      MemoryMetadata
	Assets        []Asset
	AccessEntries []access.AccessEntry
	PublicPolicy  *access.PublicPolicy

	// ContentSha256/ContentLength/Idem form the idempotency tuple
	// (capsule_id, content_sha256, content_length, idem) that
	// memories_create dedupes against. Populated from the memory's
	// first asset at creation time.
	ContentSha256 ids.Sha256
	ContentLength uint64
	Idem          string
}

// AsResource projects m into the shape the access evaluator consumes.
func (m *Memory) AsResource(ownerKeys map[string]bool) access.Resource {
	return access.Resource{
		OwnerKeys:    ownerKeys,
		Entries:      m.AccessEntries,
		PublicPolicy: m.PublicPolicy,
	}
}

// RecomputeSharingStatus derives Metadata.SharingStatus from the
// memory's current access entries and public policy. Capsule Store
// callers invoke this after every mutation to m's grants.
func (m *Memory) RecomputeSharingStatus() {
	if m.PublicPolicy != nil && m.PublicPolicy.Mode != access.PublicPrivate {
		m.Metadata.SharingStatus = SharingPublic
		return
	}
	if len(m.AccessEntries) > 0 {
		m.Metadata.SharingStatus = SharingShared
		return
	}
	m.Metadata.SharingStatus = SharingPrivate
}
