// Package memories implements the Memory/Asset Domain: the operations
// layered on top of the Capsule Store, Blob Store, and Access Control
// Core that create, read, update, delete, and list memories and their
// assets.
package memories

import (
	"github.com/novabloom/capsulecore/pkg/blob"
	"github.com/novabloom/capsulecore/pkg/ids"
)

// PayloadKind discriminates the tagged union memories_create and
// memories_add_asset accept.
type PayloadKind int

const (
	// PayloadInline embeds bytes directly, bounded by INLINE_MAX.
	PayloadInline PayloadKind = iota
	// PayloadBlobRef references an existing blob; the core verifies it
	// exists and matches (hash, len) without uploading anything.
	PayloadBlobRef
	// PayloadExternal stores a reference to data held by an external
	// storage system; the core performs no verification.
	PayloadExternal
)

// Payload is the tagged union accepted by Create/AddAsset.
type Payload struct {
	Kind PayloadKind

	Inline []byte // PayloadInline

	BlobRef blob.BlobRef // PayloadBlobRef

	Location   string // PayloadExternal
	StorageKey string
	Url        string
	Len        uint64
	Hash       *ids.Sha256
}
