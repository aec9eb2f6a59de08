// Package blob implements the content-addressed Blob Store: immutable,
// paged byte sequences identified by a BlobId, supporting inline
// single-page writes and chunk-assembled writes with a running SHA-256
// verified against a caller-declared expectation.
//
// Every backend writes pages first and meta last, and deletes meta
// first and pages last, so a reader that observes meta for a blob
// always sees a complete blob, and a reader that observes no meta
// never sees stale pages.
package blob

import (
	"context"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
)

// PageSize is the fixed page size blobs are split into during
// chunk-assembled writes.
const PageSize = 64 * 1024

// BlobRef is a resolved reference to a stored blob, as returned by
// PutInline/PutChunked and embedded in MemoryAssetBlobInternal.
type BlobRef struct {
	Locator ids.BlobId
	Hash    ids.Sha256
	Len     uint64
}

// Meta is a blob's stored metadata.
type Meta struct {
	Size      uint64
	Sha256    ids.Sha256
	CreatedAt int64 // unix nanoseconds
}

// ChunkReader supplies the ordered chunks of a chunk-assembled write.
// The Upload Session Manager implements this over its own chunk
// storage; the Blob Store never stores chunks itself.
type ChunkReader interface {
	// NumChunks returns the number of chunks to read, in order
	// 0..NumChunks-1.
	NumChunks() uint32
	// ReadChunk returns the bytes of chunk idx.
	ReadChunk(ctx context.Context, idx uint32) ([]byte, error)
}

// Store is the Blob Store contract. Every backend (memory, badger, s3)
// implements it identically from the caller's perspective.
type Store interface {
	// PutInline writes bytes as a single-page blob. Callers are
	// expected to have already checked len(bytes) against INLINE_MAX;
	// PutInline itself does not enforce that bound.
	PutInline(ctx context.Context, bytes []byte) (BlobRef, error)

	// PutChunked assembles chunks into PageSize pages while streaming a
	// running SHA-256, then verifies the result against expectedLen and
	// expectedHash before writing meta. On mismatch it returns
	// InvalidArgument("length_mismatch") or
	// InvalidArgument("checksum_mismatch") and leaves no meta behind —
	// any pages already written are cleaned up.
	PutChunked(ctx context.Context, chunks ChunkReader, expectedLen uint64, expectedHash ids.Sha256) (BlobRef, error)

	// Read returns up to limit bytes starting at offset. It returns
	// NotFound if the blob has no meta (deleted or never created).
	Read(ctx context.Context, id ids.BlobId, offset, limit uint64) ([]byte, error)

	// GetMeta returns a blob's metadata, or found=false if absent.
	GetMeta(ctx context.Context, id ids.BlobId) (Meta, bool, error)

	// Delete removes a blob's meta, then its pages. Once meta is gone
	// the blob is considered absent even if page removal is still in
	// progress.
	Delete(ctx context.Context, id ids.BlobId) error
}

// VerifyRef checks that a candidate BlobRef's hash/len (when the hash
// is present) matches a blob actually stored in store. Used by
// memories_create's BlobRef payload variant, which references an
// existing blob without uploading.
func VerifyRef(ctx context.Context, store Store, ref BlobRef) error {
	meta, found, err := store.GetMeta(ctx, ref.Locator)
	if err != nil {
		return err
	}
	if !found {
		return coreerrors.NotFound("blob:"+string(ref.Locator), "referenced blob does not exist")
	}
	if meta.Size != ref.Len {
		return coreerrors.InvalidArgument("length_mismatch", "blob ref length %d does not match stored length %d", ref.Len, meta.Size)
	}
	if !ref.Hash.IsZero() && ref.Hash != meta.Sha256 {
		return coreerrors.InvalidArgument("checksum_mismatch", "blob ref hash does not match stored hash")
	}
	return nil
}
