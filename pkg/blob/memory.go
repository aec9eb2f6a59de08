package blob

import (
	"context"
	"sync"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
)

// MemoryStore is an in-memory Store, used in tests and as the
// in-process backend for the memory-only deployment profile.
type MemoryStore struct {
	mu    sync.RWMutex
	meta  map[ids.BlobId]Meta
	pages map[ids.BlobId][][]byte
	clock func() int64
}

// NewMemoryStore builds an empty MemoryStore. clock is called for each
// write's CreatedAt; pass nil to leave it zero.
func NewMemoryStore(clock func() int64) *MemoryStore {
	if clock == nil {
		clock = func() int64 { return 0 }
	}
	return &MemoryStore{
		meta:  make(map[ids.BlobId]Meta),
		pages: make(map[ids.BlobId][][]byte),
		clock: clock,
	}
}

func (s *MemoryStore) PutInline(ctx context.Context, bytes []byte) (BlobRef, error) {
	hash := ids.SumSha256(bytes)
	id := ids.NewBlobId()

	page := make([]byte, len(bytes))
	copy(page, bytes)

	s.mu.Lock()
	s.pages[id] = [][]byte{page}
	s.meta[id] = Meta{Size: uint64(len(bytes)), Sha256: hash, CreatedAt: s.clock()}
	s.mu.Unlock()

	return BlobRef{Locator: id, Hash: hash, Len: uint64(len(bytes))}, nil
}

func (s *MemoryStore) PutChunked(ctx context.Context, chunks ChunkReader, expectedLen uint64, expectedHash ids.Sha256) (BlobRef, error) {
	pages, total, err := assembleChunks(ctx, chunks, expectedLen, expectedHash)
	if err != nil {
		return BlobRef{}, err
	}

	id := ids.NewBlobId()

	s.mu.Lock()
	s.pages[id] = pages
	s.meta[id] = Meta{Size: total, Sha256: expectedHash, CreatedAt: s.clock()}
	s.mu.Unlock()

	return BlobRef{Locator: id, Hash: expectedHash, Len: total}, nil
}

func (s *MemoryStore) Read(ctx context.Context, id ids.BlobId, offset, limit uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, found := s.meta[id]
	if !found {
		return nil, coreerrors.NotFound("blob:"+string(id), "blob not found")
	}
	if offset >= meta.Size {
		return []byte{}, nil
	}

	end := offset + limit
	if limit == 0 || end > meta.Size {
		end = meta.Size
	}

	out := make([]byte, 0, end-offset)
	pages := s.pages[id]
	for pageIdx, page := range pages {
		pageStart := uint64(pageIdx) * PageSize
		pageEnd := pageStart + uint64(len(page))
		if pageEnd <= offset || pageStart >= end {
			continue
		}
		lo := uint64(0)
		if offset > pageStart {
			lo = offset - pageStart
		}
		hi := uint64(len(page))
		if pageEnd > end {
			hi = end - pageStart
		}
		out = append(out, page[lo:hi]...)
	}
	return out, nil
}

func (s *MemoryStore) GetMeta(ctx context.Context, id ids.BlobId) (Meta, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, found := s.meta[id]
	return m, found, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id ids.BlobId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta, id)
	delete(s.pages, id)
	return nil
}
