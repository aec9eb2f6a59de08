package blob

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/novabloom/capsulecore/internal/logger"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
	"github.com/novabloom/capsulecore/pkg/metrics"
	"github.com/novabloom/capsulecore/pkg/storeprim"
)

// PersistentStore is the storeprim-backed Store: blob metadata lives in
// SlotBlobMeta, page bytes in SlotBlobPages keyed by (BlobId, page
// index). Blob ids are generated as UUIDv7 strings, the same scheme
// used everywhere else in the core, so SlotBlobCounter is reserved but
// unused by this backend.
type PersistentStore struct {
	meta    storeprim.VirtualMemory
	pages   storeprim.VirtualMemory
	clock   func() int64
	metrics *metrics.Metrics
}

// SetMetrics attaches a metrics collector, or detaches one with nil.
// Every recording call on a PersistentStore already tolerates a nil
// collector, so this is safe to skip entirely.
func (s *PersistentStore) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// NewPersistentStore builds a Store over the given Manager's
// SlotBlobMeta/SlotBlobPages slots. clock supplies CreatedAt for new
// blobs; pass nil to leave it zero (the blob package itself never calls
// time.Now, so a caller wanting wall-clock times passes its own
// closure).
func NewPersistentStore(m *storeprim.Manager, clock func() int64) (*PersistentStore, error) {
	meta, err := m.Get(storeprim.SlotBlobMeta)
	if err != nil {
		return nil, err
	}
	pages, err := m.Get(storeprim.SlotBlobPages)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = func() int64 { return 0 }
	}
	return &PersistentStore{meta: meta, pages: pages, clock: clock}, nil
}

func pageKey(id ids.BlobId, idx uint32) []byte {
	key := make([]byte, 0, len(id)+1+4)
	key = append(key, []byte(id)...)
	key = append(key, ':')
	key = binary.BigEndian.AppendUint32(key, idx)
	return key
}

func (s *PersistentStore) writePages(id ids.BlobId, pages [][]byte) error {
	for idx, page := range pages {
		if err := s.pages.Set(pageKey(id, uint32(idx)), page); err != nil {
			return fmt.Errorf("blob: write page %d: %w", idx, err)
		}
	}
	return nil
}

func (s *PersistentStore) writeMeta(id ids.BlobId, meta Meta) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("blob: encode meta: %w", err)
	}
	if err := s.meta.Set([]byte(id), encoded); err != nil {
		return fmt.Errorf("blob: write meta: %w", err)
	}
	return nil
}

func (s *PersistentStore) deletePages(id ids.BlobId, numPages int) {
	for idx := 0; idx < numPages; idx++ {
		_ = s.pages.Delete(pageKey(id, uint32(idx)))
	}
}

func (s *PersistentStore) PutInline(ctx context.Context, bytes []byte) (BlobRef, error) {
	hash := ids.SumSha256(bytes)
	id := ids.NewBlobId()

	page := make([]byte, len(bytes))
	copy(page, bytes)

	// Pages before meta: a crash here leaves an orphaned page with no
	// meta pointing at it, which is harmless and invisible to readers.
	if err := s.writePages(id, [][]byte{page}); err != nil {
		s.metrics.RecordBlobOp("badger", metrics.OpPutInline, metrics.StatusError)
		return BlobRef{}, coreerrors.Wrap(coreerrors.KindInternal, "page_write_failed", err, "put inline")
	}
	meta := Meta{Size: uint64(len(bytes)), Sha256: hash, CreatedAt: s.clock()}
	if err := s.writeMeta(id, meta); err != nil {
		s.deletePages(id, 1)
		s.metrics.RecordBlobOp("badger", metrics.OpPutInline, metrics.StatusError)
		return BlobRef{}, coreerrors.Wrap(coreerrors.KindInternal, "meta_write_failed", err, "put inline")
	}

	logger.Info("blob put inline", logger.Backend("badger"), logger.BlobID(string(id)), logger.Size(uint64(len(bytes))))
	s.metrics.RecordBlobBytes("badger", metrics.OpPutInline, uint64(len(bytes)))
	s.metrics.RecordBlobOp("badger", metrics.OpPutInline, metrics.StatusOK)
	return BlobRef{Locator: id, Hash: hash, Len: uint64(len(bytes))}, nil
}

func (s *PersistentStore) PutChunked(ctx context.Context, chunks ChunkReader, expectedLen uint64, expectedHash ids.Sha256) (BlobRef, error) {
	pages, total, err := assembleChunks(ctx, chunks, expectedLen, expectedHash)
	if err != nil {
		return BlobRef{}, err
	}

	id := ids.NewBlobId()

	if err := s.writePages(id, pages); err != nil {
		s.deletePages(id, len(pages))
		s.metrics.RecordBlobOp("badger", metrics.OpPutChunked, metrics.StatusError)
		return BlobRef{}, coreerrors.Wrap(coreerrors.KindInternal, "page_write_failed", err, "put chunked")
	}
	meta := Meta{Size: total, Sha256: expectedHash, CreatedAt: s.clock()}
	if err := s.writeMeta(id, meta); err != nil {
		s.deletePages(id, len(pages))
		s.metrics.RecordBlobOp("badger", metrics.OpPutChunked, metrics.StatusError)
		return BlobRef{}, coreerrors.Wrap(coreerrors.KindInternal, "meta_write_failed", err, "put chunked")
	}

	logger.Info("blob put chunked", logger.Backend("badger"), logger.BlobID(string(id)), logger.Size(total))
	s.metrics.RecordBlobBytes("badger", metrics.OpPutChunked, total)
	s.metrics.RecordBlobOp("badger", metrics.OpPutChunked, metrics.StatusOK)
	return BlobRef{Locator: id, Hash: expectedHash, Len: total}, nil
}

func (s *PersistentStore) readMeta(id ids.BlobId) (Meta, bool, error) {
	raw, found, err := s.meta.Get([]byte(id))
	if err != nil {
		return Meta{}, false, coreerrors.Wrap(coreerrors.KindInternal, "meta_read_failed", err, "get meta")
	}
	if !found {
		return Meta{}, false, nil
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return Meta{}, false, coreerrors.Wrap(coreerrors.KindInternal, "meta_decode_failed", err, "decode meta")
	}
	return m, true, nil
}

func (s *PersistentStore) Read(ctx context.Context, id ids.BlobId, offset, limit uint64) ([]byte, error) {
	meta, found, err := s.readMeta(id)
	if err != nil {
		return nil, err
	}
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

	numPages := int((meta.Size + PageSize - 1) / PageSize)
	out := make([]byte, 0, end-offset)
	for idx := 0; idx < numPages; idx++ {
		pageStart := uint64(idx) * PageSize
		raw, found, err := s.pages.Get(pageKey(id, uint32(idx)))
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindInternal, "page_read_failed", err, "read page %d", idx)
		}
		if !found {
			return nil, coreerrors.Internal("missing_page", "blob %s missing page %d with meta present", id, idx)
		}
		pageEnd := pageStart + uint64(len(raw))
		if pageEnd <= offset || pageStart >= end {
			continue
		}
		lo := uint64(0)
		if offset > pageStart {
			lo = offset - pageStart
		}
		hi := uint64(len(raw))
		if pageEnd > end {
			hi = end - pageStart
		}
		out = append(out, raw[lo:hi]...)
	}
	return out, nil
}

func (s *PersistentStore) GetMeta(ctx context.Context, id ids.BlobId) (Meta, bool, error) {
	return s.readMeta(id)
}

func (s *PersistentStore) Delete(ctx context.Context, id ids.BlobId) error {
	meta, found, err := s.readMeta(id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	// Meta first, pages last: once meta is gone the blob is absent to
	// every reader even if page deletion below is interrupted.
	if err := s.meta.Delete([]byte(id)); err != nil {
		s.metrics.RecordBlobOp("badger", metrics.OpDelete, metrics.StatusError)
		return coreerrors.Wrap(coreerrors.KindInternal, "meta_delete_failed", err, "delete meta")
	}
	numPages := int((meta.Size + PageSize - 1) / PageSize)
	s.deletePages(id, numPages)
	logger.Info("blob deleted", logger.Backend("badger"), logger.BlobID(string(id)), logger.Size(meta.Size))
	s.metrics.RecordBlobBytes("badger", metrics.OpDelete, meta.Size)
	s.metrics.RecordBlobOp("badger", metrics.OpDelete, metrics.StatusOK)
	return nil
}
