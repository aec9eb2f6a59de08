package upload

import (
	"context"
	"sort"

	"github.com/novabloom/capsulecore/internal/logger"
	"github.com/novabloom/capsulecore/pkg/blob"
	"github.com/novabloom/capsulecore/pkg/capsule"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
	"github.com/novabloom/capsulecore/pkg/metrics"
)

// sliceChunkReader implements blob.ChunkReader over chunks already
// loaded into memory, in ascending index order.
type sliceChunkReader struct {
	chunks [][]byte
}

func (r *sliceChunkReader) NumChunks() uint32 { return uint32(len(r.chunks)) }

func (r *sliceChunkReader) ReadChunk(ctx context.Context, idx uint32) ([]byte, error) {
	return r.chunks[idx], nil
}

func (m *Manager) loadOrderedChunks(id ids.SessionId) ([][]byte, error) {
	type entry struct {
		key   string
		bytes []byte
	}
	var entries []entry
	err := m.chunks.Iterate(chunkPrefix(id), func(key, value []byte) bool {
		entries = append(entries, entry{key: string(key), bytes: append([]byte{}, value...)})
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.bytes
	}
	return out, nil
}

// Finish assembles a session's chunks into a blob, attaches it to the
// owning capsule as a new Memory (or returns an existing Memory's id if
// the (capsule_id, hash, len, idem) tuple already exists), and deletes
// the session and its chunks. A failure before the capsule update
// leaves the session intact for retry, per the all-or-nothing contract.
func (m *Manager) Finish(ctx context.Context, sessionId ids.SessionId, expectedHash ids.Sha256, totalLen uint64) (ids.MemoryId, error) {
	s, found, err := m.loadSession(sessionId)
	if err != nil {
		return "", err
	}
	if !found {
		return "", coreerrors.NotFound("session:"+string(sessionId), "upload session not found")
	}
	if m.isExpired(s) {
		m.expire(s)
		return "", coreerrors.NotFound("session:"+string(sessionId), "upload session expired")
	}

	chunks, err := m.loadOrderedChunks(sessionId)
	if err != nil {
		return "", coreerrors.Wrap(coreerrors.KindInternal, "chunk_load_failed", err, "finish")
	}

	ref, err := m.blobs.PutChunked(ctx, &sliceChunkReader{chunks: chunks}, totalLen, expectedHash)
	if err != nil {
		// Session is preserved so the caller can retry finish; blob.PutChunked
		// itself has already cleaned up any partial pages on failure.
		return "", err
	}

	var memoryId ids.MemoryId
	err = m.capsules.Update(s.CapsuleId, func(c *capsule.Capsule) error {
		for _, existing := range c.Memories {
			if existing.ContentSha256 == ref.Hash && existing.ContentLength == ref.Len && existing.Idem == s.Idem {
				memoryId = existing.Id
				return nil
			}
		}

		now := m.clock()
		mem := &capsule.Memory{
			Id:        ids.NewMemoryId(),
			CapsuleId: s.CapsuleId,
			Metadata: capsule.MemoryMetadata{
				ContentType: s.Meta.MimeType,
				CreatedAt:   now,
				UpdatedAt:   now,
				UploadedAt:  now,
				AssetCount:  1,
				TotalSize:   ref.Len,
			},
			Assets: []capsule.Asset{{
				Id:       ids.NewAssetId(),
				Kind:     capsule.AssetKindBlobInternal,
				Metadata: s.Meta,
				BlobRef:  blob.BlobRef{Locator: ref.Locator, Hash: ref.Hash, Len: ref.Len},
			}},
			ContentSha256: ref.Hash,
			ContentLength: ref.Len,
			Idem:          s.Idem,
		}
		mem.RecomputeSharingStatus()

		c.Memories[mem.Id] = mem
		c.Metadata.TotalMemories = uint32(len(c.Memories))
		memoryId = mem.Id
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := m.deleteChunks(sessionId); err != nil {
		return "", coreerrors.Wrap(coreerrors.KindInternal, "chunk_delete_failed", err, "finish")
	}
	if err := m.sessions.Delete(sessionKey(sessionId)); err != nil {
		return "", coreerrors.Wrap(coreerrors.KindInternal, "session_delete_failed", err, "finish")
	}
	_ = m.sessions.Delete(idemKey(s.CapsuleId, s.Owner.Key(), s.Idem))

	opCtx := logger.WithContext(ctx, logger.NewLogContext("uploads_finish").WithCapsule(string(s.CapsuleId)).WithSession(string(sessionId)).WithMemory(string(memoryId)).WithPrincipal(s.Owner.Key()))
	logger.InfoCtx(opCtx, "upload session finished", logger.BlobID(string(ref.Locator)), logger.Size(ref.Len))
	m.metrics.RecordSessionEvent(metrics.EventFinished)
	return memoryId, nil
}
