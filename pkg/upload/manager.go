package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/novabloom/capsulecore/internal/logger"
	"github.com/novabloom/capsulecore/pkg/blob"
	"github.com/novabloom/capsulecore/pkg/capsule"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
	"github.com/novabloom/capsulecore/pkg/metrics"
	"github.com/novabloom/capsulecore/pkg/storeprim"
)

// Manager is the Upload Session Manager. One Manager is shared by every
// request; sessions and chunks live in storeprim slots so they survive
// process restarts exactly like the Capsule Store and Blob Store.
type Manager struct {
	sessions   storeprim.VirtualMemory
	chunks     storeprim.VirtualMemory
	capsules   capsule.Store
	blobs      blob.Store
	sessionTTL time.Duration
	clock      func() int64 // unix nanoseconds
	metrics    *metrics.Metrics
}

// SetMetrics attaches a metrics collector, or detaches one with nil.
func (m *Manager) SetMetrics(collector *metrics.Metrics) {
	m.metrics = collector
}

// NewManager builds a Manager over m's upload-related slots.
// sessionTTL is the default session lifetime (SESSION_TTL_NS, 24h by
// default); clock supplies the current time in unix nanoseconds.
func NewManager(m *storeprim.Manager, capsules capsule.Store, blobs blob.Store, sessionTTL time.Duration, clock func() int64) (*Manager, error) {
	sessions, err := m.Get(storeprim.SlotSessions)
	if err != nil {
		return nil, err
	}
	chunks, err := m.Get(storeprim.SlotChunks)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = func() int64 { return 0 }
	}
	return &Manager{sessions: sessions, chunks: chunks, capsules: capsules, blobs: blobs, sessionTTL: sessionTTL, clock: clock}, nil
}

func (m *Manager) loadSession(id ids.SessionId) (*Session, bool, error) {
	raw, found, err := m.sessions.Get(sessionKey(id))
	if err != nil {
		return nil, false, coreerrors.Wrap(coreerrors.KindInternal, "session_read_failed", err, "load session")
	}
	if !found {
		return nil, false, nil
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, coreerrors.Wrap(coreerrors.KindInternal, "session_decode_failed", err, "load session")
	}
	return &s, true, nil
}

func (m *Manager) saveSession(s *Session) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("upload: encode session: %w", err)
	}
	if err := m.sessions.Set(sessionKey(s.Id), encoded); err != nil {
		return fmt.Errorf("upload: write session: %w", err)
	}
	return nil
}

func (m *Manager) isExpired(s *Session) bool {
	return m.sessionTTL > 0 && m.clock()-s.CreatedAt > m.sessionTTL.Nanoseconds()
}

// expire deletes an expired session's chunks, session record, and idem
// index entry, ignoring any delete errors.
func (m *Manager) expire(s *Session) {
	_ = m.deleteChunks(s.Id)
	_ = m.sessions.Delete(sessionKey(s.Id))
	_ = m.sessions.Delete(idemKey(s.CapsuleId, s.Owner.Key(), s.Idem))
}

func (m *Manager) deleteChunks(id ids.SessionId) error {
	var keys [][]byte
	if err := m.chunks.Iterate(chunkPrefix(id), func(key, _ []byte) bool {
		keys = append(keys, append([]byte{}, key...))
		return true
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := m.chunks.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Begin creates a Session, or returns the existing one for the same
// (capsule_id, owner, idem) tuple if still live.
func (m *Manager) Begin(ctx context.Context, capsuleId ids.CapsuleId, owner ids.PersonRef, meta capsule.AssetMetadata, expectedChunks *uint32, idem string) (ids.SessionId, error) {
	key := idemKey(capsuleId, owner.Key(), idem)
	if raw, found, err := m.sessions.Get(key); err != nil {
		return "", coreerrors.Wrap(coreerrors.KindInternal, "idem_read_failed", err, "begin")
	} else if found {
		existingId := ids.SessionId(raw)
		existing, found, err := m.loadSession(existingId)
		if err != nil {
			return "", err
		}
		if found {
			if m.isExpired(existing) {
				m.expire(existing)
			} else {
				return existingId, nil
			}
		}
	}

	s := &Session{
		Id:         ids.NewSessionId(),
		CapsuleId:  capsuleId,
		CreatedAt:  m.clock(),
		Idem:       idem,
		Owner:      owner,
		Meta:       meta,
	}
	if expectedChunks != nil {
		s.ChunksExpected = *expectedChunks
	}

	if err := m.saveSession(s); err != nil {
		return "", coreerrors.Wrap(coreerrors.KindInternal, "session_write_failed", err, "begin")
	}
	if err := m.sessions.Set(key, []byte(s.Id)); err != nil {
		return "", coreerrors.Wrap(coreerrors.KindInternal, "idem_write_failed", err, "begin")
	}

	opCtx := logger.WithContext(ctx, logger.NewLogContext("uploads_begin").WithCapsule(string(capsuleId)).WithSession(string(s.Id)).WithPrincipal(owner.Key()))
	logger.InfoCtx(opCtx, "upload session opened", logger.ChunkIndex(s.ChunksExpected))
	m.metrics.RecordSessionEvent(metrics.EventBegun)
	return s.Id, nil
}

// PutChunk appends chunk idx to an active session, requiring it
// exist and not be expired, and rejecting a duplicate index with
// Conflict. maxChunkSize enforces CHUNK_SIZE from the caller's config.
func (m *Manager) PutChunk(ctx context.Context, sessionId ids.SessionId, idx uint32, data []byte, maxChunkSize uint64) error {
	s, found, err := m.loadSession(sessionId)
	if err != nil {
		return err
	}
	if !found {
		return coreerrors.NotFound("session:"+string(sessionId), "upload session not found")
	}
	if m.isExpired(s) {
		m.expire(s)
		return coreerrors.NotFound("session:"+string(sessionId), "upload session expired")
	}
	if uint64(len(data)) > maxChunkSize {
		return coreerrors.InvalidArgument("chunk_too_large", "chunk of %d bytes exceeds limit of %d", len(data), maxChunkSize)
	}

	key := chunkKey(sessionId, idx)
	if _, found, err := m.chunks.Get(key); err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "chunk_read_failed", err, "put chunk")
	} else if found {
		opCtx := logger.WithContext(ctx, logger.NewLogContext("uploads_put_chunk").WithSession(string(sessionId)))
		logger.ErrorCtx(opCtx, "duplicate chunk index rejected", logger.ChunkIndex(idx))
		m.metrics.RecordSessionEvent(metrics.EventChunkRejected)
		return coreerrors.Conflict("duplicate_chunk_index", "chunk index %d already written for session %s", idx, sessionId)
	}

	if err := m.chunks.Set(key, data); err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "chunk_write_failed", err, "put chunk")
	}
	return nil
}

// Abort deletes a session's chunks and record. Idempotent: aborting an
// absent session is not an error.
func (m *Manager) Abort(ctx context.Context, sessionId ids.SessionId) error {
	s, found, err := m.loadSession(sessionId)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if err := m.deleteChunks(sessionId); err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "chunk_delete_failed", err, "abort")
	}
	if err := m.sessions.Delete(sessionKey(sessionId)); err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "session_delete_failed", err, "abort")
	}
	_ = m.sessions.Delete(idemKey(s.CapsuleId, s.Owner.Key(), s.Idem))

	opCtx := logger.WithContext(ctx, logger.NewLogContext("uploads_abort").WithCapsule(string(s.CapsuleId)).WithSession(string(sessionId)))
	logger.InfoCtx(opCtx, "upload session aborted")
	m.metrics.RecordSessionEvent(metrics.EventAborted)
	return nil
}

// SweepExpired scans every session and garbage-collects those past
// sessionTTL. No background goroutine runs this implicitly — an
// operator schedules it, or it happens lazily on the next Begin/PutChunk
// that touches the same idempotency tuple.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	var expired []*Session
	err := m.sessions.Iterate([]byte("s:"), func(_, raw []byte) bool {
		var s Session
		if json.Unmarshal(raw, &s) == nil && m.isExpired(&s) {
			expired = append(expired, &s)
		}
		return true
	})
	if err != nil {
		return 0, coreerrors.Wrap(coreerrors.KindInternal, "sweep_iterate_failed", err, "sweep expired")
	}
	for _, s := range expired {
		m.expire(s)
	}

	if len(expired) > 0 {
		opCtx := logger.WithContext(ctx, logger.NewLogContext("uploads_sweep_expired"))
		logger.InfoCtx(opCtx, "expired upload sessions reaped", logger.Size(uint64(len(expired))))
		m.metrics.RecordSessionEvents(metrics.EventExpired, len(expired))
	}
	return len(expired), nil
}
