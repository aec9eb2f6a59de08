package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the core.
// Use these keys consistently across all log statements so that log
// aggregation and querying stays uniform regardless of which package
// emitted the line.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Core Operations
	// ========================================================================
	KeyOperation = "operation" // Core operation name: memories_create, uploads_finish, ...
	KeyCapsuleID = "capsule_id"
	KeyMemoryID  = "memory_id"
	KeySessionID = "session_id"
	KeyBlobID    = "blob_id"
	KeyAssetID   = "asset_id"
	KeyPrincipal = "principal" // Caller's PersonRef, display form

	// ========================================================================
	// Storage
	// ========================================================================
	KeyBackend    = "backend"     // Backend implementation: memory, badger, s3
	KeySize       = "size"        // Byte size relevant to the operation
	KeyChunkIndex = "chunk_index" // Upload chunk index
	KeyOffset     = "offset"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorKind  = "error_kind"
	KeyAttempt    = "attempt"
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation returns a slog.Attr for the core operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// CapsuleID returns a slog.Attr for a capsule identifier
func CapsuleID(id string) slog.Attr {
	return slog.String(KeyCapsuleID, id)
}

// MemoryID returns a slog.Attr for a memory identifier
func MemoryID(id string) slog.Attr {
	return slog.String(KeyMemoryID, id)
}

// SessionID returns a slog.Attr for an upload session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// BlobID returns a slog.Attr for a blob identifier
func BlobID(id string) slog.Attr {
	return slog.String(KeyBlobID, id)
}

// AssetID returns a slog.Attr for an asset identifier
func AssetID(id string) slog.Attr {
	return slog.String(KeyAssetID, id)
}

// Principal returns a slog.Attr for the calling principal
func Principal(p string) slog.Attr {
	return slog.String(KeyPrincipal, p)
}

// Backend returns a slog.Attr for the storage backend name
func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}

// Size returns a slog.Attr for a byte size
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// ChunkIndex returns a slog.Attr for an upload chunk index
func ChunkIndex(idx uint32) slog.Attr {
	return slog.Any(KeyChunkIndex, idx)
}

// Offset returns a slog.Attr for a byte offset
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for the error taxonomy kind
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
