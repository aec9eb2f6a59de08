// Package upload implements the Upload Session Manager: resumable,
// crash-safe chunked ingest with idempotent begin, duplicate-chunk
// rejection, and an all-or-nothing finish that assembles a blob and
// attaches it to a capsule's memories.
package upload

import (
	"github.com/novabloom/capsulecore/pkg/capsule"
	"github.com/novabloom/capsulecore/pkg/ids"
)

// Session is a resumable chunked-upload handle. Sessions are terminal —
// finish or abort always ends with the session deleted.
type Session struct {
	Id                 ids.SessionId
	CapsuleId          ids.CapsuleId
	ProvisionalMemoryId *ids.MemoryId
	ExpectedLen        *uint64
	ExpectedHash       *ids.Sha256
	CreatedAt          int64
	ChunksExpected     uint32
	Idem               string
	Owner              ids.PersonRef
	Meta               capsule.AssetMetadata
}
