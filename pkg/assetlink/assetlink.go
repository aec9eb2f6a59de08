// Package assetlink mints and verifies stateless, time-bounded access
// tokens for memory assets. A minted token is
// base64url(HMAC-SHA256(secret, canonical_form)); the canonical form
// is the minimal byte concatenation of memory_id, asset_id,
// expires_at_ns, and an audience tag. Verification re-derives the HMAC
// from the claimed fields and compares in constant time — no state is
// kept, and no database lookup is required on the read path.
package assetlink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/novabloom/capsulecore/pkg/ids"
)

const (
	// TokenTTLListing is applied to AssetLinks minted as part of a
	// listing response.
	TokenTTLListing = 30 * time.Minute
	// TokenTTLOnDemand is applied to AssetLinks minted for a single
	// on-demand token request.
	TokenTTLOnDemand = 3 * time.Minute
)

// Kind selects which rendition of an asset a link points to.
type Kind string

const (
	KindThumbnail Kind = "thumbnail"
	KindDisplay   Kind = "display"
	KindOriginal  Kind = "original"
)

// AssetLink is a signed relative path plus enough metadata for a
// client to render it without a further round trip.
type AssetLink struct {
	Path        string
	Token       string
	ExpiresAtNs int64
	ContentType string
	Width       *uint32
	Height      *uint32
	Bytes       *uint64
	AssetKind   Kind
	AssetId     ids.AssetId
	Etag        string
}

// Minter signs and verifies asset tokens under a single shared secret.
// The zero value is not usable; construct with NewMinter.
type Minter struct {
	secret    []byte
	pathStyle func(memoryId ids.MemoryId, assetId ids.AssetId) string
}

// NewMinter builds a Minter. pathStyle renders the relative path an
// AssetLink's Path field carries; callers typically point this at
// their HTTP read-path route template.
func NewMinter(secret []byte, pathStyle func(ids.MemoryId, ids.AssetId) string) *Minter {
	return &Minter{secret: secret, pathStyle: pathStyle}
}

// canonicalForm builds memory_id‖asset_id‖expires_at_ns‖audience_tag.
func canonicalForm(memoryId ids.MemoryId, assetId ids.AssetId, expiresAtNs int64, audienceTag string) []byte {
	buf := make([]byte, 0, len(memoryId)+len(assetId)+8+len(audienceTag))
	buf = append(buf, memoryId...)
	buf = append(buf, assetId...)
	var expBytes [8]byte
	binary.BigEndian.PutUint64(expBytes[:], uint64(expiresAtNs))
	buf = append(buf, expBytes[:]...)
	buf = append(buf, audienceTag...)
	return buf
}

func (m *Minter) sign(memoryId ids.MemoryId, assetId ids.AssetId, expiresAtNs int64, audienceTag string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write(canonicalForm(memoryId, assetId, expiresAtNs, audienceTag))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(mac.Sum(nil))
}

// Mint produces a single AssetLink for one rendition of one asset,
// valid for ttl starting at now.
func (m *Minter) Mint(now time.Time, memoryId ids.MemoryId, assetId ids.AssetId, kind Kind, contentType string, audienceTag string, ttl time.Duration) AssetLink {
	expiresAtNs := now.Add(ttl).UnixNano()
	return AssetLink{
		Path:        m.pathStyle(memoryId, assetId),
		Token:       m.sign(memoryId, assetId, expiresAtNs, audienceTag),
		ExpiresAtNs: expiresAtNs,
		ContentType: contentType,
		AssetKind:   kind,
		AssetId:     assetId,
	}
}

// Verify reports whether token is a currently-valid signature over
// the claimed (memoryId, assetId, expiresAtNs, audienceTag) tuple.
// Expiry is checked against now; a token signed for a past
// expires_at_ns is rejected even if the HMAC matches.
func (m *Minter) Verify(now time.Time, memoryId ids.MemoryId, assetId ids.AssetId, expiresAtNs int64, audienceTag string, token string) bool {
	if now.UnixNano() >= expiresAtNs {
		return false
	}
	expected := m.sign(memoryId, assetId, expiresAtNs, audienceTag)
	return hmac.Equal([]byte(expected), []byte(token))
}
