package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapsuleId_IsTimeOrdered(t *testing.T) {
	a := NewCapsuleId()
	b := NewCapsuleId()
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, string(a), string(b))
}

func TestPersonRef_OpaqueRoundTrips(t *testing.T) {
	r := NewOpaqueRef("user-123")
	assert.False(t, r.IsEmpty())
	assert.Equal(t, "opaque:user-123", r.Key())
	assert.True(t, r.Equal(NewOpaqueRef("user-123")))
	assert.False(t, r.Equal(NewOpaqueRef("user-456")))
}

func TestPersonRef_EmptyOpaqueIsEmpty(t *testing.T) {
	r := NewOpaqueRef("")
	assert.True(t, r.IsEmpty())
}

func TestPersonRef_PrincipalRoundTrips(t *testing.T) {
	var b [29]byte
	b[0] = 0xAB
	r := NewPrincipalRef(b)
	assert.False(t, r.IsEmpty())
	assert.Contains(t, r.Key(), "principal:")
	assert.True(t, r.Equal(NewPrincipalRef(b)))
}

func TestPersonRef_ZeroPrincipalIsEmpty(t *testing.T) {
	var r PersonRef
	assert.True(t, r.IsEmpty())
}

func TestSha256_RoundTripsThroughHex(t *testing.T) {
	h := SumSha256([]byte("hello"))
	s := h.String()
	assert.Len(t, s, 64)

	parsed, err := ParseSha256(s)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseSha256_RejectsWrongLength(t *testing.T) {
	_, err := ParseSha256("abcd")
	assert.Error(t, err)
}

func TestSha256_ZeroIsDetectable(t *testing.T) {
	var h Sha256
	assert.True(t, h.IsZero())
	assert.False(t, SumSha256([]byte("x")).IsZero())
}
