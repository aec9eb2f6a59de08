package coreerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "conflict", KindConflict.String())
}

func TestRetryable(t *testing.T) {
	assert.True(t, KindConflict.Retryable())
	assert.False(t, KindNotFound.Retryable())
	assert.False(t, KindInternal.Retryable())
}

func TestFactories_ProduceExpectedKind(t *testing.T) {
	assert.True(t, IsUnauthorized(Unauthorized("no manage perm")))
	assert.True(t, IsNotFound(NotFound("memory:m1", "not found")))
	assert.True(t, IsConflict(Conflict("duplicate_chunk_index", "dup")))
	assert.True(t, IsInvalidArgument(InvalidArgument("checksum_mismatch", "bad hash")))
	assert.True(t, IsResourceExhausted(ResourceExhausted("budget exceeded")))
	assert.True(t, IsInternal(Internal("invariant_violation", "bug")))
	assert.True(t, IsNotImplemented(NotImplemented("reserved")))
}

func TestIs_MatchesByKindAndReason(t *testing.T) {
	err := Conflict("duplicate_chunk_index", "chunk %d already written", 3)
	assert.True(t, errors.Is(err, Conflict("duplicate_chunk_index", "")))
	assert.False(t, errors.Is(err, Conflict("subject_already_bound", "")))
	assert.False(t, errors.Is(err, NotFound("", "")))
}

func TestIs_EmptyReasonMatchesAnyReasonOfSameKind(t *testing.T) {
	err := Conflict("subject_already_bound", "taken")
	assert.True(t, errors.Is(err, Conflict("", "")))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindInternal, "io_error", cause, "write failed")
	assert.Same(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestError_IncludesResourceAndReason(t *testing.T) {
	err := NotFound("capsule:c1", "capsule missing")
	assert.Contains(t, err.Error(), "capsule:c1")
}
