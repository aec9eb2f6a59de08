package storeprim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
)

func withFreshManager(t *testing.T) *Manager {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	m, err := Init(NewVolatileBackend())
	require.NoError(t, err)
	return m
}

// Guards the historical bug: creating more than one memory manager
// produced overlapping regions. Init must refuse a second call until
// ResetForTest runs.
func TestInit_RejectsSecondManager(t *testing.T) {
	withFreshManager(t)

	_, err := Init(NewVolatileBackend())
	require.Error(t, err)
	assert.True(t, coreerrors.IsInternal(err))
}

func TestInit_SucceedsAfterReset(t *testing.T) {
	withFreshManager(t)
	ResetForTest()

	_, err := Init(NewVolatileBackend())
	require.NoError(t, err)
	ResetForTest()
}

func TestCurrent_FailsBeforeInit(t *testing.T) {
	ResetForTest()
	_, err := Current()
	require.Error(t, err)
	assert.True(t, coreerrors.IsInternal(err))
}

func TestGet_ReturnsSameInstanceForSameSlot(t *testing.T) {
	m := withFreshManager(t)

	vm1, err := m.Get(SlotCapsules)
	require.NoError(t, err)
	vm2, err := m.Get(SlotCapsules)
	require.NoError(t, err)

	require.NoError(t, vm1.Set([]byte("k"), []byte("v")))
	v, found, err := vm2.Get([]byte("k"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), v)
}

// Guards against two logical structures silently sharing one region:
// distinct slots must never see each other's writes.
func TestGet_DistinctSlotsDoNotOverlap(t *testing.T) {
	m := withFreshManager(t)

	capsules, err := m.Get(SlotCapsules)
	require.NoError(t, err)
	subjectIndex, err := m.Get(SlotSubjectIndex)
	require.NoError(t, err)

	require.NoError(t, capsules.Set([]byte("shared-key"), []byte("capsule-value")))

	_, found, err := subjectIndex.Get([]byte("shared-key"))
	require.NoError(t, err)
	assert.False(t, found, "subject index must not see the capsules slot's write")
}
