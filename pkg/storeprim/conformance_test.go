package storeprim

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// backendConformanceSuite runs the same VirtualMemory exercises against
// every Backend implementation so the persistent and volatile backends
// are held to identical observable behavior.
type backendConformanceSuite struct {
	suite.Suite
	newBackend func(t *testing.T) Backend
}

func (s *backendConformanceSuite) TestSetGetDelete() {
	t := s.T()
	backend := s.newBackend(t)
	defer backend.Close()

	vm, err := backend.OpenSlot(SlotCapsules)
	require.NoError(t, err)

	_, found, err := vm.Get([]byte("missing"))
	require.NoError(t, err)
	s.False(found)

	require.NoError(t, vm.Set([]byte("k1"), []byte("v1")))
	v, found, err := vm.Get([]byte("k1"))
	require.NoError(t, err)
	s.True(found)
	s.Equal([]byte("v1"), v)

	require.NoError(t, vm.Delete([]byte("k1")))
	_, found, err = vm.Get([]byte("k1"))
	require.NoError(t, err)
	s.False(found)
}

func (s *backendConformanceSuite) TestIterateRespectsPrefixAndOrder() {
	t := s.T()
	backend := s.newBackend(t)
	defer backend.Close()

	vm, err := backend.OpenSlot(SlotCapsules)
	require.NoError(t, err)

	require.NoError(t, vm.Set([]byte("a:1"), []byte("1")))
	require.NoError(t, vm.Set([]byte("a:2"), []byte("2")))
	require.NoError(t, vm.Set([]byte("b:1"), []byte("3")))

	var seen []string
	require.NoError(t, vm.Iterate([]byte("a:"), func(key, _ []byte) bool {
		seen = append(seen, string(key))
		return true
	}))

	s.Equal([]string{"a:1", "a:2"}, seen)
}

func (s *backendConformanceSuite) TestCountMatchesPrefix() {
	t := s.T()
	backend := s.newBackend(t)
	defer backend.Close()

	vm, err := backend.OpenSlot(SlotCapsules)
	require.NoError(t, err)

	require.NoError(t, vm.Set([]byte("a:1"), []byte("1")))
	require.NoError(t, vm.Set([]byte("a:2"), []byte("2")))
	require.NoError(t, vm.Set([]byte("b:1"), []byte("3")))

	n, err := vm.Count([]byte("a:"))
	require.NoError(t, err)
	s.Equal(uint64(2), n)

	n, err = vm.Count(nil)
	require.NoError(t, err)
	s.Equal(uint64(3), n)
}

func (s *backendConformanceSuite) TestSlotsDoNotOverlap() {
	t := s.T()
	backend := s.newBackend(t)
	defer backend.Close()

	capsules, err := backend.OpenSlot(SlotCapsules)
	require.NoError(t, err)
	sessions, err := backend.OpenSlot(SlotSessions)
	require.NoError(t, err)

	require.NoError(t, capsules.Set([]byte("x"), []byte("capsule")))
	_, found, err := sessions.Get([]byte("x"))
	require.NoError(t, err)
	s.False(found)
}

func TestBackendConformance_Volatile(t *testing.T) {
	suite.Run(t, &backendConformanceSuite{
		newBackend: func(t *testing.T) Backend {
			return NewVolatileBackend()
		},
	})
}

func TestBackendConformance_Badger(t *testing.T) {
	suite.Run(t, &backendConformanceSuite{
		newBackend: func(t *testing.T) Backend {
			dir := filepath.Join(t.TempDir(), "badger")
			backend, err := OpenBadgerBackend(dir)
			require.NoError(t, err)
			return backend
		},
	})
}
