package capsule

import (
	"sort"
	"sync"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
)

// MemoryStore is the in-memory Store backend: a primary map (Paginate
// sorts its keys on each call) plus subject/owner secondary indexes,
// all guarded by one mutex.
// Intended for tests and deterministic fuzzing, per spec.
type MemoryStore struct {
	mu           sync.RWMutex
	primary      map[ids.CapsuleId]*Capsule
	subjectIndex map[string]ids.CapsuleId   // PersonRef.Key() -> CapsuleId
	ownerIndex   map[string]map[ids.CapsuleId]bool // owner key -> set of CapsuleId
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		primary:      make(map[ids.CapsuleId]*Capsule),
		subjectIndex: make(map[string]ids.CapsuleId),
		ownerIndex:   make(map[string]map[ids.CapsuleId]bool),
	}
}

func (s *MemoryStore) Exists(id ids.CapsuleId) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.primary[id]
	return ok, nil
}

func (s *MemoryStore) Get(id ids.CapsuleId) (*Capsule, bool, error) {
	s.mu.RLock()
	c, ok := s.primary[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	clone, err := cloneCapsule(c)
	if err != nil {
		return nil, false, coreerrors.Wrap(coreerrors.KindInternal, "clone_failed", err, "get")
	}
	return clone, true, nil
}

// removeIndexEntries removes every index entry old (if non-nil)
// contributed, called before inserting new entries for the same id.
func (s *MemoryStore) removeIndexEntries(old *Capsule) {
	if old == nil {
		return
	}
	if key := old.Subject.Key(); s.subjectIndex[key] == old.Id {
		delete(s.subjectIndex, key)
	}
	for ownerKey := range old.OwnerKeySet() {
		if set, ok := s.ownerIndex[ownerKey]; ok {
			delete(set, old.Id)
			if len(set) == 0 {
				delete(s.ownerIndex, ownerKey)
			}
		}
	}
}

func (s *MemoryStore) insertIndexEntries(c *Capsule) {
	s.subjectIndex[c.Subject.Key()] = c.Id
	for ownerKey := range c.OwnerKeySet() {
		set, ok := s.ownerIndex[ownerKey]
		if !ok {
			set = make(map[ids.CapsuleId]bool)
			s.ownerIndex[ownerKey] = set
		}
		set[c.Id] = true
	}
}

func (s *MemoryStore) Upsert(id ids.CapsuleId, c *Capsule) (*Capsule, error) {
	if id == "" {
		return nil, coreerrors.InvalidArgument("empty_id", "capsule id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingId, bound := s.subjectIndex[c.Subject.Key()]; bound && existingId != id {
		return nil, coreerrors.Conflict("subject_already_bound", "subject is already bound to capsule %s", existingId)
	}

	clone, err := cloneCapsule(c)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "clone_failed", err, "upsert")
	}
	clone.Id = id

	prior := s.primary[id]
	s.removeIndexEntries(prior)
	s.primary[id] = clone
	s.insertIndexEntries(clone)

	return prior, nil
}

func (s *MemoryStore) PutIfAbsent(id ids.CapsuleId, c *Capsule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.primary[id]; exists {
		return coreerrors.Conflict("already_exists", "capsule %s already exists", id)
	}
	if existingId, bound := s.subjectIndex[c.Subject.Key()]; bound && existingId != id {
		return coreerrors.Conflict("subject_already_bound", "subject is already bound to capsule %s", existingId)
	}

	clone, err := cloneCapsule(c)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "clone_failed", err, "put_if_absent")
	}
	clone.Id = id

	s.primary[id] = clone
	s.insertIndexEntries(clone)
	return nil
}

func (s *MemoryStore) Update(id ids.CapsuleId, f func(c *Capsule) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.primary[id]
	if !ok {
		return coreerrors.NotFound("capsule:"+string(id), "capsule not found")
	}

	working, err := cloneCapsule(current)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "clone_failed", err, "update")
	}

	if err := f(working); err != nil {
		return err
	}
	if working.Id != id {
		return coreerrors.InvalidArgument("id_immutable", "update must not change capsule id")
	}

	if existingId, bound := s.subjectIndex[working.Subject.Key()]; bound && existingId != id {
		return coreerrors.Conflict("subject_already_bound", "subject is already bound to capsule %s", existingId)
	}

	s.removeIndexEntries(current)
	s.primary[id] = working
	s.insertIndexEntries(working)
	return nil
}

func (s *MemoryStore) Remove(id ids.CapsuleId) (*Capsule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.primary[id]
	if !ok {
		return nil, nil
	}
	s.removeIndexEntries(c)
	delete(s.primary, id)
	return c, nil
}

func (s *MemoryStore) FindBySubject(subject ids.PersonRef) (*Capsule, bool, error) {
	s.mu.RLock()
	id, ok := s.subjectIndex[subject.Key()]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return s.Get(id)
}

func (s *MemoryStore) ListByOwner(owner ids.PersonRef) ([]ids.CapsuleId, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.ownerIndex[owner.Key()]
	out := make([]ids.CapsuleId, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryStore) GetMany(idList []ids.CapsuleId) ([]*Capsule, error) {
	out := make([]*Capsule, 0, len(idList))
	for _, id := range idList {
		c, ok, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) Paginate(after *ids.CapsuleId, limit uint32, order Order) (Page, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.primary))
	for id := range s.primary {
		keys = append(keys, string(id))
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	if order == Desc {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	startIdx := 0
	if after != nil {
		for i, k := range keys {
			if k == string(*after) {
				startIdx = i + 1
				break
			}
		}
	}

	var page Page
	i := startIdx
	for ; i < len(keys) && uint32(len(page.Items)) < limit; i++ {
		c, found, err := s.Get(ids.CapsuleId(keys[i]))
		if err != nil {
			return Page{}, err
		}
		if found {
			page.Items = append(page.Items, c)
		}
	}
	if i < len(keys) && i > 0 {
		next := ids.CapsuleId(keys[i-1])
		page.NextCursor = &next
	}
	return page, nil
}

func (s *MemoryStore) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.primary)), nil
}
