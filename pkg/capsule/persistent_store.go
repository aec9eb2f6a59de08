package capsule

import (
	"sort"
	"strings"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
	"github.com/novabloom/capsulecore/pkg/storeprim"
)

// PersistentStore is the storeprim-backed Store: primary records in
// SlotCapsules, the subject index in SlotSubjectIndex, and the sparse
// owner multimap in SlotOwnerIndex, exactly as spec §3.7/§4.1 lay out.
type PersistentStore struct {
	primary      storeprim.VirtualMemory
	subjectIndex storeprim.VirtualMemory
	ownerIndex   storeprim.VirtualMemory
}

// NewPersistentStore builds a Store over m's capsule-related slots.
func NewPersistentStore(m *storeprim.Manager) (*PersistentStore, error) {
	primary, err := m.Get(storeprim.SlotCapsules)
	if err != nil {
		return nil, err
	}
	subjectIndex, err := m.Get(storeprim.SlotSubjectIndex)
	if err != nil {
		return nil, err
	}
	ownerIndex, err := m.Get(storeprim.SlotOwnerIndex)
	if err != nil {
		return nil, err
	}
	return &PersistentStore{primary: primary, subjectIndex: subjectIndex, ownerIndex: ownerIndex}, nil
}

func ownerIndexKey(ownerKey string, id ids.CapsuleId) []byte {
	return []byte(ownerKey + ":" + string(id))
}

func (s *PersistentStore) Exists(id ids.CapsuleId) (bool, error) {
	_, found, err := s.primary.Get([]byte(id))
	if err != nil {
		return false, coreerrors.Wrap(coreerrors.KindInternal, "read_failed", err, "exists")
	}
	return found, nil
}

func (s *PersistentStore) Get(id ids.CapsuleId) (*Capsule, bool, error) {
	raw, found, err := s.primary.Get([]byte(id))
	if err != nil {
		return nil, false, coreerrors.Wrap(coreerrors.KindInternal, "read_failed", err, "get")
	}
	if !found {
		return nil, false, nil
	}
	c, err := decodeCapsule(raw)
	if err != nil {
		return nil, false, coreerrors.Wrap(coreerrors.KindInternal, "decode_failed", err, "get")
	}
	return c, true, nil
}

func (s *PersistentStore) removeIndexEntries(old *Capsule) error {
	if old == nil {
		return nil
	}
	existingId, found, err := s.subjectIndex.Get([]byte(old.Subject.Key()))
	if err != nil {
		return err
	}
	if found && string(existingId) == string(old.Id) {
		if err := s.subjectIndex.Delete([]byte(old.Subject.Key())); err != nil {
			return err
		}
	}
	for ownerKey := range old.OwnerKeySet() {
		if err := s.ownerIndex.Delete(ownerIndexKey(ownerKey, old.Id)); err != nil {
			return err
		}
	}
	return nil
}

func (s *PersistentStore) insertIndexEntries(c *Capsule) error {
	if err := s.subjectIndex.Set([]byte(c.Subject.Key()), []byte(c.Id)); err != nil {
		return err
	}
	for ownerKey := range c.OwnerKeySet() {
		if err := s.ownerIndex.Set(ownerIndexKey(ownerKey, c.Id), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *PersistentStore) checkSubjectFree(subjectKey string, id ids.CapsuleId) error {
	existing, found, err := s.subjectIndex.Get([]byte(subjectKey))
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "read_failed", err, "check subject")
	}
	if found && string(existing) != string(id) {
		return coreerrors.Conflict("subject_already_bound", "subject is already bound to capsule %s", string(existing))
	}
	return nil
}

func (s *PersistentStore) write(id ids.CapsuleId, c *Capsule) error {
	encoded, err := encodeCapsule(c)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "encode_failed", err, "write")
	}
	if err := s.primary.Set([]byte(id), encoded); err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "write_failed", err, "write")
	}
	return nil
}

func (s *PersistentStore) Upsert(id ids.CapsuleId, c *Capsule) (*Capsule, error) {
	if id == "" {
		return nil, coreerrors.InvalidArgument("empty_id", "capsule id must not be empty")
	}
	if err := s.checkSubjectFree(c.Subject.Key(), id); err != nil {
		return nil, err
	}

	prior, _, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.removeIndexEntries(prior); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "index_remove_failed", err, "upsert")
	}

	clone := *c
	clone.Id = id
	if err := s.write(id, &clone); err != nil {
		return nil, err
	}
	if err := s.insertIndexEntries(&clone); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "index_insert_failed", err, "upsert")
	}
	return prior, nil
}

func (s *PersistentStore) PutIfAbsent(id ids.CapsuleId, c *Capsule) error {
	exists, err := s.Exists(id)
	if err != nil {
		return err
	}
	if exists {
		return coreerrors.Conflict("already_exists", "capsule %s already exists", id)
	}
	if err := s.checkSubjectFree(c.Subject.Key(), id); err != nil {
		return err
	}

	clone := *c
	clone.Id = id
	if err := s.write(id, &clone); err != nil {
		return err
	}
	return s.insertIndexEntries(&clone)
}

func (s *PersistentStore) Update(id ids.CapsuleId, f func(c *Capsule) error) error {
	current, found, err := s.Get(id)
	if err != nil {
		return err
	}
	if !found {
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
	if err := s.checkSubjectFree(working.Subject.Key(), id); err != nil {
		return err
	}

	if err := s.removeIndexEntries(current); err != nil {
		return coreerrors.Wrap(coreerrors.KindInternal, "index_remove_failed", err, "update")
	}
	if err := s.write(id, working); err != nil {
		return err
	}
	return s.insertIndexEntries(working)
}

func (s *PersistentStore) Remove(id ids.CapsuleId) (*Capsule, error) {
	c, found, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if err := s.removeIndexEntries(c); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "index_remove_failed", err, "remove")
	}
	if err := s.primary.Delete([]byte(id)); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "delete_failed", err, "remove")
	}
	return c, nil
}

func (s *PersistentStore) FindBySubject(subject ids.PersonRef) (*Capsule, bool, error) {
	raw, found, err := s.subjectIndex.Get([]byte(subject.Key()))
	if err != nil {
		return nil, false, coreerrors.Wrap(coreerrors.KindInternal, "read_failed", err, "find_by_subject")
	}
	if !found {
		return nil, false, nil
	}
	return s.Get(ids.CapsuleId(raw))
}

func (s *PersistentStore) ListByOwner(owner ids.PersonRef) ([]ids.CapsuleId, error) {
	prefix := []byte(owner.Key() + ":")
	var out []ids.CapsuleId
	err := s.ownerIndex.Iterate(prefix, func(key, _ []byte) bool {
		out = append(out, ids.CapsuleId(strings.TrimPrefix(string(key), owner.Key()+":")))
		return true
	})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "iterate_failed", err, "list_by_owner")
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *PersistentStore) GetMany(idList []ids.CapsuleId) ([]*Capsule, error) {
	out := make([]*Capsule, 0, len(idList))
	for _, id := range idList {
		c, found, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *PersistentStore) Paginate(after *ids.CapsuleId, limit uint32, order Order) (Page, error) {
	var keys []string
	if err := s.primary.Iterate(nil, func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}); err != nil {
		return Page{}, coreerrors.Wrap(coreerrors.KindInternal, "iterate_failed", err, "paginate")
	}

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

func (s *PersistentStore) Count() (uint64, error) {
	n, err := s.primary.Count(nil)
	if err != nil {
		return 0, coreerrors.Wrap(coreerrors.KindInternal, "count_failed", err, "count")
	}
	return n, nil
}
