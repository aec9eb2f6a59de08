package storeprim

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerBackend is the persistent Backend, a single shared *badger.DB
// per process with every Slot's keys prefixed by its slot byte. One
// database, many disjoint key ranges — this is what makes "no two
// logical structures share a slot" enforceable: the prefix IS the
// slot's address space.
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadgerBackend opens (or creates) a badger database at path.
func OpenBadgerBackend(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storeprim: open badger at %s: %w", path, err)
	}
	return &BadgerBackend{db: db}, nil
}

func (b *BadgerBackend) OpenSlot(slot Slot) (VirtualMemory, error) {
	return &badgerMemory{db: b.db, prefix: []byte{byte(slot)}}, nil
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

type badgerMemory struct {
	db     *badger.DB
	prefix []byte
}

func (m *badgerMemory) fullKey(key []byte) []byte {
	full := make([]byte, 0, len(m.prefix)+len(key))
	full = append(full, m.prefix...)
	full = append(full, key...)
	return full
}

func (m *badgerMemory) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	found := false

	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(m.fullKey(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			value = append([]byte{}, v...)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("storeprim: get: %w", err)
	}
	return value, found, nil
}

func (m *badgerMemory) Set(key, value []byte) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(m.fullKey(key), value)
	})
	if err != nil {
		return fmt.Errorf("storeprim: set: %w", err)
	}
	return nil
}

func (m *badgerMemory) Delete(key []byte) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(m.fullKey(key))
	})
	if err != nil {
		return fmt.Errorf("storeprim: delete: %w", err)
	}
	return nil
}

func (m *badgerMemory) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	fullPrefix := m.fullKey(prefix)

	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fullPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)[len(m.prefix):]
			var value []byte
			if err := item.Value(func(v []byte) error {
				value = append([]byte{}, v...)
				return nil
			}); err != nil {
				return err
			}
			if !fn(key, value) {
				break
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storeprim: iterate: %w", err)
	}
	return nil
}

func (m *badgerMemory) Count(prefix []byte) (uint64, error) {
	fullPrefix := m.fullKey(prefix)
	var n uint64

	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fullPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("storeprim: count: %w", err)
	}
	return n, nil
}

func (m *badgerMemory) MaxValueSize() uint64 { return 0 }
