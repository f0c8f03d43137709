package cache

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// DiskStore is the optional persistence capability backing a Cache: a
// named cache configured with a disk store survives process restarts and
// spills entries beyond the in-memory bound to disk. Implementations
// must be safe for concurrent use.
type DiskStore interface {
	Put(bucket string, key, value []byte) error
	Get(bucket string, key []byte) ([]byte, bool, error)
	Remove(bucket string, key []byte) error
	Iterate(bucket string, fn func(key, value []byte) error) error
	Commit() error
	Close() error
}

// NullDiskStore is the disk store for caches configured without
// persistence: every read misses, every write and commit succeeds
// trivially. Using this as the default keeps Cache's hot path free of
// the "if diskStore != nil" branch at every call site.
type NullDiskStore struct{}

func (NullDiskStore) Put(string, []byte, []byte) error                      { return nil }
func (NullDiskStore) Get(string, []byte) ([]byte, bool, error)               { return nil, false, nil }
func (NullDiskStore) Remove(string, []byte) error                           { return nil }
func (NullDiskStore) Iterate(string, func(key, value []byte) error) error   { return nil }
func (NullDiskStore) Commit() error                                        { return nil }
func (NullDiskStore) Close() error                                         { return nil }

// BoltDiskStore persists cache entries in a bbolt database file, one
// bucket per cache name, so several named caches can share a single
// underlying file.
type BoltDiskStore struct {
	db *bolt.DB
}

// OpenBoltDiskStore opens (creating if necessary) a bbolt database at
// path for use as a Cache's disk store.
func OpenBoltDiskStore(path string) (*BoltDiskStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: opening bolt store %s: %w", path, err)
	}
	return &BoltDiskStore{db: db}, nil
}

func (s *BoltDiskStore) Put(bucket string, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
}

func (s *BoltDiskStore) Get(bucket string, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, value != nil, err
}

func (s *BoltDiskStore) Remove(bucket string, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

func (s *BoltDiskStore) Iterate(bucket string, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(fn)
	})
}

// Commit is a no-op: bbolt's Update already commits each transaction, so
// there is nothing left to flush. It exists to satisfy DiskStore for
// implementations (a batched writer, say) where a separate flush step
// matters.
func (s *BoltDiskStore) Commit() error { return nil }

func (s *BoltDiskStore) Close() error { return s.db.Close() }
