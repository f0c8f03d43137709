// Package cache implements a named, generic, concurrent cache with an
// optional LRU bound, optional time-based expiration, optional
// soft-reference memory semantics, and an optional disk-backed
// persistence layer, plus hit/miss counters a caller can inspect.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config configures a new Cache. Zero values mean "unbounded, no
// expiration, no soft references, no disk persistence" — the cheapest,
// simplest cache shape, with every feature opted into explicitly.
type Config struct {
	// MaxInMemory bounds the number of entries kept in memory via LRU
	// eviction. Zero means unbounded.
	MaxInMemory int
	// ExpireAfter, if positive, expires an entry this long after it was
	// stored.
	ExpireAfter time.Duration
	// UseSoftReference stores values behind a weak.Pointer so the
	// garbage collector may reclaim them under memory pressure before
	// ExpireAfter elapses. Reclaimed entries are reported as misses.
	UseSoftReference bool
	// Disk, if non-nil, persists entries beyond the in-memory bound and
	// across restarts. Defaults to NullDiskStore (no persistence).
	Disk DiskStore
}

type entry[V any] struct {
	loadedAt time.Time
	expireAt time.Time
	useWeak  bool
	strong   V
	weakPtr  weak.Pointer[V]
}

func newEntry[V any](v V, cfg Config) *entry[V] {
	e := &entry[V]{loadedAt: time.Now()}
	if cfg.ExpireAfter > 0 {
		e.expireAt = e.loadedAt.Add(cfg.ExpireAfter)
	}
	if cfg.UseSoftReference {
		boxed := new(V)
		*boxed = v
		e.weakPtr = weak.Make(boxed)
		e.useWeak = true
	} else {
		e.strong = v
	}
	return e
}

func (e *entry[V]) value() (V, bool) {
	if e.useWeak {
		p := e.weakPtr.Value()
		if p == nil {
			var zero V
			return zero, false
		}
		return *p, true
	}
	return e.strong, true
}

func (e *entry[V]) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// Stats reports the hit/miss counters accumulated since a Cache was
// created.
type Stats struct {
	Hits            int64
	MissNotFound    int64
	MissExpired     int64
	MissSoftRef     int64
	RemoveHits      int64
	RemoveMisses    int64
}

// Cache is a named, generic, concurrent cache.
type Cache[K comparable, V any] struct {
	name   string
	cfg    Config
	bucket string

	mu      sync.Mutex
	mapping map[K]*entry[V]
	bounded *lru.Cache[K, *entry[V]]

	listeners []Listener[K, V]
	encode    func(K) []byte
	marshal   func(V) ([]byte, error)
	unmarshal func([]byte) (V, error)

	stats statCounters
}

type statCounters struct {
	hits, missNotFound, missExpired, missSoftRef, removeHits, removeMisses atomic.Int64
}

// New constructs a named Cache. keyBytes/marshal/unmarshal may be nil if
// cfg.Disk is the default NullDiskStore, since they are only needed to
// serialize entries to a real disk store.
func New[K comparable, V any](name string, cfg Config, keyBytes func(K) []byte, marshal func(V) ([]byte, error), unmarshal func([]byte) (V, error)) *Cache[K, V] {
	c := &Cache[K, V]{
		name:      name,
		cfg:       cfg,
		bucket:    name,
		encode:    keyBytes,
		marshal:   marshal,
		unmarshal: unmarshal,
	}
	if cfg.MaxInMemory > 0 {
		bounded, _ := lru.NewWithEvict[K, *entry[V]](cfg.MaxInMemory, c.onEvict)
		c.bounded = bounded
	} else {
		c.mapping = make(map[K]*entry[V])
	}
	if c.diskStore() == nil {
		c.cfg.Disk = NullDiskStore{}
	}
	return c
}

func (c *Cache[K, V]) diskStore() DiskStore {
	return c.cfg.Disk
}

func (c *Cache[K, V]) onEvict(key K, e *entry[V]) {
	if v, ok := e.value(); ok {
		c.persist(key, v)
	}
}

// AddListener registers a synchronous change listener.
func (c *Cache[K, V]) AddListener(l Listener[K, V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Name returns the cache's configured name.
func (c *Cache[K, V]) Name() string { return c.name }

// Get returns the value stored under key, or false if there is no live
// entry: it was never stored, has expired, or (for a soft-reference
// cache) was reclaimed by the garbage collector.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	e, ok := c.lookupLocked(key)
	if !ok {
		c.mu.Unlock()
		var zero V
		if diskV, found := c.loadFromDisk(key); found {
			c.mu.Lock()
			c.storeLocked(key, diskV, true)
			c.mu.Unlock()
			c.stats.hits.Add(1)
			return diskV, true
		}
		c.stats.missNotFound.Add(1)
		return zero, false
	}
	now := time.Now()
	if e.expired(now) {
		c.removeLocked(key)
		c.mu.Unlock()
		c.stats.missExpired.Add(1)
		var zero V
		return zero, false
	}
	v, live := e.value()
	c.mu.Unlock()
	if !live {
		c.stats.missSoftRef.Add(1)
		var zero V
		return zero, false
	}
	c.stats.hits.Add(1)
	return v, true
}

func (c *Cache[K, V]) lookupLocked(key K) (*entry[V], bool) {
	if c.bounded != nil {
		return c.bounded.Get(key)
	}
	e, ok := c.mapping[key]
	return e, ok
}

// Put stores value under key, replacing any existing entry.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	old, hadOld := c.lookupLocked(key)
	c.storeLocked(key, value, false)
	c.mu.Unlock()

	c.persist(key, value)
	if hadOld {
		if ov, ok := old.value(); ok {
			c.notifyUpdate(key, ov, value)
			return
		}
	}
	c.notifyAdd(key, value)
}

// PutIfAbsent stores value under key only if no live entry is already
// present, atomically with respect to concurrent PutIfAbsent/Put/Remove
// calls on the same Cache. It returns the value now stored under key
// (either the one just stored, or the one that was already there) and
// whether the store actually happened.
func (c *Cache[K, V]) PutIfAbsent(key K, value V) (V, bool) {
	c.mu.Lock()
	if e, ok := c.lookupLocked(key); ok {
		now := time.Now()
		if !e.expired(now) {
			if v, live := e.value(); live {
				c.mu.Unlock()
				return v, false
			}
		}
	}
	c.storeLocked(key, value, false)
	c.mu.Unlock()

	c.persist(key, value)
	c.notifyAdd(key, value)
	return value, true
}

func (c *Cache[K, V]) storeLocked(key K, value V, fromDisk bool) {
	e := newEntry(value, c.cfg)
	if c.bounded != nil {
		c.bounded.Add(key, e)
		return
	}
	c.mapping[key] = e
}

// Remove deletes the entry stored under key, if any, and reports
// whether one was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	old, hadOld := c.lookupLocked(key)
	c.removeLocked(key)
	c.mu.Unlock()

	if c.encode != nil {
		_ = c.diskStore().Remove(c.bucket, c.encode(key))
	}
	if hadOld {
		c.stats.removeHits.Add(1)
		if ov, ok := old.value(); ok {
			c.notifyRemove(key, ov)
		}
		return true
	}
	c.stats.removeMisses.Add(1)
	return false
}

func (c *Cache[K, V]) removeLocked(key K) {
	if c.bounded != nil {
		c.bounded.Remove(key)
		return
	}
	delete(c.mapping, key)
}

// Len reports the number of entries currently held in memory (bounded
// caches never exceed their configured MaxInMemory).
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bounded != nil {
		return c.bounded.Len()
	}
	return len(c.mapping)
}

// Clear evicts every in-memory entry, notifying listeners for each one
// removed. It removes nothing from the disk store: entries already
// persisted remain available to a later Get until they expire on their
// own terms, and on an LRU-bounded cache the eviction hook persists each
// purged entry to the configured disk store.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	var removed map[K]*entry[V]
	if c.bounded != nil {
		removed = make(map[K]*entry[V], c.bounded.Len())
		for _, k := range c.bounded.Keys() {
			if e, ok := c.bounded.Peek(k); ok {
				removed[k] = e
			}
		}
		c.bounded.Purge()
	} else {
		removed = c.mapping
		c.mapping = make(map[K]*entry[V])
	}
	c.mu.Unlock()

	for k, e := range removed {
		c.stats.removeHits.Add(1)
		if v, ok := e.value(); ok {
			c.notifyRemove(k, v)
		}
	}
}

// Commit flushes the disk store, for implementations that batch writes.
func (c *Cache[K, V]) Commit() error {
	return c.diskStore().Commit()
}

// Stats returns a snapshot of the cache's hit/miss counters.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:         c.stats.hits.Load(),
		MissNotFound: c.stats.missNotFound.Load(),
		MissExpired:  c.stats.missExpired.Load(),
		MissSoftRef:  c.stats.missSoftRef.Load(),
		RemoveHits:   c.stats.removeHits.Load(),
		RemoveMisses: c.stats.removeMisses.Load(),
	}
}

func (c *Cache[K, V]) persist(key K, value V) {
	if c.encode == nil || c.marshal == nil {
		return
	}
	if _, ok := c.diskStore().(NullDiskStore); ok {
		return
	}
	data, err := c.marshal(value)
	if err != nil {
		return
	}
	_ = c.diskStore().Put(c.bucket, c.encode(key), data)
}

func (c *Cache[K, V]) loadFromDisk(key K) (V, bool) {
	var zero V
	if c.encode == nil || c.unmarshal == nil {
		return zero, false
	}
	data, found, err := c.diskStore().Get(c.bucket, c.encode(key))
	if err != nil || !found {
		return zero, false
	}
	v, err := c.unmarshal(data)
	if err != nil {
		return zero, false
	}
	return v, true
}

func (c *Cache[K, V]) notifyAdd(key K, value V) {
	for _, l := range c.listeners {
		l.NoteKeyAddition(key, value)
	}
}

func (c *Cache[K, V]) notifyRemove(key K, value V) {
	for _, l := range c.listeners {
		l.NoteKeyRemoval(key, value)
	}
}

func (c *Cache[K, V]) notifyUpdate(key K, oldValue, newValue V) {
	for _, l := range c.listeners {
		l.NoteKeyUpdate(key, oldValue, newValue)
	}
}
