package sevnup

import (
	"sync"

	"go.uber.org/zap"
)

// vnodeEntry is the in-memory shadow of one vnode's persisted key set. A
// single mutex serializes every operation against the entry, satisfying
// the concurrency contract: operations on the same vnode are serialized so
// that loadKeys always observes every prior completed mutation.
type vnodeEntry struct {
	mu     sync.Mutex
	loaded bool
	keys   map[string]struct{}
}

// cacheStore is a read-through write-back cache in front of a Store.
// Operations on different vnodes proceed independently; the top-level
// mutex only ever guards creation and removal of per-vnode entries, never
// the entry's own state.
type cacheStore struct {
	store Store
	log   *zap.Logger

	mu      sync.Mutex
	entries map[int]*vnodeEntry
}

func newCacheStore(store Store, log *zap.Logger) *cacheStore {
	return &cacheStore{
		store:   store,
		log:     log,
		entries: make(map[int]*vnodeEntry),
	}
}

func (c *cacheStore) entryFor(vnode int) *vnodeEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[vnode]
	if !ok {
		e = &vnodeEntry{keys: make(map[string]struct{})}
		c.entries[vnode] = e
	}
	return e
}

// loadKeys returns the current key set for vnode, reading through to the
// backing store on first access.
func (c *cacheStore) loadKeys(vnode int) ([]string, error) {
	e := c.entryFor(vnode)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		if err := c.populateLocked(vnode, e); err != nil {
			return nil, err
		}
	}
	return e.snapshotLocked(), nil
}

// addKey adds key to vnode's set: idempotent, persisted before the cache is
// mutated so the cache never reflects a write that did not durably
// succeed.
func (c *cacheStore) addKey(vnode int, key string) error {
	e := c.entryFor(vnode)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		if err := c.populateLocked(vnode, e); err != nil {
			return err
		}
	}
	if err := c.store.AddKey(vnode, key); err != nil {
		return &TransientStoreError{VNode: vnode, Key: []byte(key), Err: err}
	}
	e.keys[key] = struct{}{}
	return nil
}

// removeKey removes key from vnode's set. Idempotent on absent keys.
func (c *cacheStore) removeKey(vnode int, key string) error {
	e := c.entryFor(vnode)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		if err := c.populateLocked(vnode, e); err != nil {
			return err
		}
	}
	if err := c.store.RemoveKey(vnode, key); err != nil {
		return &TransientStoreError{VNode: vnode, Key: []byte(key), Err: err}
	}
	delete(e.keys, key)
	return nil
}

// releaseFromCache drops the in-memory entry for vnode without touching
// persistence. Called once a vnode's keys have all been released to a new
// owner, so this process stops holding that state resident.
func (c *cacheStore) releaseFromCache(vnode int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, vnode)
}

func (c *cacheStore) populateLocked(vnode int, e *vnodeEntry) error {
	keys, err := c.store.LoadKeys(vnode)
	if err != nil {
		tse := &TransientStoreError{VNode: vnode, Err: err}
		c.log.Warn("sevnup: cache population failed", zap.Error(tse))
		return tse
	}
	for _, k := range keys {
		e.keys[k] = struct{}{}
	}
	e.loaded = true
	return nil
}

func (e *vnodeEntry) snapshotLocked() []string {
	out := make([]string, 0, len(e.keys))
	for k := range e.keys {
		out = append(out, k)
	}
	return out
}
