// Package sevnup implements a durable-key ownership coordinator atop a
// consistent-hash ring. Client applications route work by key; the
// coordinator tracks which keys each node has ever seen, persists those
// associations in a shared store partitioned by virtual node, and, when
// ring membership changes, drives recovery of keys on their new owner and
// release of keys on their former owner.
package sevnup

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Coordinator is the public entry point: construct one with New, route
// lookups through Lookup, and report completed work through
// WorkCompleteOnKey.
type Coordinator struct {
	cfg        Config
	cache      *cacheStore
	reconciler *reconciler
	cancelRun  context.CancelFunc
}

// New validates cfg, applying defaults for zero-valued optional fields,
// and starts the background reconciler goroutine. The returned Coordinator
// is immediately safe to use; reconciliation itself only begins once the
// underlying ring reports Ready.
func New(cfg Config) (*Coordinator, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	cache := newCacheStore(cfg.Store, cfg.Logger)
	rec := newReconciler(cfg, cache)

	ctx, cancel := context.WithCancel(context.Background())
	go rec.run(ctx)

	return &Coordinator{
		cfg:        cfg,
		cache:      cache,
		reconciler: rec,
		cancelRun:  cancel,
	}, nil
}

// Lookup is the lookup interceptor of SPEC_FULL.md §4.5: it resolves key's
// owning node through the unwrapped ring, opportunistically (and
// asynchronously) records the key into its vnode's persisted index if this
// process is the owner, and returns the resolved node synchronously. The
// caller never waits on persistence.
func (c *Coordinator) Lookup(key string) (NodeID, error) {
	vnode := vnodeForKey(key, c.cfg.TotalVNodes)

	node, err := c.cfg.Ring.Lookup(vnode)
	if err != nil {
		return "", err
	}

	if node == c.cfg.Ring.Whoami() {
		go func() {
			if err := c.cache.addKey(vnode, key); err != nil {
				c.cfg.Logger.Warn("sevnup: failed to persist observed key",
					zap.Int("vnode", vnode), zap.String("key", key), zap.Error(err))
			}
		}()
	}

	return node, nil
}

// WorkCompleteOnKey removes key from its vnode's persisted index once the
// host has finished whatever durable work the key represented. Idempotent:
// applying it twice has the same persisted effect as once. It is the only
// operation whose error is surfaced to the caller rather than logged and
// swallowed.
func (c *Coordinator) WorkCompleteOnKey(ctx context.Context, key string) error {
	vnode := vnodeForKey(key, c.cfg.TotalVNodes)
	if err := c.cache.removeKey(vnode, key); err != nil {
		return fmt.Errorf("sevnup: work complete on key: %w", err)
	}
	return nil
}

// Shutdown stops the background reconciler. It does not touch the
// underlying ring or store, both of which remain owned by the caller.
func (c *Coordinator) Shutdown() {
	c.cancelRun()
}
