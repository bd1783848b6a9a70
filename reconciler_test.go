package sevnup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testConfig(ring Ring, store Store, recover RecoverFunc, release ReleaseFunc) Config {
	cfg, err := Config{
		Ring:             ring,
		Store:            store,
		Recover:          recover,
		Release:          release,
		TotalVNodes:      4,
		CalmThreshold:    20 * time.Millisecond,
		MaxParallelTasks: 4,
		Logger:           zap.NewNop(),
	}.withDefaults()
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestReconcilerRecoversNewlyOwnedVNode(t *testing.T) {
	ring := newFakeRing("A", 4)
	ring.setOwner(0, "A")
	store := newFakeStore()
	store.AddKey(0, "k1")

	var recovered sync.Map
	cfg := testConfig(ring, store,
		func(key string) (bool, error) { recovered.Store(key, true); return true, nil },
		func(key string) error { return nil },
	)
	cache := newCacheStore(store, cfg.Logger)
	rec := newReconciler(cfg, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.run(ctx)

	waitFor(t, func() bool {
		_, ok := recovered.Load("k1")
		return ok
	})
	waitFor(t, func() bool { return !store.contains(0, "k1") })
}

func TestReconcilerReleaseDoesNotRemoveKey(t *testing.T) {
	ring := newFakeRing("A", 4)
	ring.setOwner(0, "A")
	store := newFakeStore()
	store.AddKey(0, "k1")

	var releasedCount int32
	cfg := testConfig(ring, store,
		func(key string) (bool, error) { return true, nil },
		func(key string) error { atomic.AddInt32(&releasedCount, 1); return nil },
	)
	cache := newCacheStore(store, cfg.Logger)
	rec := newReconciler(cfg, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.run(ctx)

	// Let the initial reconciliation recover vnode 0 on A.
	waitFor(t, func() bool { return !store.contains(0, "k1") })

	// Record k1 again through A's cache, as A's lookup interceptor would
	// while A still owns vnode 0, then hand vnode 0 to B.
	if err := cache.addKey(0, "k1"); err != nil {
		t.Fatalf("addKey: %v", err)
	}
	ring.setOwner(0, "B")
	ring.fireChanged()

	waitFor(t, func() bool { return atomic.LoadInt32(&releasedCount) > 0 })
	if !store.contains(0, "k1") {
		t.Fatalf("release path must not remove the key from the index")
	}
}

func TestReconcilerRecoverRefusalKeepsKey(t *testing.T) {
	ring := newFakeRing("A", 4)
	ring.setOwner(0, "A")
	store := newFakeStore()
	store.AddKey(0, "k1")

	var attempts int32
	cfg := testConfig(ring, store,
		func(key string) (bool, error) {
			atomic.AddInt32(&attempts, 1)
			return false, nil
		},
		func(key string) error { return nil },
	)
	cache := newCacheStore(store, cfg.Logger)
	rec := newReconciler(cfg, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.run(ctx)

	waitFor(t, func() bool { return atomic.LoadInt32(&attempts) >= 1 })
	if !store.contains(0, "k1") {
		t.Fatalf("refused recovery must leave the key in the index")
	}

	ring.fireChanged()
	waitFor(t, func() bool { return atomic.LoadInt32(&attempts) >= 2 })
	if !store.contains(0, "k1") {
		t.Fatalf("key should still be present after a second refusal")
	}
}

func TestReconcilerDebounceCoalescesBurst(t *testing.T) {
	ring := newFakeRing("A", 4)
	ring.setOwner(0, "B")
	store := newFakeStore()
	store.AddKey(0, "k1")

	var recoverCalls int32
	cfg := testConfig(ring, store,
		func(key string) (bool, error) { atomic.AddInt32(&recoverCalls, 1); return true, nil },
		func(key string) error { return nil },
	)
	cache := newCacheStore(store, cfg.Logger)
	rec := newReconciler(cfg, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.run(ctx)

	// Let the initial pass (A owns nothing) settle before the burst.
	time.Sleep(cfg.CalmThreshold * 2)
	if atomic.LoadInt32(&recoverCalls) != 0 {
		t.Fatalf("recover fired before vnode 0 was ever owned by A")
	}

	// Five changed events within 2ms*5=10ms, well under the 20ms calm
	// threshold; ownership only actually flips to A on the last one.
	for i := 0; i < 4; i++ {
		ring.fireChanged()
		time.Sleep(2 * time.Millisecond)
	}
	ring.setOwner(0, "A")
	lastEvent := time.Now()
	ring.fireChanged()

	waitFor(t, func() bool { return atomic.LoadInt32(&recoverCalls) > 0 })
	elapsed := time.Since(lastEvent)
	if elapsed < cfg.CalmThreshold {
		t.Fatalf("reconciliation fired before the calm threshold elapsed: %v", elapsed)
	}

	// Give any spurious extra reconciliation a chance to run, then check
	// recover was invoked exactly once for the one key in play.
	time.Sleep(cfg.CalmThreshold * 3)
	if calls := atomic.LoadInt32(&recoverCalls); calls != 1 {
		t.Fatalf("expected exactly one recover call from the coalesced burst, got %d", calls)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
