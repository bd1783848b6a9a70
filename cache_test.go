package sevnup

import (
	"testing"

	"go.uber.org/zap"
)

func TestCacheStoreLoadReadsThrough(t *testing.T) {
	backend := newFakeStore()
	backend.AddKey(1, "a")
	backend.AddKey(1, "b")

	c := newCacheStore(backend, zap.NewNop())
	keys, err := c.loadKeys(1)
	if err != nil {
		t.Fatalf("loadKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}
}

func TestCacheStoreAddKeyIsDurableBeforeVisible(t *testing.T) {
	backend := newFakeStore()
	c := newCacheStore(backend, zap.NewNop())

	if err := c.addKey(3, "k1"); err != nil {
		t.Fatalf("addKey: %v", err)
	}
	if !backend.contains(3, "k1") {
		t.Fatalf("key not persisted to backend")
	}
	keys, err := c.loadKeys(3)
	if err != nil {
		t.Fatalf("loadKeys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "k1" {
		t.Fatalf("unexpected cache contents: %v", keys)
	}
}

func TestCacheStoreAddKeyFailureDoesNotCorruptCache(t *testing.T) {
	backend := newFakeStore()
	backend.failAddOnce = true
	c := newCacheStore(backend, zap.NewNop())

	if err := c.addKey(5, "k1"); err == nil {
		t.Fatalf("expected injected failure")
	}
	keys, err := c.loadKeys(5)
	if err != nil {
		t.Fatalf("loadKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("cache reflects a write that never durably succeeded: %v", keys)
	}

	// Retry succeeds now that the injected failure has been consumed.
	if err := c.addKey(5, "k1"); err != nil {
		t.Fatalf("addKey retry: %v", err)
	}
	if !backend.contains(5, "k1") {
		t.Fatalf("retry did not persist")
	}
}

func TestCacheStoreRemoveKeyIdempotent(t *testing.T) {
	backend := newFakeStore()
	c := newCacheStore(backend, zap.NewNop())

	if err := c.removeKey(2, "missing"); err != nil {
		t.Fatalf("removeKey on absent key: %v", err)
	}

	if err := c.addKey(2, "present"); err != nil {
		t.Fatalf("addKey: %v", err)
	}
	if err := c.removeKey(2, "present"); err != nil {
		t.Fatalf("removeKey: %v", err)
	}
	if err := c.removeKey(2, "present"); err != nil {
		t.Fatalf("removeKey twice: %v", err)
	}
	if backend.contains(2, "present") {
		t.Fatalf("key still present in backend")
	}
}

func TestReleaseFromCacheDropsEntryNotPersistence(t *testing.T) {
	backend := newFakeStore()
	c := newCacheStore(backend, zap.NewNop())

	if err := c.addKey(7, "k1"); err != nil {
		t.Fatalf("addKey: %v", err)
	}
	c.releaseFromCache(7)

	if !backend.contains(7, "k1") {
		t.Fatalf("releaseFromCache must not touch persistence")
	}

	// A subsequent loadKeys must read through again, observing the same
	// durable state.
	keys, err := c.loadKeys(7)
	if err != nil {
		t.Fatalf("loadKeys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "k1" {
		t.Fatalf("unexpected keys after re-load: %v", keys)
	}
}
