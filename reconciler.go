package sevnup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// reconciler implements debounced diff reconciliation: on ring change it
// waits out a calm window, then diffs the previously-owned vnode set
// against the freshly computed one and fans out recover/release callbacks
// with bounded parallelism.
//
// States Idle, Debouncing and Reconciling (see the state machine in
// SPEC_FULL.md §4.7) collapse here into two booleans: a live timer stands
// in for Idle/Debouncing, and reconciling stands in for Reconciling. A
// ring-change event that lands while reconciling restarts the calm timer;
// if that timer fires before the in-flight fan-out completes, it sets
// rerun so the fan-out is repeated immediately once the in-flight one
// completes, which is how "Reconciling + Debouncing concurrently" is
// honored without ever running two fan-outs at once.
type reconciler struct {
	cfg   Config
	cache *cacheStore

	mu          sync.Mutex
	timer       *time.Timer
	reconciling bool
	rerun       bool
	owned       []int
}

func newReconciler(cfg Config, cache *cacheStore) *reconciler {
	return &reconciler{cfg: cfg, cache: cache}
}

// run blocks until ctx is cancelled, driving the reconciler off the ring's
// Ready and Changed signals. It is meant to be started in its own
// goroutine.
func (r *reconciler) run(ctx context.Context) {
	select {
	case <-r.cfg.Ring.Ready():
	case <-ctx.Done():
		return
	}

	// Treat "ready" itself as an implicit first change: any vnode already
	// owned at startup must be recovered, not left until the next real
	// membership event.
	r.onChanged()

	for {
		select {
		case <-r.cfg.Ring.Changed():
			r.onChanged()
		case <-ctx.Done():
			return
		}
	}
}

func (r *reconciler) onChanged() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.cfg.CalmThreshold, r.fire)
}

func (r *reconciler) fire() {
	r.mu.Lock()
	r.timer = nil
	if r.reconciling {
		// A fan-out is already in flight; queue another pass immediately
		// behind it rather than running concurrently.
		r.rerun = true
		r.mu.Unlock()
		return
	}
	r.reconciling = true
	r.mu.Unlock()

	r.execute()

	r.mu.Lock()
	r.reconciling = false
	again := r.rerun
	r.rerun = false
	r.mu.Unlock()

	if again {
		r.fire()
	}
}

func (r *reconciler) execute() {
	newOwned, err := computeOwnedVNodes(r.cfg.Ring, r.cfg.TotalVNodes)
	if err != nil {
		r.cfg.Logger.Error("sevnup: reconciliation aborted, could not compute owned vnodes", zap.Error(err))
		return
	}

	r.mu.Lock()
	oldOwned := r.owned
	r.mu.Unlock()

	toRelease, toRecover := diffOwned(oldOwned, newOwned)

	ctx := context.Background()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxParallelTasks)

	for _, v := range toRelease {
		v := v
		g.Go(func() error {
			r.releaseVNode(gctx, v)
			return nil
		})
	}
	for _, v := range toRecover {
		v := v
		g.Go(func() error {
			r.recoverVNode(gctx, v)
			return nil
		})
	}
	_ = g.Wait()

	for _, v := range toRelease {
		r.cache.releaseFromCache(v)
	}

	r.mu.Lock()
	r.owned = newOwned
	r.mu.Unlock()
}

func (r *reconciler) releaseVNode(ctx context.Context, vnode int) {
	keys, err := r.cache.loadKeys(vnode)
	if err != nil {
		r.cfg.Logger.Warn("sevnup: release skipped, failed to load vnode keys", zap.Int("vnode", vnode), zap.Error(err))
		return
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxParallelTasks)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := r.cfg.Release(key); err != nil {
				hce := &HostCallbackError{Op: "release", VNode: vnode, Key: []byte(key), Err: err}
				r.cfg.Logger.Warn("sevnup: release callback failed", zap.Error(hce))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *reconciler) recoverVNode(ctx context.Context, vnode int) {
	keys, err := r.cache.loadKeys(vnode)
	if err != nil {
		r.cfg.Logger.Warn("sevnup: recover skipped, failed to load vnode keys", zap.Int("vnode", vnode), zap.Error(err))
		return
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxParallelTasks)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			handled, err := r.cfg.Recover(key)
			if err != nil {
				hce := &HostCallbackError{Op: "recover", VNode: vnode, Key: []byte(key), Err: err}
				r.cfg.Logger.Warn("sevnup: recover callback failed, treating as unhandled", zap.Error(hce))
				return nil
			}
			if !handled {
				return nil
			}
			if err := r.cache.removeKey(vnode, key); err != nil {
				r.cfg.Logger.Warn("sevnup: failed to drop recovered key from index", zap.Int("vnode", vnode), zap.String("key", key), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// diffOwned splits old and new owned-vnode sets into released and
// recovered vnode lists.
func diffOwned(oldOwned, newOwned []int) (toRelease, toRecover []int) {
	oldSet := make(map[int]struct{}, len(oldOwned))
	for _, v := range oldOwned {
		oldSet[v] = struct{}{}
	}
	newSet := make(map[int]struct{}, len(newOwned))
	for _, v := range newOwned {
		newSet[v] = struct{}{}
	}
	for v := range oldSet {
		if _, ok := newSet[v]; !ok {
			toRelease = append(toRelease, v)
		}
	}
	for v := range newSet {
		if _, ok := oldSet[v]; !ok {
			toRecover = append(toRecover, v)
		}
	}
	return toRelease, toRecover
}
