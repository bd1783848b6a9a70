package sevnup

import (
	"time"

	"go.uber.org/zap"
)

// RecoverFunc is invoked when this process becomes the new owner of a key.
// A true result means the key has been durably claimed and may be dropped
// from the persisted index; false means a later reconciliation should try
// again.
type RecoverFunc func(key string) (handled bool, err error)

// ReleaseFunc is invoked when this process stops owning a key because
// another node has taken over its vnode. The key is never removed from the
// index on this path; the new owner's recover path is authoritative for
// that.
type ReleaseFunc func(key string) error

// Config is the full set of knobs needed to construct a Coordinator. It is
// consumed as a value and validated once, at construction.
type Config struct {
	// Ring is the consistent-hash membership oracle. Required.
	Ring Ring

	// Store is the persistence backend behind the read-through write-back
	// cache. Required.
	Store Store

	// Recover is invoked once per key for every vnode this process
	// acquires during reconciliation. Required.
	Recover RecoverFunc

	// Release is invoked once per key for every vnode this process loses
	// during reconciliation. Required.
	Release ReleaseFunc

	// TotalVNodes partitions the key space. Defaults to 1024. MUST NOT
	// change over the lifetime of a cluster's persisted state.
	TotalVNodes int

	// CalmThreshold is the debounce window for ring-change coalescing.
	// Defaults to 500ms.
	CalmThreshold time.Duration

	// MaxParallelTasks bounds concurrent host-callback invocations, both
	// across vnodes and across keys within a vnode. Defaults to 10.
	MaxParallelTasks int

	// Logger receives structured diagnostics for every swallowed error.
	// Defaults to a no-op logger.
	Logger *zap.Logger
}

const (
	defaultTotalVNodes      = 1024
	defaultCalmThreshold    = 500 * time.Millisecond
	defaultMaxParallelTasks = 10
)

// withDefaults returns a copy of cfg with zero-valued optional fields
// replaced by their defaults, and validates the required fields.
func (cfg Config) withDefaults() (Config, error) {
	if cfg.Ring == nil {
		return cfg, &ConfigurationError{Field: "Ring", Reason: "must not be nil"}
	}
	if cfg.Store == nil {
		return cfg, &ConfigurationError{Field: "Store", Reason: "must not be nil"}
	}
	if cfg.Recover == nil {
		return cfg, &ConfigurationError{Field: "Recover", Reason: "must not be nil"}
	}
	if cfg.Release == nil {
		return cfg, &ConfigurationError{Field: "Release", Reason: "must not be nil"}
	}
	if cfg.TotalVNodes < 0 {
		return cfg, &ConfigurationError{Field: "TotalVNodes", Reason: "must not be negative"}
	}
	if cfg.TotalVNodes == 0 {
		cfg.TotalVNodes = defaultTotalVNodes
	}
	if cfg.CalmThreshold < 0 {
		return cfg, &ConfigurationError{Field: "CalmThreshold", Reason: "must not be negative"}
	}
	if cfg.CalmThreshold == 0 {
		cfg.CalmThreshold = defaultCalmThreshold
	}
	if cfg.MaxParallelTasks < 0 {
		return cfg, &ConfigurationError{Field: "MaxParallelTasks", Reason: "must not be negative"}
	}
	if cfg.MaxParallelTasks == 0 {
		cfg.MaxParallelTasks = defaultMaxParallelTasks
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg, nil
}
