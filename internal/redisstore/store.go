// Package redisstore implements sevnup.Store against Redis, one Set per
// vnode. It follows the zmux-server datastore pattern of treating Redis as
// the sole system of record and never shadowing values in process memory
// (sevnup's own cacheStore already provides the in-memory layer above
// this).
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store persists per-vnode key sets in Redis using SADD/SREM/SMEMBERS.
type Store struct {
	rdb       *redis.Client
	keyPrefix string
	log       *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New constructs a Store backed by rdb. keyPrefix namespaces this store's
// keys so multiple coordinators (or test instances) can share a Redis
// instance without collision; a trailing ":" is appended if missing.
func New(rdb *redis.Client, keyPrefix string, opts ...Option) (*Store, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redisstore: nil redis client")
	}
	if keyPrefix == "" {
		return nil, fmt.Errorf("redisstore: keyPrefix must be non-empty")
	}
	if !strings.HasSuffix(keyPrefix, ":") {
		keyPrefix += ":"
	}

	s := &Store{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) vnodeKey(vnode int) string {
	return s.keyPrefix + "vnode:" + strconv.Itoa(vnode)
}

// LoadKeys returns every key currently recorded for vnode.
func (s *Store) LoadKeys(vnode int) ([]string, error) {
	ctx := context.Background()
	members, err := s.rdb.SMembers(ctx, s.vnodeKey(vnode)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: smembers vnode %d: %w", vnode, err)
	}
	return members, nil
}

// AddKey records key under vnode's set. Idempotent.
func (s *Store) AddKey(vnode int, key string) error {
	ctx := context.Background()
	if err := s.rdb.SAdd(ctx, s.vnodeKey(vnode), key).Err(); err != nil {
		return fmt.Errorf("redisstore: sadd vnode %d: %w", vnode, err)
	}
	s.log.Debug("redisstore: added key", zap.Int("vnode", vnode), zap.String("key", key))
	return nil
}

// RemoveKey drops key from vnode's set. Idempotent on absent keys; SREM on
// a set that becomes empty leaves Redis to garbage-collect the key itself.
func (s *Store) RemoveKey(vnode int, key string) error {
	ctx := context.Background()
	if err := s.rdb.SRem(ctx, s.vnodeKey(vnode), key).Err(); err != nil {
		return fmt.Errorf("redisstore: srem vnode %d: %w", vnode, err)
	}
	s.log.Debug("redisstore: removed key", zap.Int("vnode", vnode), zap.String("key", key))
	return nil
}
