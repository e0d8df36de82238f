package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/distask/cluster"
	"github.com/xraph/distask/store"
)

// Compile-time interface checks.
var (
	_ store.Store   = (*Store)(nil)
	_ cluster.Store = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKeyPrefix namespaces every key. Default is "distask:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithLockTTL sets how long a lock survives its holder without renewal.
// Held locks are renewed at a third of the TTL. Default is 30s.
func WithLockTTL(d time.Duration) Option {
	return func(s *Store) { s.lockTTL = d }
}

// WithLockPollInterval sets how often a blocked Lock retries. Default is
// 100ms.
func WithLockPollInterval(d time.Duration) Option {
	return func(s *Store) { s.lockPoll = d }
}

// Store implements store.Store backed by Redis.
type Store struct {
	client   redis.Cmdable
	logger   *slog.Logger
	prefix   string
	lockTTL  time.Duration
	lockPoll time.Duration
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client:   client,
		logger:   slog.Default(),
		prefix:   "distask:",
		lockTTL:  30 * time.Second,
		lockPoll: 100 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
