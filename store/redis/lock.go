package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/distask"
	"github.com/xraph/distask/id"
	"github.com/xraph/distask/transport"
)

var _ transport.LockProvider = (*Store)(nil)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the lock only if it still carries our token.
var renewScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Lock returns a handle on the cluster-wide lock called name. Each handle
// acquires with its own token, so only the handle holding the lock can
// release it.
func (s *Store) Lock(name string) transport.Locker {
	return &redisLock{store: s, name: name, key: s.lockKey(name)}
}

type redisLock struct {
	store *Store
	name  string
	key   string

	mu    sync.Mutex
	token string
	stop  chan struct{}
}

func (l *redisLock) Name() string { return l.name }

func (l *redisLock) Lock(ctx context.Context) error {
	ticker := time.NewTicker(l.store.lockPoll)
	defer ticker.Stop()

	for {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *redisLock) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != "" {
		return false, nil
	}

	token := id.NewLockToken().String()
	ok, err := l.store.client.SetNX(ctx, l.key, token, l.store.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("distask/redis: acquire lock %q: %w", l.name, err)
	}
	if !ok {
		return false, nil
	}

	l.token = token
	l.stop = make(chan struct{})
	go l.renew(token, l.stop)
	return true, nil
}

func (l *redisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return fmt.Errorf("%w: %q", distask.ErrLockNotHeld, l.name)
	}
	token := l.token
	close(l.stop)
	l.token, l.stop = "", nil

	n, err := releaseScript.Run(ctx, l.store.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("distask/redis: release lock %q: %w", l.name, err)
	}
	if n == 0 {
		// The lease expired and someone else may hold the lock now.
		return fmt.Errorf("%w: %q expired", distask.ErrLockNotHeld, l.name)
	}
	return nil
}

// renew extends the lease until stop is closed or the lock is lost.
func (l *redisLock) renew(token string, stop <-chan struct{}) {
	ttl := l.store.lockTTL
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), ttl/3)
			n, err := renewScript.Run(ctx, l.store.client, []string{l.key}, token, ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				l.store.logger.Warn("failed to renew lock",
					slog.String("lock", l.name),
					slog.String("error", err.Error()),
				)
				continue
			}
			if n == 0 {
				l.store.logger.Warn("lock lease lost", slog.String("lock", l.name))
				return
			}
		}
	}
}
