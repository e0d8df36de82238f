package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/distask"
)

// Locker is a named mutual-exclusion handle shared by the cluster.
type Locker interface {
	// Name returns the lock name.
	Name() string

	// Lock blocks until the lock is acquired or ctx is done.
	Lock(ctx context.Context) error

	// TryLock acquires the lock if it is free.
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases the lock. It fails with distask.ErrLockNotHeld if
	// the lock is not held.
	Unlock(ctx context.Context) error
}

// LockProvider hands out named locks.
type LockProvider interface {
	Lock(name string) Locker
}

// ── Process-local locks ─────────────────────────────

// LocalLocks provides locks shared by everything in the current process.
type LocalLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalLocks creates an empty process-local lock provider.
func NewLocalLocks() *LocalLocks {
	return &LocalLocks{locks: make(map[string]chan struct{})}
}

// Lock returns the lock called name.
func (l *LocalLocks) Lock(name string) Locker {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[name] = ch
	}
	return &localLock{name: name, ch: ch}
}

// localLock is one handle on a named lock. Only the handle that acquired
// the lock can release it.
type localLock struct {
	name string
	ch   chan struct{}
	held atomic.Bool
}

func (l *localLock) Name() string { return l.name }

func (l *localLock) Lock(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		l.held.Store(true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *localLock) TryLock(_ context.Context) (bool, error) {
	select {
	case l.ch <- struct{}{}:
		l.held.Store(true)
		return true, nil
	default:
		return false, nil
	}
}

func (l *localLock) Unlock(_ context.Context) error {
	if !l.held.CompareAndSwap(true, false) {
		return fmt.Errorf("%w: %q", distask.ErrLockNotHeld, l.name)
	}
	<-l.ch
	return nil
}

// ── Logging decorator ───────────────────────────────

// LogLocks wraps l so that lock events are logged.
func LogLocks(l Locker, member string, logger *slog.Logger) Locker {
	if logger == nil {
		logger = slog.Default()
	}
	ll := &loggingLock{Locker: l, member: member, logger: logger}
	ll.log("lock created")
	return ll
}

type loggingLock struct {
	Locker
	member string
	logger *slog.Logger
}

func (l *loggingLock) log(msg string) {
	l.logger.Info(msg,
		slog.String("lock", l.Name()),
		slog.String("member", l.member),
	)
}

func (l *loggingLock) Lock(ctx context.Context) error {
	l.log("awaiting lock")
	if err := l.Locker.Lock(ctx); err != nil {
		return err
	}
	l.log("lock acquired")
	return nil
}

func (l *loggingLock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.Locker.TryLock(ctx)
	if ok {
		l.log("lock acquired")
	}
	return ok, err
}

func (l *loggingLock) Unlock(ctx context.Context) error {
	if err := l.Locker.Unlock(ctx); err != nil {
		return err
	}
	l.log("lock released")
	return nil
}
