package transport_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/transport"
)

func TestRemoteError_MatchesSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{fmt.Errorf("route: %w", distask.ErrNoHandlerFound), distask.ErrNoHandlerFound},
		{fmt.Errorf("open: %w", distask.ErrUnknownTaskType), distask.ErrUnknownTaskType},
		{distask.ErrPoolStopped, distask.ErrPoolStopped},
	}

	for _, tt := range tests {
		remote := transport.NewRemoteError(tt.err)
		if !errors.Is(remote, tt.want) {
			t.Errorf("%q: expected errors.Is(%v)", remote.Code, tt.want)
		}
		if remote.Error() != tt.err.Error() {
			t.Errorf("message = %q, want %q", remote.Error(), tt.err.Error())
		}
	}
}

func TestRemoteError_Internal(t *testing.T) {
	remote := transport.NewRemoteError(errors.New("boom"))
	if remote.Code != transport.CodeInternal {
		t.Errorf("Code = %q, want %q", remote.Code, transport.CodeInternal)
	}
	if errors.Is(remote, distask.ErrNoHandlerFound) {
		t.Error("internal error should not match ErrNoHandlerFound")
	}
}

func TestNewMessage(t *testing.T) {
	type ping struct {
		N int `msgpack:"n"`
	}
	msg, err := transport.NewMessage("ping", ping{N: 7})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.Tag != "ping" {
		t.Errorf("Tag = %q, want ping", msg.Tag)
	}

	var got ping
	if err := transport.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.N != 7 {
		t.Errorf("N = %d, want 7", got.N)
	}
}

func TestLocalLocks_MutualExclusion(t *testing.T) {
	locks := transport.NewLocalLocks()
	ctx := context.Background()

	a := locks.Lock("nightly-report")
	b := locks.Lock("nightly-report")

	if err := a.Lock(ctx); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	ok, err := b.TryLock(ctx)
	if err != nil || ok {
		t.Fatalf("TryLock on held lock = (%v, %v), want (false, nil)", ok, err)
	}

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := b.Lock(timeout); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	if err := a.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := a.Unlock(ctx); !errors.Is(err, distask.ErrLockNotHeld) {
		t.Fatalf("expected ErrLockNotHeld, got %v", err)
	}

	ok, err = b.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLock on free lock = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestLocalLocks_IndependentNames(t *testing.T) {
	locks := transport.NewLocalLocks()
	ctx := context.Background()

	if err := locks.Lock("a").Lock(ctx); err != nil {
		t.Fatalf("Lock a: %v", err)
	}
	ok, err := locks.Lock("b").TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("lock b should be free, got (%v, %v)", ok, err)
	}
}

func TestLogLocks_LogsEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := context.Background()

	l := transport.LogLocks(transport.NewLocalLocks().Lock("reports"), "node-a", logger)
	if err := l.Lock(ctx); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := l.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"lock created", "awaiting lock", "lock acquired", "lock released", "lock=reports", "member=node-a"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
