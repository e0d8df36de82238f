// Package storetest holds behaviour tests shared by every store.Store
// backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/cluster"
	"github.com/xraph/distask/store"
)

// Run exercises s. newStore must return an empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("RegisterAndList", func(t *testing.T) { testRegisterAndList(t, newStore(t)) })
	t.Run("Deregister", func(t *testing.T) { testDeregister(t, newStore(t)) })
	t.Run("Heartbeat", func(t *testing.T) { testHeartbeat(t, newStore(t)) })
	t.Run("ReapStale", func(t *testing.T) { testReapStale(t, newStore(t)) })
	t.Run("Locks", func(t *testing.T) { testLocks(t, newStore(t)) })
}

func newMember(address string) *cluster.Member {
	now := time.Now().UTC()
	return &cluster.Member{
		Address:          address,
		URL:              "ws://" + address + "/dwp",
		ExecutionThreads: 4,
		State:            cluster.MemberActive,
		LastSeen:         now,
		JoinedAt:         now,
		Metadata:         map[string]string{"zone": "eu-1"},
	}
}

func testRegisterAndList(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, addr := range []string{"node-c", "node-a", "node-b"} {
		if err := s.RegisterMember(ctx, newMember(addr)); err != nil {
			t.Fatalf("RegisterMember(%s): %v", addr, err)
		}
	}

	members, err := s.ListMembers(ctx)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	for i, want := range []string{"node-a", "node-b", "node-c"} {
		if members[i].Address != want {
			t.Errorf("members[%d] = %q, want %q", i, members[i].Address, want)
		}
	}

	m := members[0]
	if m.URL != "ws://node-a/dwp" || m.ExecutionThreads != 4 || m.State != cluster.MemberActive {
		t.Errorf("unexpected member %+v", m)
	}
	if m.Metadata["zone"] != "eu-1" {
		t.Errorf("metadata = %v", m.Metadata)
	}

	// Re-registering replaces.
	updated := newMember("node-a")
	updated.ExecutionThreads = 8
	if err := s.RegisterMember(ctx, updated); err != nil {
		t.Fatalf("RegisterMember: %v", err)
	}
	members, _ = s.ListMembers(ctx)
	if len(members) != 3 || members[0].ExecutionThreads != 8 {
		t.Errorf("re-register did not replace: %+v", members[0])
	}
}

func testDeregister(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.RegisterMember(ctx, newMember("node-a")); err != nil {
		t.Fatalf("RegisterMember: %v", err)
	}
	if err := s.DeregisterMember(ctx, "node-a"); err != nil {
		t.Fatalf("DeregisterMember: %v", err)
	}
	if err := s.DeregisterMember(ctx, "node-a"); !errors.Is(err, distask.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}

	members, err := s.ListMembers(ctx)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no members, got %d", len(members))
	}
}

func testHeartbeat(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := newMember("node-a")
	m.LastSeen = time.Now().UTC().Add(-time.Hour)
	if err := s.RegisterMember(ctx, m); err != nil {
		t.Fatalf("RegisterMember: %v", err)
	}

	if err := s.HeartbeatMember(ctx, "node-a"); err != nil {
		t.Fatalf("HeartbeatMember: %v", err)
	}
	members, _ := s.ListMembers(ctx)
	if len(members) != 1 || time.Since(members[0].LastSeen) > time.Minute {
		t.Fatalf("heartbeat did not refresh last seen: %+v", members)
	}

	if err := s.HeartbeatMember(ctx, "ghost"); !errors.Is(err, distask.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}

func testReapStale(t *testing.T, s store.Store) {
	ctx := context.Background()
	stale := newMember("node-old")
	stale.LastSeen = time.Now().UTC().Add(-time.Hour)
	if err := s.RegisterMember(ctx, stale); err != nil {
		t.Fatalf("RegisterMember: %v", err)
	}
	if err := s.RegisterMember(ctx, newMember("node-new")); err != nil {
		t.Fatalf("RegisterMember: %v", err)
	}

	reaped, err := s.ReapStaleMembers(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReapStaleMembers: %v", err)
	}
	if len(reaped) != 1 || reaped[0].Address != "node-old" {
		t.Fatalf("reaped = %+v", reaped)
	}

	members, _ := s.ListMembers(ctx)
	if len(members) != 1 || members[0].Address != "node-new" {
		t.Fatalf("remaining = %+v", members)
	}
}

func testLocks(t *testing.T, s store.Store) {
	ctx := context.Background()

	first := s.Lock("reindex")
	if first.Name() != "reindex" {
		t.Errorf("Name = %q", first.Name())
	}
	if err := first.Lock(ctx); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	second := s.Lock("reindex")
	ok, err := second.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ok {
		t.Fatal("expected lock to be held")
	}

	if err := second.Unlock(ctx); !errors.Is(err, distask.ErrLockNotHeld) {
		t.Fatalf("expected ErrLockNotHeld, got %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		acquired <- second.Lock(waitCtx)
	}()

	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := <-acquired; err != nil {
		t.Fatalf("waiting Lock: %v", err)
	}
	if err := second.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	// A cancelled wait gives up.
	if err := first.Lock(ctx); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	cancelled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := s.Lock("reindex").Lock(cancelled); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	_ = first.Unlock(ctx)
}
