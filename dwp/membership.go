package dwp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/cluster"
)

// register publishes the local member to the membership store.
func (t *Transport) register(ctx context.Context) error {
	now := time.Now().UTC()
	return t.store.RegisterMember(ctx, &cluster.Member{
		Address:          t.address,
		URL:              t.url,
		ExecutionThreads: t.threads,
		State:            cluster.MemberActive,
		LastSeen:         now,
		JoinedAt:         now,
		Metadata:         t.metadata,
	})
}

// membershipLoop keeps the local member alive in the store and dials
// members it has not met yet.
func (t *Transport) membershipLoop() {
	interval := t.staleAfter / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.syncMembers()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.syncMembers()
		}
	}
}

func (t *Transport) syncMembers() {
	ctx, cancel := context.WithTimeout(t.ctx, t.heartbeatTimeout)
	defer cancel()

	err := t.store.HeartbeatMember(ctx, t.address)
	if errors.Is(err, distask.ErrMemberNotFound) {
		// Reaped by another member while we were slow.
		err = t.register(ctx)
	}
	if err != nil {
		t.logger.Warn("membership heartbeat failed", slog.String("error", err.Error()))
	}

	reaped, err := t.store.ReapStaleMembers(ctx, t.staleAfter)
	if err != nil {
		t.logger.Warn("membership reap failed", slog.String("error", err.Error()))
	}
	for _, m := range reaped {
		t.logger.Info("reaped stale member",
			slog.String("member", m.Address),
			slog.Time("last_seen", m.LastSeen),
		)
		t.RemovePeer(m.URL)
	}

	members, err := t.store.ListMembers(ctx)
	if err != nil {
		t.logger.Warn("membership list failed", slog.String("error", err.Error()))
		return
	}
	for _, m := range members {
		if m.Address == t.address || m.URL == "" || m.State != cluster.MemberActive {
			continue
		}
		if _, known := t.peers.Load(m.URL); known {
			continue
		}
		if err := t.AddPeer(ctx, m.URL); err != nil {
			t.logger.Warn("failed to dial member",
				slog.String("member", m.Address),
				slog.String("error", err.Error()),
			)
		}
	}
}
