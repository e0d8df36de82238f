// Package memory implements store.Store in process memory. Membership and
// locks are only shared by members of the same process, which makes it a
// fit for tests and single-process deployments.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/cluster"
	"github.com/xraph/distask/transport"
)

var _ cluster.Store = (*Store)(nil)

// Store is an in-memory membership store and lock provider. Safe for
// concurrent access.
type Store struct {
	*transport.LocalLocks

	mu      sync.RWMutex
	members map[string]*cluster.Member
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		LocalLocks: transport.NewLocalLocks(),
		members:    make(map[string]*cluster.Member),
	}
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Cluster Store
// ──────────────────────────────────────────────────

// RegisterMember adds or replaces a member.
func (m *Store) RegisterMember(_ context.Context, member *cluster.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *member
	if cp.LastSeen.IsZero() {
		cp.LastSeen = time.Now().UTC()
	}
	if cp.JoinedAt.IsZero() {
		cp.JoinedAt = cp.LastSeen
	}
	m.members[member.Address] = &cp
	return nil
}

// DeregisterMember removes a member.
func (m *Store) DeregisterMember(_ context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[address]; !ok {
		return distask.ErrMemberNotFound
	}
	delete(m.members, address)
	return nil
}

// HeartbeatMember updates the last-seen timestamp for a member.
func (m *Store) HeartbeatMember(_ context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[address]
	if !ok {
		return distask.ErrMemberNotFound
	}
	member.LastSeen = time.Now().UTC()
	return nil
}

// ListMembers returns copies of all members ordered by address.
func (m *Store) ListMembers(_ context.Context) ([]*cluster.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*cluster.Member, 0, len(m.members))
	for _, member := range m.members {
		result = append(result, clone(member))
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].Address < result[k].Address
	})
	return result, nil
}

// ReapStaleMembers removes and returns members not seen within threshold.
func (m *Store) ReapStaleMembers(_ context.Context, threshold time.Duration) ([]*cluster.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*cluster.Member
	for address, member := range m.members {
		if member.LastSeen.Before(cutoff) {
			stale = append(stale, clone(member))
			delete(m.members, address)
		}
	}
	sort.Slice(stale, func(i, k int) bool {
		return stale[i].Address < stale[k].Address
	})
	return stale, nil
}

func clone(member *cluster.Member) *cluster.Member {
	cp := *member
	cp.Metadata = maps.Clone(member.Metadata)
	return &cp
}
