package cluster

import (
	"context"
	"time"
)

// Store defines the persistence contract for cluster membership.
type Store interface {
	// RegisterMember adds or replaces a member in the registry.
	RegisterMember(ctx context.Context, m *Member) error

	// DeregisterMember removes a member from the registry. It returns
	// distask.ErrMemberNotFound if the member is not registered.
	DeregisterMember(ctx context.Context, address string) error

	// HeartbeatMember updates the last-seen timestamp for a member. It
	// returns distask.ErrMemberNotFound if the member is not registered.
	HeartbeatMember(ctx context.Context, address string) error

	// ListMembers returns all registered members ordered by address.
	ListMembers(ctx context.Context) ([]*Member, error)

	// ReapStaleMembers removes and returns the members whose last-seen
	// timestamp is older than threshold.
	ReapStaleMembers(ctx context.Context, threshold time.Duration) ([]*Member, error)
}
