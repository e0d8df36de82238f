package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/cluster"
)

// RegisterMember adds or replaces a member.
func (s *Store) RegisterMember(ctx context.Context, m *cluster.Member) error {
	key := s.memberKey(m.Address)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, memberToMap(m))
	pipe.SAdd(ctx, s.membersKey(), m.Address)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("distask/redis: register member: %w", err)
	}
	return nil
}

// DeregisterMember removes a member.
func (s *Store) DeregisterMember(ctx context.Context, address string) error {
	key := s.memberKey(address)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("distask/redis: deregister exists: %w", err)
	}
	if exists == 0 {
		return distask.ErrMemberNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, s.membersKey(), address)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("distask/redis: deregister member: %w", err)
	}
	return nil
}

// HeartbeatMember updates the last-seen timestamp for a member.
func (s *Store) HeartbeatMember(ctx context.Context, address string) error {
	key := s.memberKey(address)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("distask/redis: heartbeat exists: %w", err)
	}
	if exists == 0 {
		return distask.ErrMemberNotFound
	}

	if err := s.client.HSet(ctx, key, "last_seen", formatTime(time.Now())).Err(); err != nil {
		return fmt.Errorf("distask/redis: heartbeat member: %w", err)
	}
	return nil
}

// ListMembers returns all registered members ordered by address.
func (s *Store) ListMembers(ctx context.Context) ([]*cluster.Member, error) {
	addresses, err := s.client.SMembers(ctx, s.membersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("distask/redis: list members: %w", err)
	}
	sort.Strings(addresses)

	members := make([]*cluster.Member, 0, len(addresses))
	for _, address := range addresses {
		vals, getErr := s.client.HGetAll(ctx, s.memberKey(address)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		members = append(members, mapToMember(vals))
	}
	return members, nil
}

// ReapStaleMembers removes and returns members not seen within threshold.
func (s *Store) ReapStaleMembers(ctx context.Context, threshold time.Duration) ([]*cluster.Member, error) {
	members, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*cluster.Member
	for _, m := range members {
		if !m.LastSeen.Before(cutoff) {
			continue
		}
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, s.memberKey(m.Address))
		pipe.SRem(ctx, s.membersKey(), m.Address)
		if _, err := pipe.Exec(ctx); err != nil {
			return stale, fmt.Errorf("distask/redis: reap member %s: %w", m.Address, err)
		}
		stale = append(stale, m)
	}
	return stale, nil
}

// ── helpers ──

func memberToMap(m *cluster.Member) map[string]any {
	lastSeen := m.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}
	joinedAt := m.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = lastSeen
	}
	return map[string]any{
		"address":           m.Address,
		"url":               m.URL,
		"execution_threads": strconv.Itoa(m.ExecutionThreads),
		"state":             string(m.State),
		"last_seen":         formatTime(lastSeen),
		"joined_at":         formatTime(joinedAt),
		"metadata":          marshalMap(m.Metadata),
	}
}

func mapToMember(m map[string]string) *cluster.Member {
	threads, _ := strconv.Atoi(m["execution_threads"])           //nolint:errcheck // best-effort parse from trusted Redis data
	lastSeen, _ := time.Parse(time.RFC3339Nano, m["last_seen"]) //nolint:errcheck // best-effort parse from trusted Redis data
	joinedAt, _ := time.Parse(time.RFC3339Nano, m["joined_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	return &cluster.Member{
		Address:          m["address"],
		URL:              m["url"],
		ExecutionThreads: threads,
		State:            cluster.MemberState(m["state"]),
		LastSeen:         lastSeen,
		JoinedAt:         joinedAt,
		Metadata:         unmarshalMap(m["metadata"]),
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func marshalMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalMap(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
