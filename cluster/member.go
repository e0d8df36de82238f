package cluster

import "time"

// MemberState represents the lifecycle state of a member.
type MemberState string

const (
	// MemberActive means the member accepts requests and tasks.
	MemberActive MemberState = "active"
	// MemberLeaving means the member is shutting down gracefully.
	MemberLeaving MemberState = "leaving"
)

// Member represents a distask member in the membership store.
type Member struct {
	Address          string            `json:"address"`
	URL              string            `json:"url"`
	ExecutionThreads int               `json:"execution_threads"`
	State            MemberState       `json:"state"`
	LastSeen         time.Time         `json:"last_seen"`
	JoinedAt         time.Time         `json:"joined_at"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
