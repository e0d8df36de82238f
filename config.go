package distask

import "time"

// DefaultPollInterval is the wait between resumable task steps when a
// task does not configure its own interval.
const DefaultPollInterval = 5 * time.Second

// Config holds configuration shared by the coordinator and its executor.
type Config struct {
	// ClusterName names the cluster. Transports report their own name;
	// this value is used when the transport has none.
	ClusterName string

	// InstanceName is the human-readable name of the local member.
	// Empty means the transport address is used.
	InstanceName string

	// ExecutionThreads is the number of worker goroutines executing tasks.
	ExecutionThreads int

	// QueueSize bounds the number of submitted tasks waiting for a worker.
	QueueSize int

	// BroadcastTimeout bounds how long an all-member call waits for replies.
	BroadcastTimeout time.Duration

	// UnicastTimeout bounds how long a single-member call waits for a reply.
	UnicastTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ClusterName:      "distask",
		ExecutionThreads: 4,
		QueueSize:        1024,
		BroadcastTimeout: 100 * time.Second,
		UnicastTimeout:   10 * time.Second,
	}
}
