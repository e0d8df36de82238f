// Package transport defines the cluster transport contract consumed by the
// coordinator: an ordered member view, broadcast and point-to-point
// request delivery with per-call reply collection, and named locks.
//
// Implementations live in sub-packages ([memory]) and in the dwp package.
package transport

import (
	"context"
	"time"
)

// Message is an opaque tagged request or response. Tag selects the handler
// on the receiving member; Payload is the msgpack encoding of the request.
type Message struct {
	Tag     string `msgpack:"tag" json:"tag"`
	Payload []byte `msgpack:"payload,omitempty" json:"payload,omitempty"`
}

// Receiver handles messages delivered to the local member.
type Receiver interface {
	Receive(ctx context.Context, from string, msg *Message) ([]byte, error)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, from string, msg *Message) ([]byte, error)

// Receive calls f.
func (f ReceiverFunc) Receive(ctx context.Context, from string, msg *Message) ([]byte, error) {
	return f(ctx, from, msg)
}

// Reply is one member's answer to a call. Received is false when the
// member did not answer before the timeout. Err is set when the member
// answered with a handler failure.
type Reply struct {
	Member   string
	Payload  []byte
	Err      error
	Received bool
}

// Transport connects the local member to its cluster.
type Transport interface {
	// Address is the local member's address.
	Address() string

	// ClusterName names the cluster the member joined.
	ClusterName() string

	// View returns the current ordered set of member addresses, including
	// the local member.
	View() []string

	// Broadcast sends msg to every member of the current view, including
	// the local member, and waits up to timeout for their replies. The
	// result holds one Reply per member of the view taken at call time.
	// The error is only set for transport failures.
	Broadcast(ctx context.Context, msg *Message, timeout time.Duration) (map[string]*Reply, error)

	// SendTo sends msg to one member and waits up to timeout for its reply.
	// It fails with distask.ErrMemberNotFound if member is not in the view.
	SendTo(ctx context.Context, member string, msg *Message, timeout time.Duration) (*Reply, error)

	// Lock returns the cluster-wide lock called name.
	Lock(name string) Locker

	// SetReceiver installs the handler for inbound messages. It must be
	// called before the member receives traffic.
	SetReceiver(r Receiver)

	// Close leaves the cluster.
	Close() error
}
