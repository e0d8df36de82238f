// Package memory provides an in-process cluster transport. Every member
// of a Network lives in the same process; messages are delivered by
// direct calls on separate goroutines. It backs tests and single-process
// deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/transport"
)

// Network is a simulated cluster. Its view is the set of joined members
// in join order.
type Network struct {
	name   string
	locks  *transport.LocalLocks
	logger *slog.Logger

	mu      sync.RWMutex
	members map[string]*Member
	order   []string
	muted   map[string]bool
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Network) { n.logger = l }
}

// NewNetwork creates an empty cluster called name.
func NewNetwork(name string, opts ...Option) *Network {
	n := &Network{
		name:    name,
		locks:   transport.NewLocalLocks(),
		logger:  slog.Default(),
		members: make(map[string]*Member),
		muted:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Join adds a member at address and returns its transport. Joining an
// address twice returns the existing member.
func (n *Network) Join(address string) *Member {
	n.mu.Lock()
	defer n.mu.Unlock()

	if m, ok := n.members[address]; ok {
		return m
	}
	m := &Member{net: n, address: address}
	n.members[address] = m
	n.order = append(n.order, address)

	n.logger.Debug("member joined",
		slog.String("cluster", n.name),
		slog.String("member", address),
	)
	return m
}

// Leave removes the member at address from the view.
func (n *Network) Leave(address string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.members[address]; !ok {
		return
	}
	delete(n.members, address)
	delete(n.muted, address)
	n.order = slices.DeleteFunc(n.order, func(a string) bool { return a == address })

	n.logger.Debug("member left",
		slog.String("cluster", n.name),
		slog.String("member", address),
	)
}

// Mute makes the member at address stay in the view but never answer.
func (n *Network) Mute(address string) {
	n.mu.Lock()
	n.muted[address] = true
	n.mu.Unlock()
}

// Unmute reverses Mute.
func (n *Network) Unmute(address string) {
	n.mu.Lock()
	delete(n.muted, address)
	n.mu.Unlock()
}

// View returns the joined member addresses in join order.
func (n *Network) View() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.order)
}

func (n *Network) lookup(address string) (*Member, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	m, ok := n.members[address]
	if !ok || n.muted[address] {
		return nil, false
	}
	return m, true
}

func (n *Network) contains(address string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.members[address]
	return ok
}

// deliver hands msg to the member at to and waits for its answer until ctx
// is done. A muted or departed member never answers.
func (n *Network) deliver(ctx context.Context, from, to string, msg *transport.Message) *transport.Reply {
	reply := &transport.Reply{Member: to}

	target, ok := n.lookup(to)
	if !ok {
		<-ctx.Done()
		return reply
	}

	in := &transport.Message{Tag: msg.Tag, Payload: slices.Clone(msg.Payload)}
	done := make(chan *transport.Reply, 1)
	go func() {
		payload, err := target.receive(ctx, from, in)
		r := &transport.Reply{Member: to, Payload: payload, Received: true}
		if err != nil {
			r.Payload = nil
			r.Err = transport.NewRemoteError(err)
		}
		done <- r
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return reply
	}
}

// ── Member ──────────────────────────────────────────

// Member is one member's view of a Network. It implements
// transport.Transport.
type Member struct {
	net      *Network
	address  string
	receiver atomic.Pointer[transport.Receiver]
	closed   atomic.Bool
}

var _ transport.Transport = (*Member)(nil)

// Address returns the member address.
func (m *Member) Address() string { return m.address }

// ClusterName returns the network name.
func (m *Member) ClusterName() string { return m.net.name }

// View returns the network view.
func (m *Member) View() []string { return m.net.View() }

// SetReceiver installs the inbound message handler.
func (m *Member) SetReceiver(r transport.Receiver) { m.receiver.Store(&r) }

// Broadcast delivers msg to every member of the view, including m.
func (m *Member) Broadcast(ctx context.Context, msg *transport.Message, timeout time.Duration) (map[string]*transport.Reply, error) {
	if m.closed.Load() {
		return nil, distask.ErrTransportClosed
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	view := m.net.View()
	replies := make(map[string]*transport.Reply, len(view))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, addr := range view {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := m.net.deliver(ctx, m.address, addr, msg)
			mu.Lock()
			replies[addr] = r
			mu.Unlock()
		}()
	}
	wg.Wait()
	return replies, nil
}

// SendTo delivers msg to a single member.
func (m *Member) SendTo(ctx context.Context, member string, msg *transport.Message, timeout time.Duration) (*transport.Reply, error) {
	if m.closed.Load() {
		return nil, distask.ErrTransportClosed
	}
	if !m.net.contains(member) {
		return nil, fmt.Errorf("%w: %s", distask.ErrMemberNotFound, member)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.net.deliver(ctx, m.address, member, msg), nil
}

// Lock returns a lock shared by every member of the network.
func (m *Member) Lock(name string) transport.Locker {
	return m.net.locks.Lock(name)
}

// Close leaves the network.
func (m *Member) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.net.Leave(m.address)
	return nil
}

func (m *Member) receive(ctx context.Context, from string, msg *transport.Message) ([]byte, error) {
	r := m.receiver.Load()
	if r == nil {
		return nil, fmt.Errorf("%w: member %s has no receiver", distask.ErrNoHandlerFound, m.address)
	}
	return (*r).Receive(ctx, from, msg)
}
