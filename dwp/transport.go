package dwp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xraph/distask"
	"github.com/xraph/distask/backoff"
	"github.com/xraph/distask/cluster"
	"github.com/xraph/distask/ext"
	"github.com/xraph/distask/transport"
)

// Transport connects a member to its cluster over DWP. It serves inbound
// peers through ServeHTTP and keeps one outbound connection per peer for
// the requests it sends.
type Transport struct {
	address string
	url     string
	cluster string
	token   string

	auth        Authenticator
	codec       Codec
	readMethods []string
	limit       rate.Limit
	burst       int

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	authTimeout       time.Duration
	reconnect         backoff.Strategy

	seeds      []string
	store      cluster.Store
	staleAfter time.Duration
	threads    int
	metadata   map[string]string

	locks      transport.LockProvider
	extensions *ext.Registry
	logger     *slog.Logger

	receiver atomic.Pointer[transport.Receiver]
	conns    *ConnectionManager
	peers    sync.Map // url → *Peer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

var _ transport.Transport = (*Transport)(nil)

// New creates a transport for the member at address.
func New(address string, opts ...Option) (*Transport, error) {
	if address == "" {
		return nil, errors.New("dwp: member address is required")
	}

	t := &Transport{
		address:           address,
		codec:             &JSONCodec{},
		readMethods:       DefaultReadMethods,
		limit:             rate.Inf,
		heartbeatInterval: 5 * time.Second,
		heartbeatTimeout:  15 * time.Second,
		authTimeout:       10 * time.Second,
		reconnect:         backoff.DefaultStrategy(),
		staleAfter:        30 * time.Second,
		conns:             NewConnectionManager(),
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.auth == nil {
		t.auth = &NoopAuthenticator{}
	}
	if t.locks == nil {
		t.locks = transport.NewLocalLocks()
	}
	if t.extensions == nil {
		t.extensions = ext.NewRegistry(t.logger)
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t, nil
}

// Start dials the seed peers and starts the background loops. A seed that
// cannot be reached is redialed in the background.
func (t *Transport) Start(ctx context.Context) error {
	if t.closed.Load() {
		return distask.ErrTransportClosed
	}

	if t.store != nil {
		if err := t.register(ctx); err != nil {
			return fmt.Errorf("dwp: register member: %w", err)
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.membershipLoop()
		}()
	}

	for _, url := range t.seeds {
		if err := t.AddPeer(ctx, url); err != nil {
			t.logger.Warn("seed unreachable",
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
		}
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.heartbeatLoop()
	}()

	t.logger.Info("dwp transport started",
		slog.String("member", t.address),
		slog.String("url", t.url),
		slog.Int("seeds", len(t.seeds)),
	)
	return nil
}

// Address returns the local member address.
func (t *Transport) Address() string { return t.address }

// ClusterName returns the configured cluster name.
func (t *Transport) ClusterName() string { return t.cluster }

// URL returns the URL peers dial to reach this member.
func (t *Transport) URL() string { return t.url }

// Connections returns the accepted connections.
func (t *Transport) Connections() *ConnectionManager { return t.conns }

// Extensions returns the registry notified of membership changes.
func (t *Transport) Extensions() *ext.Registry { return t.extensions }

// View returns the local member and every connected peer, sorted by
// address.
func (t *Transport) View() []string {
	view := []string{t.address}
	t.peers.Range(func(_, value any) bool {
		if _, addr, ok := value.(*Peer).connected(); ok && !slices.Contains(view, addr) { //nolint:errcheck // sync.Map always stores *Peer
			view = append(view, addr)
		}
		return true
	})
	slices.Sort(view)
	return view
}

// SetReceiver installs the inbound message handler.
func (t *Transport) SetReceiver(r transport.Receiver) { t.receiver.Store(&r) }

// Lock returns the named lock from the configured provider.
func (t *Transport) Lock(name string) transport.Locker { return t.locks.Lock(name) }

// Broadcast sends msg to every member of the view and collects replies
// until timeout.
func (t *Transport) Broadcast(ctx context.Context, msg *transport.Message, timeout time.Duration) (map[string]*transport.Reply, error) {
	if t.closed.Load() {
		return nil, distask.ErrTransportClosed
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	view := t.View()
	replies := make(map[string]*transport.Reply, len(view))
	var mu sync.Mutex

	var g errgroup.Group
	for _, member := range view {
		g.Go(func() error {
			r := t.deliver(ctx, member, msg)
			mu.Lock()
			replies[member] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return replies, nil
}

// SendTo sends msg to one member of the view.
func (t *Transport) SendTo(ctx context.Context, member string, msg *transport.Message, timeout time.Duration) (*transport.Reply, error) {
	if t.closed.Load() {
		return nil, distask.ErrTransportClosed
	}
	if !slices.Contains(t.View(), member) {
		return nil, fmt.Errorf("%w: %s", distask.ErrMemberNotFound, member)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return t.deliver(ctx, member, msg), nil
}

// deliver returns the reply of member. A member that does not answer
// before ctx is done yields a reply with Received unset.
func (t *Transport) deliver(ctx context.Context, member string, msg *transport.Message) *transport.Reply {
	reply := &transport.Reply{Member: member}

	if member == t.address {
		done := make(chan *transport.Reply, 1)
		go func() {
			r := &transport.Reply{Member: member, Received: true}
			r.Payload, r.Err = t.receiveLocal(ctx, msg)
			if r.Err != nil {
				r.Payload = nil
				r.Err = transport.NewRemoteError(r.Err)
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

	peer, ok := t.peerFor(member)
	if !ok {
		return reply
	}
	resp, err := t.peerRequest(ctx, peer, NewRequestFrame(t.address, msg))
	if err != nil {
		t.logger.Debug("no reply from member",
			slog.String("member", member),
			slog.String("tag", msg.Tag),
			slog.String("error", err.Error()),
		)
		return reply
	}

	reply.Received = true
	if resp.Type == FrameErr {
		reply.Err = resp.RemoteError()
		return reply
	}
	reply.Payload = resp.Data
	return reply
}

func (t *Transport) receiveLocal(ctx context.Context, msg *transport.Message) ([]byte, error) {
	r := t.receiver.Load()
	if r == nil {
		return nil, fmt.Errorf("%w: member %s has no receiver", distask.ErrNoHandlerFound, t.address)
	}
	in := &transport.Message{Tag: msg.Tag, Payload: slices.Clone(msg.Payload)}
	return (*r).Receive(ctx, t.address, in)
}

// Close leaves the cluster: it deregisters from the membership store,
// drops every peer and waits for the background loops.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.cancel()

	var errs []error
	if t.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), t.heartbeatTimeout)
		if err := t.store.DeregisterMember(ctx, t.address); err != nil && !errors.Is(err, distask.ErrMemberNotFound) {
			errs = append(errs, fmt.Errorf("dwp: deregister member: %w", err))
		}
		cancel()
	}

	t.peers.Range(func(key, _ any) bool {
		t.RemovePeer(key.(string)) //nolint:errcheck // sync.Map keys are URLs
		return true
	})
	for _, conn := range t.conns.All() {
		conn.Close()
	}

	t.wg.Wait()
	t.logger.Info("dwp transport closed", slog.String("member", t.address))
	return errors.Join(errs...)
}
