package dwp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"

	"github.com/xraph/distask"
)

// ── Peer ──────────────────────────────────────

// PeerState represents the connection state of a peer.
type PeerState string

const (
	PeerStateConnected    PeerState = "connected"
	PeerStateDisconnected PeerState = "disconnected"
	PeerStateConnecting   PeerState = "connecting"
)

// errPeerDisconnected fails requests pending on a connection that dropped.
var errPeerDisconnected = errors.New("dwp: peer disconnected")

// errSelfDial is returned when a URL leads back to the local member.
var errSelfDial = errors.New("dwp: peer is the local member")

// Peer is an outbound connection to another member. Requests to that
// member travel over it.
type Peer struct {
	// URL is the WebSocket endpoint for the peer's DWP server.
	URL string

	mu       sync.RWMutex
	address  string
	state    PeerState
	lastSeen time.Time
	conn     *Connection

	// pending tracks request-response correlation.
	pending sync.Map // frameID → chan *Frame

	reconnecting atomic.Bool
}

// PeerInfo is a snapshot of a peer.
type PeerInfo struct {
	URL      string    `json:"url"`
	Address  string    `json:"address"`
	State    PeerState `json:"state"`
	LastSeen time.Time `json:"last_seen"`
}

func (p *Peer) info() PeerInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PeerInfo{URL: p.URL, Address: p.address, State: p.state, LastSeen: p.lastSeen}
}

func (p *Peer) connected() (*Connection, string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn, p.address, p.state == PeerStateConnected && p.conn != nil
}

// failPending wakes every request waiting on this peer.
func (p *Peer) failPending() {
	p.pending.Range(func(key, value any) bool {
		if _, ok := p.pending.LoadAndDelete(key); ok {
			value.(chan *Frame) <- nil //nolint:errcheck // pending map always stores chan *Frame
		}
		return true
	})
}

// ── Peer Management ────────────────────────────

// AddPeer dials the member at url. A peer that is already known is left
// untouched. If the first dial fails the peer is kept and redialed in the
// background.
func (t *Transport) AddPeer(ctx context.Context, url string) error {
	if t.closed.Load() {
		return distask.ErrTransportClosed
	}
	if url == "" || url == t.url {
		return nil
	}
	peer := &Peer{URL: url, state: PeerStateDisconnected}
	if _, loaded := t.peers.LoadOrStore(url, peer); loaded {
		return nil
	}

	err := t.connectPeer(ctx, peer)
	switch {
	case errors.Is(err, errSelfDial):
		t.peers.Delete(url)
		return nil
	case err != nil:
		t.scheduleReconnect(peer)
		return err
	}
	return nil
}

// RemovePeer disconnects and forgets the peer at url.
func (t *Transport) RemovePeer(url string) {
	val, ok := t.peers.LoadAndDelete(url)
	if !ok {
		return
	}
	t.disconnectPeer(val.(*Peer)) //nolint:errcheck // sync.Map always stores *Peer
}

// Peers returns a snapshot of all peers.
func (t *Transport) Peers() []PeerInfo {
	var peers []PeerInfo
	t.peers.Range(func(_, value any) bool {
		peers = append(peers, value.(*Peer).info()) //nolint:errcheck // sync.Map always stores *Peer
		return true
	})
	return peers
}

// peerFor returns the connected peer whose address is member.
func (t *Transport) peerFor(member string) (*Peer, bool) {
	var found *Peer
	t.peers.Range(func(_, value any) bool {
		peer := value.(*Peer) //nolint:errcheck // sync.Map always stores *Peer
		if _, addr, ok := peer.connected(); ok && addr == member {
			found = peer
			return false
		}
		return true
	})
	return found, found != nil
}

// ── Connection Management ──────────────────────

func (t *Transport) connectPeer(ctx context.Context, peer *Peer) error {
	peer.mu.Lock()
	peer.state = PeerStateConnecting
	peer.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, t.authTimeout)
	conn, err := t.dial(dialCtx, peer.URL)
	cancel()
	if err != nil {
		peer.mu.Lock()
		peer.state = PeerStateDisconnected
		peer.mu.Unlock()
		return err
	}

	peer.mu.Lock()
	peer.conn = conn
	peer.address = conn.Member
	peer.state = PeerStateConnected
	peer.lastSeen = time.Now().UTC()
	peer.mu.Unlock()

	// Start read loop for this peer.
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.peerReadLoop(peer, conn)
	}()

	t.logger.Info("peer connected",
		slog.String("member", conn.Member),
		slog.String("url", peer.URL),
	)
	t.extensions.EmitMemberJoined(t.ctx, conn.Member)
	return nil
}

// dial opens and authenticates a connection to url.
func (t *Transport) dial(ctx context.Context, url string) (*Connection, error) {
	netConn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dwp: dial %q: %w", url, err)
	}

	// Auth frames are always JSON (before codec negotiation).
	authConn := newConnection("", netConn, ws.StateClientSide, &JSONCodec{})
	authFrame := &Frame{
		ID:     GenerateFrameID(),
		Type:   FrameRequest,
		Method: MethodAuth,
		Data: mustMarshalJSON(AuthRequest{
			Token:  t.token,
			Format: t.codec.Name(),
			Member: t.address,
			URL:    t.url,
		}),
		Timestamp: time.Now().UTC(),
	}
	if err := authConn.Write(authFrame); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("dwp: auth write %q: %w", url, err)
	}

	// The auth response is already in the negotiated codec.
	conn := newConnection("", netConn, ws.StateClientSide, t.codec)
	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetReadDeadline(deadline)
	}
	resp, err := conn.Read()
	_ = netConn.SetReadDeadline(time.Time{})
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("dwp: auth read %q: %w", url, err)
	}

	if resp.Type == FrameErr {
		netConn.Close()
		msg := "auth failed"
		if resp.Error != nil {
			msg = resp.Error.Message
			if resp.Error.Code == ErrCodeUnauthorized {
				return nil, fmt.Errorf("%w: %s at %q", ErrUnauthorized, msg, url)
			}
		}
		return nil, fmt.Errorf("dwp: %s at %q", msg, url)
	}

	var authResp AuthResponse
	if err := json.Unmarshal(resp.Data, &authResp); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("dwp: auth parse %q: %w", url, err)
	}
	if authResp.Member == t.address {
		netConn.Close()
		return nil, errSelfDial
	}

	conn.ID = authResp.SessionID
	conn.Member = authResp.Member
	return conn, nil
}

func (t *Transport) disconnectPeer(peer *Peer) {
	peer.mu.Lock()
	conn, address := peer.conn, peer.address
	wasConnected := peer.state == PeerStateConnected
	peer.conn = nil
	peer.state = PeerStateDisconnected
	peer.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	peer.failPending()

	if wasConnected {
		t.logger.Info("peer disconnected",
			slog.String("member", address),
			slog.String("url", peer.URL),
		)
		t.extensions.EmitMemberLeft(context.Background(), address)
	}
}

func (t *Transport) peerReadLoop(peer *Peer, conn *Connection) {
	for {
		frame, err := conn.Read()
		if err != nil {
			peer.mu.RLock()
			current := peer.conn == conn
			peer.mu.RUnlock()
			if !current {
				return // Replaced or closed deliberately.
			}

			if t.ctx.Err() == nil {
				t.logger.Warn("peer read error",
					slog.String("member", conn.Member),
					slog.String("error", err.Error()),
				)
			}
			t.disconnectPeer(peer)
			t.scheduleReconnect(peer)
			return
		}

		peer.mu.Lock()
		peer.lastSeen = time.Now().UTC()
		peer.mu.Unlock()

		switch frame.Type {
		case FrameResponse, FrameErr:
			// Resolve pending request.
			if val, ok := peer.pending.LoadAndDelete(frame.CorrelID); ok {
				val.(chan *Frame) <- frame //nolint:errcheck // pending map always stores chan *Frame
			}
		case FramePong:
			// Heartbeat response; lastSeen is already updated.
		}
	}
}

func (t *Transport) scheduleReconnect(peer *Peer) {
	if t.ctx.Err() != nil || !peer.reconnecting.CompareAndSwap(false, true) {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer peer.reconnecting.Store(false)
		t.reconnectPeer(peer)
	}()
}

func (t *Transport) reconnectPeer(peer *Peer) {
	for attempt := 1; ; attempt++ {
		// Don't reconnect if peer was removed.
		if val, exists := t.peers.Load(peer.URL); !exists || val != peer {
			return
		}

		delay := t.reconnect.Delay(attempt)
		t.logger.Info("reconnecting to peer",
			slog.String("url", peer.URL),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
		)

		select {
		case <-t.ctx.Done():
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(t.ctx, t.heartbeatTimeout)
		err := t.connectPeer(ctx, peer)
		cancel()
		switch {
		case err == nil:
			return
		case errors.Is(err, errSelfDial):
			t.peers.Delete(peer.URL)
			return
		}
	}
}

// ── Request/Response ───────────────────────────

func (t *Transport) peerRequest(ctx context.Context, peer *Peer, frame *Frame) (*Frame, error) {
	conn, _, ok := peer.connected()
	if !ok {
		return nil, errPeerDisconnected
	}

	ch := make(chan *Frame, 1)
	peer.pending.Store(frame.ID, ch)
	defer peer.pending.Delete(frame.ID)

	if err := conn.Write(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, errPeerDisconnected
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ── Heartbeat ──────────────────────────────────

func (t *Transport) heartbeatLoop() {
	ticker := time.NewTicker(t.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.sendHeartbeats()
			t.checkPeerHealth()
		}
	}
}

func (t *Transport) sendHeartbeats() {
	t.peers.Range(func(_, value any) bool {
		peer := value.(*Peer) //nolint:errcheck // sync.Map always stores *Peer
		conn, address, ok := peer.connected()
		if !ok {
			return true
		}

		ping := &Frame{
			ID:        GenerateFrameID(),
			Type:      FramePing,
			Source:    t.address,
			Timestamp: time.Now().UTC(),
		}
		if err := conn.Write(ping); err != nil {
			t.logger.Warn("heartbeat failed",
				slog.String("member", address),
				slog.String("error", err.Error()),
			)
		}
		return true
	})
}

func (t *Transport) checkPeerHealth() {
	now := time.Now().UTC()
	t.peers.Range(func(_, value any) bool {
		peer := value.(*Peer) //nolint:errcheck // sync.Map always stores *Peer
		info := peer.info()

		if info.State == PeerStateConnected && now.Sub(info.LastSeen) > t.heartbeatTimeout {
			t.logger.Warn("peer timed out",
				slog.String("member", info.Address),
				slog.Duration("since_last_seen", now.Sub(info.LastSeen)),
			)
			t.disconnectPeer(peer)
			t.scheduleReconnect(peer)
		}
		return true
	})
}
