package dwp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/time/rate"
)

// Connection represents an authenticated DWP connection, either accepted
// from a peer or dialed to one.
type Connection struct {
	// ID uniquely identifies this connection (the session ID).
	ID string

	// Identity is the authenticated identity of an accepted connection.
	// It is nil on dialed connections.
	Identity *Identity

	// Codec is the negotiated wire format.
	Codec Codec

	// Member is the address announced by the other side, if any.
	Member string

	// ConnectedAt records when the connection was established.
	ConnectedAt time.Time

	// LastActivity tracks the most recent frame received.
	LastActivity atomic.Value // time.Time

	conn    net.Conn
	side    ws.State
	writeMu sync.Mutex
	limiter *rate.Limiter
}

func newConnection(id string, conn net.Conn, side ws.State, codec Codec) *Connection {
	c := &Connection{
		ID:          id,
		Codec:       codec,
		ConnectedAt: time.Now().UTC(),
		conn:        conn,
		side:        side,
	}
	c.LastActivity.Store(time.Now().UTC())
	return c
}

// Touch updates the last activity timestamp.
func (c *Connection) Touch() {
	c.LastActivity.Store(time.Now().UTC())
}

// Write encodes and sends a frame. Safe for concurrent use.
func (c *Connection) Write(frame *Frame) error {
	data, err := c.Codec.Encode(frame)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteMessage(c.conn, c.side, opCode(c.Codec), data)
}

// Read blocks for the next frame. Control frames are handled internally.
// Text frames are always JSON, so errors sent before codec negotiation
// still decode. It must be called from a single goroutine.
func (c *Connection) Read() (*Frame, error) {
	data, op, err := wsutil.ReadData(c.conn, c.side)
	if err != nil {
		return nil, err
	}
	c.Touch()
	if op == ws.OpText && c.Codec.Name() != CodecNameJSON {
		return (&JSONCodec{}).Decode(data)
	}
	return c.Codec.Decode(data)
}

// wait applies the inbound rate limit, if any.
func (c *Connection) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Close closes the underlying network connection.
func (c *Connection) Close() error { return c.conn.Close() }

// ConnectionManager tracks accepted DWP connections.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionManager creates an empty connection manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns: make(map[string]*Connection),
	}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.conns[conn.ID] = conn
	cm.mu.Unlock()
}

// Remove unregisters a connection.
func (cm *ConnectionManager) Remove(connID string) {
	cm.mu.Lock()
	delete(cm.conns, connID)
	cm.mu.Unlock()
}

// Get returns a connection by ID.
func (cm *ConnectionManager) Get(connID string) (*Connection, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.conns[connID]
	return c, ok
}

// Count returns the number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.conns)
}

// All returns a snapshot of all connections.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]*Connection, 0, len(cm.conns))
	for _, c := range cm.conns {
		out = append(out, c)
	}
	return out
}
