package dwp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"golang.org/x/time/rate"

	"github.com/xraph/distask"
	"github.com/xraph/distask/id"
	"github.com/xraph/distask/transport"
)

// ServeHTTP upgrades the request to a DWP WebSocket connection and serves
// requests from the peer until it disconnects. Mount it wherever the
// member's URL points.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.closed.Load() {
		http.Error(w, "dwp: transport closed", http.StatusServiceUnavailable)
		return
	}

	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		t.logger.Warn("DWP upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer netConn.Close()

	conn, err := t.accept(r.Context(), newConnection("", netConn, ws.StateServerSide, &JSONCodec{}))
	if err != nil {
		t.logger.Warn("DWP handshake failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	t.conns.Add(conn)
	defer func() {
		t.conns.Remove(conn.ID)
		t.logger.Debug("DWP connection closed",
			slog.String("conn_id", conn.ID),
			slog.String("member", conn.Member),
		)
	}()

	t.serve(conn)
}

// accept runs the auth handshake on a fresh connection. The returned
// connection uses the negotiated codec.
func (t *Transport) accept(ctx context.Context, conn *Connection) (*Connection, error) {
	_ = conn.conn.SetReadDeadline(time.Now().Add(t.authTimeout))
	authFrame, err := conn.Read()
	_ = conn.conn.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, err
	}

	if authFrame.Type != FrameRequest || authFrame.Method != MethodAuth {
		//nolint:errcheck // best-effort error response before disconnect
		conn.Write(NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "first frame must be auth"))
		return nil, ErrUnauthorized
	}

	var authReq AuthRequest
	if len(authFrame.Data) > 0 {
		if err := json.Unmarshal(authFrame.Data, &authReq); err != nil {
			//nolint:errcheck // best-effort error response before disconnect
			conn.Write(NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "invalid auth data"))
			return nil, err
		}
	}

	token := authReq.Token
	if token == "" {
		token = authFrame.Token
	}
	identity, err := t.auth.Authenticate(ctx, token)
	if err != nil {
		//nolint:errcheck // best-effort error response before disconnect
		conn.Write(NewErrorFrame(authFrame.ID, ErrCodeUnauthorized, "authentication failed"))
		return nil, err
	}

	codec := t.codec
	if authReq.Format != "" {
		codec = GetCodec(authReq.Format)
	}

	accepted := newConnection(id.NewSessionID().String(), conn.conn, ws.StateServerSide, codec)
	accepted.Identity = identity
	accepted.Member = authReq.Member
	if t.limit != rate.Inf {
		accepted.limiter = rate.NewLimiter(t.limit, t.burst)
	}

	resp := NewResponseFrame(authFrame.ID, mustMarshalJSON(AuthResponse{
		Format:    codec.Name(),
		SessionID: accepted.ID,
		Member:    t.address,
		Cluster:   t.cluster,
	}))
	if err := accepted.Write(resp); err != nil {
		return nil, err
	}

	t.logger.Info("DWP authenticated",
		slog.String("conn_id", accepted.ID),
		slog.String("subject", identity.Subject),
		slog.String("member", accepted.Member),
		slog.String("codec", codec.Name()),
	)

	// Dial back so requests can flow both ways.
	if authReq.URL != "" && authReq.Member != "" && authReq.Member != t.address {
		if _, known := t.peerFor(authReq.Member); !known {
			t.wg.Add(1)
			go func() {
				defer t.wg.Done()
				dialCtx, cancel := context.WithTimeout(t.ctx, t.heartbeatTimeout)
				defer cancel()
				if err := t.AddPeer(dialCtx, authReq.URL); err != nil {
					t.logger.Warn("dial back failed",
						slog.String("url", authReq.URL),
						slog.String("error", err.Error()),
					)
				}
			}()
		}
	}

	return accepted, nil
}

// serve is the frame processing loop of an accepted connection.
func (t *Transport) serve(conn *Connection) {
	for {
		frame, err := conn.Read()
		if err != nil {
			return // Connection closed.
		}

		if err := conn.wait(t.ctx); err != nil {
			return
		}

		switch frame.Type {
		case FramePing:
			pong := &Frame{
				ID:        GenerateFrameID(),
				Type:      FramePong,
				CorrelID:  frame.ID,
				Source:    t.address,
				Timestamp: time.Now().UTC(),
			}
			if err := conn.Write(pong); err != nil {
				t.logger.Warn("failed to write pong frame", slog.String("error", err.Error()))
			}

		case FrameRequest:
			if !conn.Identity.permits(RequiredScope(frame.Method, t.readMethods)) {
				t.writeReply(conn, NewErrorFrame(frame.ID, ErrCodeForbidden, "insufficient permissions"))
				continue
			}
			go t.handleRequest(conn, frame)

		default:
			t.writeReply(conn, NewErrorFrame(frame.ID, ErrCodeBadRequest, "unexpected frame type "+string(frame.Type)))
		}
	}
}

func (t *Transport) handleRequest(conn *Connection, frame *Frame) {
	from := frame.Source
	if from == "" {
		from = conn.Member
	}

	r := t.receiver.Load()
	if r == nil {
		err := fmt.Errorf("%w: member %s has no receiver", distask.ErrNoHandlerFound, t.address)
		t.writeReply(conn, NewHandlerErrorFrame(frame.ID, err))
		return
	}

	payload, err := (*r).Receive(t.ctx, from, &transport.Message{Tag: frame.Method, Payload: frame.Data})
	if err != nil {
		t.logger.Debug("request failed",
			slog.String("conn_id", conn.ID),
			slog.String("tag", frame.Method),
			slog.String("error", err.Error()),
		)
		t.writeReply(conn, NewHandlerErrorFrame(frame.ID, err))
		return
	}
	t.writeReply(conn, NewResponseFrame(frame.ID, payload))
}

func (t *Transport) writeReply(conn *Connection, frame *Frame) {
	if err := conn.Write(frame); err != nil {
		t.logger.Warn("failed to write response frame",
			slog.String("conn_id", conn.ID),
			slog.String("error", err.Error()),
		)
	}
}
