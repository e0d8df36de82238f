// Package dwp implements the distask wire protocol (DWP), the networked
// cluster transport. Members exchange tagged requests over authenticated
// WebSocket connections; every member serves an HTTP endpoint that peers
// dial, and dials every peer it learns about.
package dwp

import (
	"encoding/json"
	"time"

	"github.com/xraph/distask/id"
	"github.com/xraph/distask/transport"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the DWP message envelope. Every message exchanged over
// the protocol is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Method is the request tag for request frames (e.g., "tasks.running").
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Token carries auth credentials (only on the auth frame).
	Token string `json:"token,omitempty" msgpack:"token,omitempty"`

	// Source is the address of the member that sent the request.
	Source string `json:"source,omitempty" msgpack:"source,omitempty"`

	// Data carries the request or response payload.
	Data []byte `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error in an error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`

	// Kind is the transport error code of a handler failure, so that
	// well-known errors survive the wire.
	Kind string `json:"kind,omitempty" msgpack:"kind,omitempty"`
}

// ── Well-known methods ──────────────────────────────

// MethodAuth must be the method of the first frame on every connection.
const MethodAuth = "auth"

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest     = 400
	ErrCodeUnauthorized   = 401
	ErrCodeForbidden      = 403
	ErrCodeMethodNotFound = 405
	ErrCodeInternal       = 500
	ErrCodeUnavailable    = 503
)

// ── Auth payloads ───────────────────────────────────

// AuthRequest is sent by a dialing member to authenticate. Auth payloads
// are always JSON.
type AuthRequest struct {
	Token  string `json:"token"`
	Format string `json:"format,omitempty"` // "json" (default) or "msgpack"

	// Member and URL announce the dialing member so that the accepting
	// member can dial back. Both are empty for members that do not serve.
	Member string `json:"member,omitempty"`
	URL    string `json:"url,omitempty"`
}

// AuthResponse is returned after successful authentication.
type AuthResponse struct {
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
	Member    string `json:"member"`
	Cluster   string `json:"cluster,omitempty"`
}

// ── Constructors ────────────────────────────────────

// NewRequestFrame creates a request frame carrying an encoded message.
func NewRequestFrame(source string, msg *transport.Message) *Frame {
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameRequest,
		Method:    msg.Tag,
		Source:    source,
		Data:      msg.Payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseFrame creates a response to a request.
func NewResponseFrame(correlID string, data []byte) *Frame {
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       GenerateFrameID(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewHandlerErrorFrame reports a failed request handler.
func NewHandlerErrorFrame(correlID string, err error) *Frame {
	f := NewErrorFrame(correlID, ErrCodeInternal, err.Error())
	f.Error.Kind = transport.ErrorCode(err)
	return f
}

// RemoteError converts an error frame into the error a caller sees.
func (f *Frame) RemoteError() *transport.RemoteError {
	if f.Error == nil {
		return &transport.RemoteError{Code: transport.CodeInternal, Message: "dwp: error frame without details"}
	}
	code := f.Error.Kind
	if code == "" {
		code = transport.CodeInternal
	}
	return &transport.RemoteError{Code: code, Message: f.Error.Message}
}

// GenerateFrameID returns a new unique frame ID.
func GenerateFrameID() string {
	return id.NewFrameID().String()
}

func mustMarshalJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("dwp: marshal: " + err.Error())
	}
	return data
}
