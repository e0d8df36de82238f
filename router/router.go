// Package router maps tagged requests to their handlers. The routing table
// is built once with a Builder and is immutable afterwards.
//
//	b := router.NewBuilder()
//	router.Bind(b, func(ctx context.Context, req MetaRequest) (*MemberMeta, error) { ... })
//	router.Bind(b, func(ctx context.Context, req CancelRequest) (bool, error) { ... })
//	r, err := b.Build()
//
// Requests are plain struct types whose Tag method has a value receiver, so
// that the tag can be read from the zero value at bind time.
package router

import (
	"context"
	"fmt"
	"slices"

	"github.com/xraph/distask"
	"github.com/xraph/distask/transport"
)

// Request is a message routed by its tag.
type Request interface {
	Tag() string
}

type binding struct {
	tag    string
	decode func(payload []byte) (Request, error)
	handle func(ctx context.Context, req Request) (any, error)
}

// Builder collects bindings.
type Builder struct {
	bindings []binding
	seen     map[string]bool
	dups     []string
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]bool)}
}

// Bind registers h for requests of type Req.
func Bind[Req Request, Resp any](b *Builder, h func(ctx context.Context, req Req) (Resp, error)) {
	var zero Req
	tag := zero.Tag()

	if b.seen[tag] {
		b.dups = append(b.dups, tag)
		return
	}
	b.seen[tag] = true

	b.bindings = append(b.bindings, binding{
		tag: tag,
		decode: func(payload []byte) (Request, error) {
			var req Req
			if len(payload) > 0 {
				if err := transport.Unmarshal(payload, &req); err != nil {
					return nil, err
				}
			}
			return req, nil
		},
		handle: func(ctx context.Context, req Request) (any, error) {
			typed, ok := req.(Req)
			if !ok {
				return nil, fmt.Errorf("router: %s: handler expects %T, got %T", tag, zero, req)
			}
			return h(ctx, typed)
		},
	})
}

// Build finalizes the routing table. It fails with
// distask.ErrDuplicateHandler if a tag was bound more than once.
func (b *Builder) Build() (*Router, error) {
	if len(b.dups) > 0 {
		return nil, fmt.Errorf("%w: %v", distask.ErrDuplicateHandler, b.dups)
	}

	r := &Router{
		table: make(map[string]binding, len(b.bindings)),
		tags:  make([]string, 0, len(b.bindings)),
	}
	for _, bd := range b.bindings {
		r.table[bd.tag] = bd
		r.tags = append(r.tags, bd.tag)
	}
	return r, nil
}

// Router dispatches requests to the handler bound to their tag.
type Router struct {
	table map[string]binding
	tags  []string
}

var _ transport.Receiver = (*Router)(nil)

// Tags returns the bound tags in registration order.
func (r *Router) Tags() []string { return slices.Clone(r.tags) }

// Dispatch invokes the handler bound to req's tag.
func (r *Router) Dispatch(ctx context.Context, req Request) (any, error) {
	bd, ok := r.table[req.Tag()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", distask.ErrNoHandlerFound, req.Tag())
	}
	return bd.handle(ctx, req)
}

// Receive decodes msg, dispatches it and encodes the handler's response.
func (r *Router) Receive(ctx context.Context, from string, msg *transport.Message) ([]byte, error) {
	bd, ok := r.table[msg.Tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", distask.ErrNoHandlerFound, msg.Tag)
	}

	req, err := bd.decode(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("router: decode %s from %s: %w", msg.Tag, from, err)
	}

	resp, err := bd.handle(WithSender(ctx, from), req)
	if err != nil {
		return nil, err
	}
	return transport.Marshal(resp)
}

// ── Client helpers ──────────────────────────────────

// Encode wraps req in a transport message.
func Encode(req Request) (*transport.Message, error) {
	return transport.NewMessage(req.Tag(), req)
}

// Decode reads a response payload produced by Receive.
func Decode[Resp any](payload []byte) (Resp, error) {
	var resp Resp
	err := transport.Unmarshal(payload, &resp)
	return resp, err
}

// ── Sender ──────────────────────────────────────────

type senderKey struct{}

// WithSender records the address of the member that sent the request.
func WithSender(ctx context.Context, from string) context.Context {
	return context.WithValue(ctx, senderKey{}, from)
}

// Sender returns the address of the member that sent the request being
// handled, if it arrived through a transport.
func Sender(ctx context.Context) (string, bool) {
	from, ok := ctx.Value(senderKey{}).(string)
	return from, ok
}
