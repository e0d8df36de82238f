package dwp

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/distask/backoff"
	"github.com/xraph/distask/cluster"
	"github.com/xraph/distask/ext"
	"github.com/xraph/distask/transport"
)

// Option configures a Transport.
type Option func(*Transport)

// WithURL sets the WebSocket URL peers dial to reach this member. Members
// without a URL can call others but are never dialed back.
func WithURL(url string) Option {
	return func(t *Transport) { t.url = url }
}

// WithClusterName sets the cluster name reported by the transport.
func WithClusterName(name string) Option {
	return func(t *Transport) { t.cluster = name }
}

// WithSeeds sets peer URLs dialed at Start.
func WithSeeds(urls ...string) Option {
	return func(t *Transport) { t.seeds = append(t.seeds, urls...) }
}

// WithAuth sets the authenticator for accepted connections.
// If not set, NoopAuthenticator is used (development mode).
func WithAuth(auth Authenticator) Option {
	return func(t *Transport) { t.auth = auth }
}

// WithToken sets the credential presented when dialing peers.
func WithToken(token string) Option {
	return func(t *Transport) { t.token = token }
}

// WithCodec sets the frame codec requested when dialing peers.
func WithCodec(codec Codec) Option {
	return func(t *Transport) { t.codec = codec }
}

// WithReadMethods replaces the request tags a read-only identity may send.
func WithReadMethods(tags ...string) Option {
	return func(t *Transport) { t.readMethods = tags }
}

// WithRateLimit bounds the frames read per second on each accepted
// connection. Frames over the limit wait.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(t *Transport) { t.limit, t.burst = limit, burst }
}

// WithHeartbeat sets how often peers are pinged and how long a silent
// peer is kept before it is disconnected.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(t *Transport) { t.heartbeatInterval, t.heartbeatTimeout = interval, timeout }
}

// WithReconnect sets the delay strategy between reconnect attempts.
func WithReconnect(s backoff.Strategy) Option {
	return func(t *Transport) { t.reconnect = s }
}

// WithMembership discovers peers through store. The member registers
// itself, heartbeats, dials the members it finds and drops the ones reaped
// after staleAfter.
func WithMembership(store cluster.Store, staleAfter time.Duration) Option {
	return func(t *Transport) { t.store, t.staleAfter = store, staleAfter }
}

// WithMemberInfo sets the thread count and metadata published to the
// membership store.
func WithMemberInfo(threads int, metadata map[string]string) Option {
	return func(t *Transport) { t.threads, t.metadata = threads, metadata }
}

// WithLockProvider sets where named locks come from. Default is
// process-local locks.
func WithLockProvider(p transport.LockProvider) Option {
	return func(t *Transport) { t.locks = p }
}

// WithExtensions sets the registry notified when peers join and leave.
func WithExtensions(r *ext.Registry) Option {
	return func(t *Transport) { t.extensions = r }
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}
