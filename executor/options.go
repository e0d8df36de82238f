package executor

import (
	"log/slog"

	"github.com/xraph/distask/ext"
	"github.com/xraph/distask/middleware"
)

// Option configures a Pool.
type Option func(*Pool)

// WithThreads sets the number of worker threads. Zero is legal and gives
// a pool that accepts nothing; the control CLI joins clusters that way.
func WithThreads(n int) Option {
	return func(p *Pool) { p.threads = n }
}

// WithQueueSize bounds the number of submissions waiting for a thread.
func WithQueueSize(n int) Option {
	return func(p *Pool) { p.queueSize = n }
}

// WithThreadPrefix sets the prefix of worker thread names.
func WithThreadPrefix(prefix string) Option {
	return func(p *Pool) { p.prefix = prefix }
}

// WithMiddleware appends task execution middleware.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(p *Pool) { p.mws = append(p.mws, mws...) }
}

// WithExtensions sets the lifecycle hook registry.
func WithExtensions(r *ext.Registry) Option {
	return func(p *Pool) { p.extensions = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}
