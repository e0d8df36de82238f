package coordinator

import (
	"log/slog"

	"github.com/xraph/distask"
	"github.com/xraph/distask/router"
	"github.com/xraph/distask/task"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig sets the coordinator configuration.
func WithConfig(cfg distask.Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithHandlers binds additional request handlers next to the built-in
// ones. Tags must not collide with the built-in tags.
func WithHandlers(bind func(b *router.Builder)) Option {
	return func(c *Coordinator) { c.binders = append(c.binders, bind) }
}

// WithTaskRegistry sets the task type registry used to open tasks placed
// on this member by others.
func WithTaskRegistry(r *task.Registry) Option {
	return func(c *Coordinator) { c.tasks = r }
}

// WithPlacement sets where SubmitTask runs tasks.
func WithPlacement(p Placement) Option {
	return func(c *Coordinator) { c.placement = p }
}

// WithSystemInfo overrides the host facts reported in MemberMeta.
func WithSystemInfo(s SystemInfo) Option {
	return func(c *Coordinator) { c.sysinfo = s }
}
