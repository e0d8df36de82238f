package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/distask"
	"github.com/xraph/distask/executor"
	"github.com/xraph/distask/router"
	"github.com/xraph/distask/running"
	"github.com/xraph/distask/task"
	"github.com/xraph/distask/transport"
)

// Coordinator is one member's entry point into the cluster.
type Coordinator struct {
	cfg       distask.Config
	transport transport.Transport
	pool      *executor.Pool
	running   *running.Registry
	router    *router.Router
	tasks     *task.Registry
	placement Placement
	sysinfo   SystemInfo
	binders   []func(b *router.Builder)
	logger    *slog.Logger

	// pending holds handles of tasks placed on other members, keyed by
	// task ID, until their result is reported.
	pending sync.Map

	stopOnce sync.Once
}

// New creates a coordinator for the member behind t, executing local work
// on pool. It installs its router as t's receiver.
func New(t transport.Transport, pool *executor.Pool, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		cfg:       distask.DefaultConfig(),
		transport: t,
		pool:      pool,
		placement: LocalPlacement{},
		sysinfo:   HostInfo{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tasks == nil {
		c.tasks = task.NewRegistry()
	}
	c.running = running.New(t.Address(), pool)

	b := router.NewBuilder()
	c.bind(b)
	for _, bind := range c.binders {
		bind(b)
	}
	r, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("coordinator: build router: %w", err)
	}
	c.router = r
	t.SetReceiver(r)

	return c, nil
}

// Start starts the local executor.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.pool.Start(ctx); err != nil {
		return fmt.Errorf("coordinator: start executor: %w", err)
	}
	c.logger.Info("coordinator started",
		slog.String("member", c.Address()),
		slog.String("cluster", c.clusterName()),
		slog.Int("threads", c.pool.Threads()),
	)
	return nil
}

// Stop stops the executor, fails the handles of tasks still running on
// other members and leaves the cluster.
func (c *Coordinator) Stop(ctx context.Context) error {
	var errs []error
	c.stopOnce.Do(func() {
		if err := c.pool.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop executor: %w", err))
		}
		c.pool.Extensions().EmitShutdown(ctx)

		c.pending.Range(func(key, value any) bool {
			c.pending.Delete(key)
			value.(*Handle).resolve(distask.ErrTransportClosed)
			return true
		})

		if err := c.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
		c.logger.Info("coordinator stopped", slog.String("member", c.Address()))
	})
	return errors.Join(errs...)
}

// Address returns the local member address.
func (c *Coordinator) Address() string { return c.transport.Address() }

// Running returns the local running task registry.
func (c *Coordinator) Running() *running.Registry { return c.running }

// Router returns the local request router.
func (c *Coordinator) Router() *router.Router { return c.router }

// Tasks returns the task type registry used to open placed tasks.
func (c *Coordinator) Tasks() *task.Registry { return c.tasks }

// Executor returns the local executor.
func (c *Coordinator) Executor() *executor.Pool { return c.pool }

// Lock returns the cluster-wide lock called name. Lock lifecycle events are
// logged with the local member address.
func (c *Coordinator) Lock(name string) transport.Locker {
	return transport.LogLocks(c.transport.Lock(name), c.Address(), c.logger)
}

func (c *Coordinator) clusterName() string {
	if name := c.transport.ClusterName(); name != "" {
		return name
	}
	return c.cfg.ClusterName
}

func (c *Coordinator) instanceName() string {
	if c.cfg.InstanceName != "" {
		return c.cfg.InstanceName
	}
	return c.Address()
}
