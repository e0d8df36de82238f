package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/distask/executor"
	"github.com/xraph/distask/running"
	"github.com/xraph/distask/task"
)

// ── Placement ───────────────────────────────────────

// Placement picks the member that runs a submitted task.
type Placement interface {
	Place(view []string, local string, t task.Task) string
}

// LocalPlacement runs every task on the submitting member.
type LocalPlacement struct{}

// Place returns local.
func (LocalPlacement) Place(_ []string, local string, _ task.Task) string { return local }

// RoundRobinPlacement cycles through the view.
type RoundRobinPlacement struct {
	mu        sync.Mutex
	next      int
	skipLocal bool
}

// NewRoundRobinPlacement creates a round-robin placement. With skipLocal
// set the submitting member is left out of the rotation unless it is
// alone in the view.
func NewRoundRobinPlacement(skipLocal bool) *RoundRobinPlacement {
	return &RoundRobinPlacement{skipLocal: skipLocal}
}

// Place returns the next member of the view.
func (p *RoundRobinPlacement) Place(view []string, local string, _ task.Task) string {
	candidates := view
	if p.skipLocal {
		candidates = make([]string, 0, len(view))
		for _, m := range view {
			if m != local {
				candidates = append(candidates, m)
			}
		}
	}
	if len(candidates) == 0 {
		return local
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	m := candidates[p.next%len(candidates)]
	p.next++
	return m
}

// ── Handle ──────────────────────────────────────────

// Handle tracks a submitted task, wherever it runs. Tasks placed on
// another member report completion but not their result value.
type Handle struct {
	taskID string
	member string
	coord  *Coordinator

	// Local tasks.
	future *executor.Future

	// Remote tasks.
	done chan struct{}
	once sync.Once
	err  error
}

// TaskID returns the identity of the submitted task.
func (h *Handle) TaskID() string { return h.taskID }

// Member returns the address of the member running the task.
func (h *Handle) Member() string { return h.member }

// Done is closed when the task has finished.
func (h *Handle) Done() <-chan struct{} {
	if h.future != nil {
		return h.future.Done()
	}
	return h.done
}

// Wait blocks until the task finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	if h.future != nil {
		return h.future.Wait(ctx)
	}
	select {
	case <-h.done:
		return nil, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel interrupts the task. For a task on another member this only
// reaches it once it has started running there.
func (h *Handle) Cancel(ctx context.Context) (bool, error) {
	if h.future != nil {
		return h.future.Cancel(), nil
	}
	return h.coord.CancelRunningTask(ctx, h.member, h.taskID)
}

func (h *Handle) resolve(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// ── Submit ──────────────────────────────────────────

// SubmitTask runs t on the member chosen by the coordinator's placement.
// Tasks placed on another member must be registered in that member's task
// registry under t.Name().
func (c *Coordinator) SubmitTask(ctx context.Context, t task.Task) (*Handle, error) {
	local := c.Address()
	member := c.placement.Place(c.transport.View(), local, t)

	if member == local {
		future, err := c.pool.Submit(ctx, t)
		if err != nil {
			return nil, err
		}
		return &Handle{taskID: t.ID().String(), member: local, coord: c, future: future}, nil
	}

	env, err := task.Seal(t)
	if err != nil {
		return nil, err
	}

	h := &Handle{taskID: env.ID, member: member, coord: c, done: make(chan struct{})}
	// Registered before sending: a short task may report before the
	// submit reply arrives.
	if _, loaded := c.pending.LoadOrStore(env.ID, h); loaded {
		return nil, fmt.Errorf("coordinator: task %s already submitted", env.ID)
	}

	if _, err := call[*SubmitResponse](ctx, c, member, SubmitRequest{Envelope: *env, Origin: local}); err != nil {
		c.pending.Delete(env.ID)
		return nil, err
	}

	c.logger.Info("placed task",
		slog.String("task_id", env.ID),
		slog.String("task_name", env.Name),
		slog.String("member", member),
	)
	return h, nil
}

// ── Remote task ─────────────────────────────────────

// remoteTask decorates a task placed here by another member.
type remoteTask struct {
	task.Task
	origin string
}

var (
	_ task.Wrapper       = (*remoteTask)(nil)
	_ running.Originator = (*remoteTask)(nil)
)

func (r *remoteTask) Unwrap() task.Task { return r.Task }

func (r *remoteTask) Origin() string { return r.origin }

