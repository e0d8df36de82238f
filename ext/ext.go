package ext

import (
	"context"
	"time"

	"github.com/xraph/distask/task"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Task lifecycle hooks
// ──────────────────────────────────────────────────

// TaskSubmitted is called after a task is accepted by an executor.
type TaskSubmitted interface {
	OnTaskSubmitted(ctx context.Context, t task.Task) error
}

// TaskStarted is called when a worker thread begins running a task.
type TaskStarted interface {
	OnTaskStarted(ctx context.Context, t task.Task, thread string) error
}

// TaskCompleted is called after a task's Run returns without error.
type TaskCompleted interface {
	OnTaskCompleted(ctx context.Context, t task.Task, elapsed time.Duration) error
}

// TaskFailed is called when a task's Run returns an error.
type TaskFailed interface {
	OnTaskFailed(ctx context.Context, t task.Task, err error) error
}

// TaskCancelled is called when a task is interrupted, either while queued
// or while running.
type TaskCancelled interface {
	OnTaskCancelled(ctx context.Context, t task.Task) error
}

// ──────────────────────────────────────────────────
// Cluster hooks
// ──────────────────────────────────────────────────

// MemberJoined is called when a member enters the local view.
type MemberJoined interface {
	OnMemberJoined(ctx context.Context, address string) error
}

// MemberLeft is called when a member leaves the local view.
type MemberLeft interface {
	OnMemberLeft(ctx context.Context, address string) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
