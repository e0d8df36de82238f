package task

import (
	"context"

	"github.com/xraph/distask/id"
)

// Kind distinguishes run-to-completion tasks from resumable ones.
type Kind string

const (
	// KindSimple tasks run once to completion.
	KindSimple Kind = "simple"
	// KindResumable tasks run, wait and resume until complete.
	KindResumable Kind = "resumable"
)

// Status is produced by each step of a resumable task.
type Status int

const (
	// StatusComplete ends the resumable loop.
	StatusComplete Status = iota
	// StatusWait asks the loop to sleep one poll interval and resume.
	StatusWait
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusWait:
		return "wait"
	default:
		return "unknown"
	}
}

// Task is a unit of submitted work.
type Task interface {
	// ID is the task's identity, unique per task instance.
	ID() id.TaskID

	// Name is the task type name. It is used to filter running tasks and
	// to rebuild the task from an Envelope on a remote member.
	Name() string

	// Kind reports whether the task is simple or resumable.
	Kind() Kind

	// Run executes the task. It is the only entry point used by the
	// executor. The context is cancelled when the task is interrupted.
	Run(ctx context.Context) (any, error)
}

// Wrapper is implemented by tasks that decorate another task. Callers that
// need the original task unwrap exactly one layer.
type Wrapper interface {
	Unwrap() Task
}

// Base carries the identity shared by all task kinds.
type Base struct {
	id   id.TaskID
	name string
}

// ID returns the task identity.
func (b *Base) ID() id.TaskID { return b.id }

// Name returns the task type name.
func (b *Base) Name() string { return b.name }
