package task

import "context"

// Func is the body of a simple task.
type Func func(ctx context.Context) (any, error)

// Simple is a run-to-completion task.
type Simple struct {
	Base
	fn Func
}

// NewSimple creates a simple task named name that runs fn once.
func NewSimple(name string, fn Func, opts ...Option) *Simple {
	o := buildOptions(opts)
	return &Simple{
		Base: Base{id: o.ID, name: name},
		fn:   fn,
	}
}

// Kind returns KindSimple.
func (s *Simple) Kind() Kind { return KindSimple }

// Run calls the task body.
func (s *Simple) Run(ctx context.Context) (any, error) {
	return s.fn(ctx)
}
