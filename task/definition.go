package task

import "slices"

// ResumableDefinition describes a named resumable task type. NewSteps is
// called once per task instance.
type ResumableDefinition struct {
	Name     string
	NewSteps func() Steps
	Opts     []Option
}

// NewResumableDefinition creates a resumable task type definition. opts
// apply to every instance and may be overridden per instance.
func NewResumableDefinition(name string, newSteps func() Steps, opts ...Option) *ResumableDefinition {
	return &ResumableDefinition{Name: name, NewSteps: newSteps, Opts: opts}
}

// New creates a task instance of this type.
func (d *ResumableDefinition) New(opts ...Option) (*Resumable, error) {
	return NewResumable(d.Name, d.NewSteps(), append(slices.Clone(d.Opts), opts...)...)
}

// SimpleDefinition describes a named simple task type.
type SimpleDefinition struct {
	Name string
	Fn   Func
	Opts []Option
}

// NewSimpleDefinition creates a simple task type definition.
func NewSimpleDefinition(name string, fn Func, opts ...Option) *SimpleDefinition {
	return &SimpleDefinition{Name: name, Fn: fn, Opts: opts}
}

// New creates a task instance of this type.
func (d *SimpleDefinition) New(opts ...Option) *Simple {
	return NewSimple(d.Name, d.Fn, append(slices.Clone(d.Opts), opts...)...)
}
