// Package running answers "which tasks are executing on this member right
// now" straight from the executor's occupied threads, without keeping a
// second bookkeeping structure.
package running

import (
	"iter"
	"slices"

	"github.com/xraph/distask/executor"
	"github.com/xraph/distask/task"
)

// Ref is a snapshot of one running task. It is derived at query time and
// never stored.
type Ref struct {
	TaskID string    `msgpack:"task_id" json:"task_id"`
	Name   string    `msgpack:"name" json:"name"`
	Kind   task.Kind `msgpack:"kind" json:"kind"`
	Member string    `msgpack:"member" json:"member"`
	Thread string    `msgpack:"thread" json:"thread"`

	// Origin is the member that submitted the task when it was placed
	// here by another member.
	Origin string `msgpack:"origin,omitempty" json:"origin,omitempty"`
}

// Originator is implemented by task decorators that record which member
// submitted the task.
type Originator interface {
	Origin() string
}

// Source is the execution collaborator the registry reads from.
// *executor.Pool satisfies it.
type Source interface {
	Occupied() []executor.Slot
	Interrupt(sub *executor.Submission) bool
}

var _ Source = (*executor.Pool)(nil)

// Registry exposes the running tasks of one member.
type Registry struct {
	member string
	source Source
}

// New creates a registry for the member at address member.
func New(member string, source Source) *Registry {
	return &Registry{member: member, source: source}
}

// Member returns the address stamped on every Ref.
func (r *Registry) Member() string { return r.member }

// All returns a lazy sequence of the tasks running now. Every iteration
// takes a fresh snapshot of the occupied threads. Work items that carry
// no task are skipped.
func (r *Registry) All() iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		for _, slot := range r.source.Occupied() {
			t, origin := resolve(slot.Work)
			if t == nil {
				continue
			}
			ref := Ref{
				TaskID: t.ID().String(),
				Name:   t.Name(),
				Kind:   t.Kind(),
				Member: r.member,
				Thread: slot.Thread,
				Origin: origin,
			}
			if !yield(ref) {
				return
			}
		}
	}
}

// List collects All into a slice.
func (r *Registry) List() []Ref {
	refs := slices.Collect(r.All())
	if refs == nil {
		refs = []Ref{}
	}
	return refs
}

// Find returns the running task with the given identity.
func (r *Registry) Find(taskID string) (Ref, bool) {
	for ref := range r.All() {
		if ref.TaskID == taskID {
			return ref, true
		}
	}
	return Ref{}, false
}

// Cancel requests interruption of the first running task whose identity
// is taskID. It reports whether a match was found and the executor
// accepted the interruption.
func (r *Registry) Cancel(taskID string) bool {
	for _, slot := range r.source.Occupied() {
		t, _ := resolve(slot.Work)
		if t == nil || t.ID().String() != taskID {
			continue
		}
		return r.source.Interrupt(slot.Work)
	}
	return false
}

// resolve returns the task behind a work item, unwrapping exactly one
// decorator layer, and the submitting member if the decorator records it.
func resolve(sub *executor.Submission) (task.Task, string) {
	if sub == nil {
		return nil, ""
	}
	t := sub.Task()
	if t == nil {
		return nil, ""
	}

	var origin string
	if o, ok := t.(Originator); ok {
		origin = o.Origin()
	}
	if w, ok := t.(task.Wrapper); ok {
		if inner := w.Unwrap(); inner != nil {
			return inner, origin
		}
	}
	return t, origin
}
