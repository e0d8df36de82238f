package task

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/xraph/distask"
	"github.com/xraph/distask/id"
)

// Factory creates an empty task instance with the given identity. The
// registry restores its state from an Envelope afterwards.
type Factory func(taskID id.TaskID) (Task, error)

// Registry maps task type names to factories so that a member can rebuild
// a task dispatched to it by another member. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register binds name to factory, replacing any previous binding.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// RegisterResumable registers a resumable task definition.
func RegisterResumable(r *Registry, def *ResumableDefinition) {
	r.Register(def.Name, func(taskID id.TaskID) (Task, error) {
		return def.New(WithID(taskID))
	})
}

// RegisterSimple registers a simple task definition.
func RegisterSimple(r *Registry, def *SimpleDefinition) {
	r.Register(def.Name, func(taskID id.TaskID) (Task, error) {
		return def.New(WithID(taskID)), nil
	})
}

// Get returns the factory for name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns all registered task type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open rebuilds the task sealed in env.
func (r *Registry) Open(env *Envelope) (Task, error) {
	factory, ok := r.Get(env.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", distask.ErrUnknownTaskType, env.Name)
	}

	taskID, err := id.ParseTaskID(env.ID)
	if err != nil {
		return nil, fmt.Errorf("open task %q: %w", env.Name, err)
	}

	t, err := factory(taskID)
	if err != nil {
		return nil, fmt.Errorf("open task %q: %w", env.Name, err)
	}
	if t.Kind() != env.Kind {
		return nil, fmt.Errorf("open task %q: kind %q does not match registered kind %q", env.Name, env.Kind, t.Kind())
	}

	if rf, ok := t.(io.ReaderFrom); ok && len(env.State) > 0 {
		if _, err := rf.ReadFrom(bytes.NewReader(env.State)); err != nil {
			return nil, fmt.Errorf("open task %q: %w", env.Name, err)
		}
	}
	return t, nil
}
