package executor

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/distask/task"
)

type submissionState int

const (
	stateQueued submissionState = iota
	stateRunning
	stateDone
)

// Submission is the executor's work item. It always carries the submitted
// task, or nil for plain work started with Pool.Go.
type Submission struct {
	task     task.Task
	name     string
	run      func(ctx context.Context) (any, error)
	ctx      context.Context
	cancel   context.CancelFunc
	future   *Future
	enqueued time.Time

	mu     sync.Mutex
	state  submissionState
	thread string
}

// Task returns the submitted task, or nil for plain work.
func (s *Submission) Task() task.Task { return s.task }

// Name returns the task name, or the name given to plain work.
func (s *Submission) Name() string { return s.name }

// Future returns the handle for the submission's outcome.
func (s *Submission) Future() *Future { return s.future }

// Enqueued returns when the submission was accepted.
func (s *Submission) Enqueued() time.Time { return s.enqueued }

// Thread returns the name of the worker thread running the submission, or
// "" while it is queued.
func (s *Submission) Thread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread
}

// interrupt cancels the submission's context unless it has already
// finished.
func (s *Submission) interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateDone {
		return false
	}
	s.cancel()
	return true
}

// claim moves a queued submission onto thread. It reports false if the
// submission was cancelled while queued.
func (s *Submission) claim(thread string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		s.state = stateDone
		return false
	}
	s.state = stateRunning
	s.thread = thread
	return true
}

func (s *Submission) finish() {
	s.mu.Lock()
	s.state = stateDone
	s.mu.Unlock()
	s.cancel()
}

// Future is a handle for the eventual result of a submission.
type Future struct {
	sub    *Submission
	done   chan struct{}
	result any
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(result any, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

// Done is closed once the submission has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the submission finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome. It must only be called after Done is closed.
func (f *Future) Result() (any, error) { return f.result, f.err }

// Cancel interrupts the submission, whether queued or running. It reports
// false if the submission had already finished.
func (f *Future) Cancel() bool { return f.sub.interrupt() }
