package distask

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Routing errors.
	ErrNoHandlerFound   = errors.New("distask: no handler found")
	ErrDuplicateHandler = errors.New("distask: duplicate handler tag")

	// Cluster errors.
	ErrMemberNotFound            = errors.New("distask: member not found")
	ErrIncompleteClusterResponse = errors.New("distask: incomplete cluster response")
	ErrRemoteHandlerFailure      = errors.New("distask: remote handler failure")
	ErrTransportClosed           = errors.New("distask: transport closed")

	// Task errors.
	ErrNegativeInterval  = errors.New("distask: negative poll interval")
	ErrIntervalPrecision = errors.New("distask: poll interval not whole milliseconds")
	ErrUnknownTaskType   = errors.New("distask: unknown task type")
	ErrTaskCancelled    = errors.New("distask: task cancelled")
	ErrTaskStepFailed   = errors.New("distask: task step failed")

	// Executor errors.
	ErrPoolStopped = errors.New("distask: executor pool stopped")

	// Lock errors.
	ErrLockNotHeld = errors.New("distask: lock not held")
)

// RemoteHandlerError reports that a member received a request but its
// handler failed. Both the member address and the cause are preserved.
type RemoteHandlerError struct {
	Member string
	Cause  error
}

func (e *RemoteHandlerError) Error() string {
	return fmt.Sprintf("distask: member %s failed to handle request: %v", e.Member, e.Cause)
}

// Is matches ErrRemoteHandlerFailure.
func (e *RemoteHandlerError) Is(target error) bool { return target == ErrRemoteHandlerFailure }

// Unwrap returns the remote cause.
func (e *RemoteHandlerError) Unwrap() error { return e.Cause }

// IncompleteResponseError reports the members of the view that did not
// answer a cluster call in time.
type IncompleteResponseError struct {
	Tag     string
	Missing []string
}

func (e *IncompleteResponseError) Error() string {
	return fmt.Sprintf("distask: %s: no response from %s", e.Tag, strings.Join(e.Missing, ", "))
}

// Is matches ErrIncompleteClusterResponse.
func (e *IncompleteResponseError) Is(target error) bool {
	return target == ErrIncompleteClusterResponse
}

// StepError is produced when a resumable task's Start or Resume step fails.
type StepError struct {
	TaskID string
	Step   string
	Cause  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("distask: task %s: %s step: %v", e.TaskID, e.Step, e.Cause)
}

// Is matches ErrTaskStepFailed.
func (e *StepError) Is(target error) bool { return target == ErrTaskStepFailed }

// Unwrap returns the step's own error.
func (e *StepError) Unwrap() error { return e.Cause }
