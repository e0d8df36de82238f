package transport

import (
	"errors"

	"github.com/xraph/distask"
)

// Error codes carried with remote handler failures so that well-known
// failures can be matched with errors.Is after crossing the wire.
const (
	CodeInternal        = "internal"
	CodeNoHandler       = "no_handler"
	CodeUnknownTaskType = "unknown_task_type"
	CodeMemberNotFound  = "member_not_found"
	CodePoolStopped     = "pool_stopped"
	CodeTaskCancelled   = "task_cancelled"
	CodeTaskStepFailed  = "task_step_failed"
)

// codeSentinels is checked in order; the first match wins.
var codeSentinels = []struct {
	code     string
	sentinel error
}{
	{CodeNoHandler, distask.ErrNoHandlerFound},
	{CodeUnknownTaskType, distask.ErrUnknownTaskType},
	{CodeMemberNotFound, distask.ErrMemberNotFound},
	{CodePoolStopped, distask.ErrPoolStopped},
	{CodeTaskCancelled, distask.ErrTaskCancelled},
	{CodeTaskStepFailed, distask.ErrTaskStepFailed},
}

// RemoteError is a handler failure reported by another member.
type RemoteError struct {
	Code    string `msgpack:"code" json:"code"`
	Message string `msgpack:"message" json:"message"`
}

func (e *RemoteError) Error() string { return e.Message }

// Is matches the sentinel error that Code stands for.
func (e *RemoteError) Is(target error) bool {
	for _, cs := range codeSentinels {
		if cs.code == e.Code {
			return cs.sentinel == target
		}
	}
	return false
}

// ErrorCode returns the wire code for err.
func ErrorCode(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Code
	}
	for _, cs := range codeSentinels {
		if errors.Is(err, cs.sentinel) {
			return cs.code
		}
	}
	return CodeInternal
}

// NewRemoteError captures err for transmission.
func NewRemoteError(err error) *RemoteError {
	return &RemoteError{Code: ErrorCode(err), Message: err.Error()}
}
