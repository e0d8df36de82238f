package coordinator

import (
	"github.com/xraph/distask/task"
	"github.com/xraph/distask/transport"
)

// Built-in request tags.
const (
	TagMemberMeta   = "member.meta"
	TagRunningTasks = "tasks.running"
	TagCancelTask   = "tasks.cancel"
	TagSubmitTask   = "tasks.submit"
	TagTaskResult   = "tasks.result"
)

// MemberMeta describes one member. It is built fresh for every query.
type MemberMeta struct {
	Address          string  `msgpack:"address" json:"address"`
	CPUFrequency     float64 `msgpack:"cpu_frequency" json:"cpu_frequency_mhz"`
	Processors       int     `msgpack:"processors" json:"processors"`
	ExecutionThreads int     `msgpack:"execution_threads" json:"execution_threads"`
}

// ClusterMeta aggregates the MemberMeta of every member of the view, in
// view order.
type ClusterMeta struct {
	Name             string       `json:"name"`
	InstanceName     string       `json:"instance_name"`
	InstanceAddress  string       `json:"instance_address"`
	ExecutionThreads int          `json:"execution_threads"`
	Members          []MemberMeta `json:"members"`
}

// MetaRequest asks a member to describe itself.
type MetaRequest struct{}

// Tag implements router.Request.
func (MetaRequest) Tag() string { return TagMemberMeta }

// RunningRequest asks a member for its running tasks.
type RunningRequest struct{}

// Tag implements router.Request.
func (RunningRequest) Tag() string { return TagRunningTasks }

// CancelRequest asks a member to interrupt one of its running tasks.
type CancelRequest struct {
	TaskID string `msgpack:"task_id"`
}

// Tag implements router.Request.
func (CancelRequest) Tag() string { return TagCancelTask }

// SubmitRequest places a sealed task on a member.
type SubmitRequest struct {
	Envelope task.Envelope `msgpack:"envelope"`
	Origin   string        `msgpack:"origin"`
}

// Tag implements router.Request.
func (SubmitRequest) Tag() string { return TagSubmitTask }

// SubmitResponse acknowledges a placed task.
type SubmitResponse struct {
	TaskID string `msgpack:"task_id"`
	Member string `msgpack:"member"`
}

// ResultRequest reports the outcome of a placed task to the member that
// submitted it. Result values do not travel; only the failure does.
type ResultRequest struct {
	TaskID string                 `msgpack:"task_id"`
	Member string                 `msgpack:"member"`
	Error  *transport.RemoteError `msgpack:"error,omitempty"`
}

// Tag implements router.Request.
func (ResultRequest) Tag() string { return TagTaskResult }
