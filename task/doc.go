// Package task defines the unit of work, the resumable run/wait/resume
// state machine, the task type registry, and the wire envelope used to
// dispatch a task to a remote executor.
//
// # Kinds
//
// A [Simple] task runs once to completion. A [Resumable] task runs a first
// step and then, for as long as the step reports [StatusWait], sleeps for
// its poll interval and resumes:
//
//	Start → Wait → (sleep) → Resume → Wait → (sleep) → Resume → Complete
//
// The sleep observes context cancellation. A cancelled task stops without
// calling Resume again.
//
// # Failure policy
//
// By default a resumable task is detached: a failing step is logged with the
// task ID and the loop ends, but Run returns nil. [WithFailureReporting]
// makes Run return a *distask.StepError instead so the submitter's handle
// carries the failure.
//
// # Wire format
//
// A resumable task serializes its poll interval first (big-endian int32
// milliseconds), followed by the state written by its [StateCodec], if the
// steps implement one. Deserialization reads in the same order.
//
// # Registry
//
// Members rebuild dispatched tasks by type name:
//
//	poller := task.NewResumableDefinition("orders.poll",
//	    func() task.Steps { return &orderPoller{} },
//	    task.WithInterval(10*time.Second),
//	)
//	task.RegisterResumable(registry, poller)
//
//	t, err := poller.New()
package task
