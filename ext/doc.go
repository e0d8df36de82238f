// Package ext defines the extension system for distask.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics or writing audit logs. Each lifecycle hook is a
// separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnTaskCompleted(ctx context.Context, t task.Task, elapsed time.Duration) error {
//	    log.Printf("task %s completed in %s", t.ID(), elapsed)
//	    return nil
//	}
//
// # Task Lifecycle Hooks
//
//   - [TaskSubmitted]: the executor accepted the task
//   - [TaskStarted]: a worker thread began running the task
//   - [TaskCompleted]: Run returned without error
//   - [TaskFailed]: Run returned an error
//   - [TaskCancelled]: the task was interrupted
//
// # Cluster Hooks
//
//   - [MemberJoined] and [MemberLeft]: the local view changed
//   - [Shutdown]: the coordinator is shutting down
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
