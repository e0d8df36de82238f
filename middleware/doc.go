// Package middleware provides composable middleware for task execution.
//
// A [Middleware] is a function that wraps a task run. Middleware are
// composed into a chain using [Chain] and applied by the executor before
// each task runs. They are applied right-to-left: the first middleware in
// the slice is the outermost wrapper.
//
//	// logging → recover → task
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs task name, kind, duration and outcome
//   - [Recover]: catches panics and converts them to errors
//   - [Timeout]: bounds the run time of simple tasks
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records per-task duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, t task.Task, next middleware.Handler) error {
//	        err := next(ctx)
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
