// Package executor runs submitted work on a bounded pool of named worker
// goroutines ("threads").
//
// Every submission is a [Submission] that carries the original task
// directly, so the running task registry can tell which task occupies
// which thread without probing the work item. Plain functions submitted
// with [Pool.Go] share the same threads but carry no task.
//
//	pool := executor.NewPool(executor.WithThreads(8))
//	pool.Start(ctx)
//	defer pool.Stop(ctx)
//
//	f, err := pool.Submit(ctx, t)
//	result, err := f.Wait(ctx)
//
// Interruption is cooperative: [Pool.Interrupt] and [Future.Cancel] cancel
// the task's context, and the task must observe it.
package executor
