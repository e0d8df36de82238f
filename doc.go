// Package distask coordinates long-running, resumable tasks across a set of
// cooperating processes (members) that form a cluster.
//
// It offers operations to submit tasks, enumerate and cancel tasks running
// anywhere in the cluster, and query aggregate cluster state.
//
// # Quick Start
//
//	net := memory.NewNetwork("orders")
//	pool := executor.NewPool(executor.WithThreads(8))
//	c, err := coordinator.New(net.Join("node-a"), pool)
//	if err != nil { ... }
//	if err := c.Start(ctx); err != nil { ... }
//
//	h, err := c.SubmitTask(ctx, myResumableTask)
//	refs, err := c.RunningTasks(ctx)
//	ok, err := c.CancelRunningTask(ctx, "node-a", h.TaskID())
//
// # Architecture
//
// Components, leaf first:
//
//   - task: the unit of work and the resumable run/wait/resume state machine
//   - executor: the bounded worker pool that runs submitted tasks
//   - running: a live view of tasks occupying the pool's worker threads
//   - router: maps an inbound request tag to its registered handler
//   - transport: the cluster transport contract (view, broadcast, send, locks)
//   - coordinator: cluster-wide operations built on the pieces above
//
// Two transports are provided: transport/memory (an in-process simulated
// cluster) and dwp (WebSocket mesh). Membership discovery and distributed
// locks are backed by store/memory or store/redis.
//
// All task identities use TypeID: type-prefixed, K-sortable, UUIDv7-based.
package distask
