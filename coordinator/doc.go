// Package coordinator turns member-local operations into cluster-wide ones.
//
// A Coordinator owns one member's request router, running task registry
// and executor, and talks to the rest of the cluster through a
// transport.Transport. At construction it binds the built-in requests:
//
//   - member.meta: describe this member (CPU, processors, threads)
//   - tasks.running: list the tasks running on this member
//   - tasks.cancel: interrupt a task running on this member
//   - tasks.submit: run a task placed here by another member
//   - tasks.result: resolve the handle of a task this member placed elsewhere
//
// Broadcast operations ([Coordinator.ClusterMeta], [Coordinator.RunningTasks])
// either hear from every member of the current view or fail: a missing
// member yields a *distask.IncompleteResponseError and a failing handler a
// *distask.RemoteHandlerError. Nothing is retried.
//
//	net := memory.NewNetwork("orders")
//	c, err := coordinator.New(net.Join("node-a"), executor.NewPool())
//	if err != nil { ... }
//	c.Start(ctx)
//	defer c.Stop(ctx)
//
//	meta, err := c.ClusterMeta(ctx)
package coordinator
