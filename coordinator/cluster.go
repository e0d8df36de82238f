package coordinator

import (
	"context"
	"fmt"
	"slices"

	"github.com/xraph/distask"
	"github.com/xraph/distask/router"
	"github.com/xraph/distask/running"
)

// ── Cluster calls ───────────────────────────────────

// broadcast sends req to every member of the view and decodes every reply.
// The result is ordered like the view. It fails unless every member of the
// view answered successfully.
func broadcast[Resp any](ctx context.Context, c *Coordinator, req router.Request) ([]Resp, []string, error) {
	view := c.transport.View()

	msg, err := router.Encode(req)
	if err != nil {
		return nil, nil, fmt.Errorf("coordinator: encode %s: %w", req.Tag(), err)
	}

	replies, err := c.transport.Broadcast(ctx, msg, c.cfg.BroadcastTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("coordinator: broadcast %s: %w", req.Tag(), err)
	}

	var missing []string
	for _, member := range view {
		if r, ok := replies[member]; !ok || r == nil || !r.Received {
			missing = append(missing, member)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &distask.IncompleteResponseError{Tag: req.Tag(), Missing: missing}
	}

	for _, member := range view {
		if r := replies[member]; r.Err != nil {
			return nil, nil, &distask.RemoteHandlerError{Member: member, Cause: r.Err}
		}
	}

	out := make([]Resp, 0, len(view))
	for _, member := range view {
		resp, err := router.Decode[Resp](replies[member].Payload)
		if err != nil {
			return nil, nil, fmt.Errorf("coordinator: decode %s from %s: %w", req.Tag(), member, err)
		}
		out = append(out, resp)
	}
	return out, view, nil
}

// call sends req to one member of the view and decodes its reply.
func call[Resp any](ctx context.Context, c *Coordinator, member string, req router.Request) (Resp, error) {
	var zero Resp

	if !slices.Contains(c.transport.View(), member) {
		return zero, fmt.Errorf("%w: %s", distask.ErrMemberNotFound, member)
	}

	msg, err := router.Encode(req)
	if err != nil {
		return zero, fmt.Errorf("coordinator: encode %s: %w", req.Tag(), err)
	}

	reply, err := c.transport.SendTo(ctx, member, msg, c.cfg.UnicastTimeout)
	if err != nil {
		return zero, fmt.Errorf("coordinator: send %s to %s: %w", req.Tag(), member, err)
	}
	if reply == nil || !reply.Received {
		return zero, &distask.IncompleteResponseError{Tag: req.Tag(), Missing: []string{member}}
	}
	if reply.Err != nil {
		return zero, &distask.RemoteHandlerError{Member: member, Cause: reply.Err}
	}

	resp, err := router.Decode[Resp](reply.Payload)
	if err != nil {
		return zero, fmt.Errorf("coordinator: decode %s from %s: %w", req.Tag(), member, err)
	}
	return resp, nil
}

// ── Operations ──────────────────────────────────────

// ClusterMeta describes every member of the current view. It fails with
// an incomplete response error if any member does not answer in time.
func (c *Coordinator) ClusterMeta(ctx context.Context) (*ClusterMeta, error) {
	metas, view, err := broadcast[*MemberMeta](ctx, c, MetaRequest{})
	if err != nil {
		return nil, err
	}

	out := &ClusterMeta{
		Name:             c.clusterName(),
		InstanceName:     c.instanceName(),
		InstanceAddress:  c.Address(),
		ExecutionThreads: c.pool.Threads(),
		Members:          make([]MemberMeta, 0, len(metas)),
	}
	for i, m := range metas {
		if m == nil {
			m = &MemberMeta{}
		}
		if m.Address == "" {
			m.Address = view[i]
		}
		out.Members = append(out.Members, *m)
	}
	return out, nil
}

// RunningTasks lists the tasks running on every member of the view,
// grouped by member in view order. Filters are applied to the combined
// list.
func (c *Coordinator) RunningTasks(ctx context.Context, filters ...running.Filter) ([]running.Ref, error) {
	lists, _, err := broadcast[[]running.Ref](ctx, c, RunningRequest{})
	if err != nil {
		return nil, err
	}

	refs := []running.Ref{}
	for _, list := range lists {
		refs = append(refs, list...)
	}
	return running.Select(refs, filters...), nil
}

// RunningTask returns the task with the given identity running on member,
// or nil if member is not running it.
func (c *Coordinator) RunningTask(ctx context.Context, member, taskID string) (*running.Ref, error) {
	refs, err := call[[]running.Ref](ctx, c, member, RunningRequest{})
	if err != nil {
		return nil, err
	}
	for i := range refs {
		if refs[i].TaskID == taskID {
			return &refs[i], nil
		}
	}
	return nil, nil
}

// CancelRunningTask asks member to interrupt the task with the given
// identity. It reports false if member is not running it.
func (c *Coordinator) CancelRunningTask(ctx context.Context, member, taskID string) (bool, error) {
	return call[bool](ctx, c, member, CancelRequest{TaskID: taskID})
}
