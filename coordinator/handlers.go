package coordinator

import (
	"context"
	"log/slog"

	"github.com/xraph/distask/router"
	"github.com/xraph/distask/running"
	"github.com/xraph/distask/transport"
)

func (c *Coordinator) bind(b *router.Builder) {
	router.Bind(b, c.handleMeta)
	router.Bind(b, c.handleRunning)
	router.Bind(b, c.handleCancel)
	router.Bind(b, c.handleSubmit)
	router.Bind(b, c.handleResult)
}

// LocalMeta describes the local member.
func (c *Coordinator) LocalMeta(ctx context.Context) (*MemberMeta, error) {
	meta := &MemberMeta{
		Address:          c.Address(),
		ExecutionThreads: c.pool.Threads(),
	}

	freq, err := c.sysinfo.CPUFrequency(ctx)
	if err != nil {
		c.logger.Debug("cpu frequency unavailable", slog.String("error", err.Error()))
	}
	meta.CPUFrequency = freq

	procs, err := c.sysinfo.Processors(ctx)
	if err != nil {
		c.logger.Debug("processor count unavailable", slog.String("error", err.Error()))
	}
	meta.Processors = procs

	return meta, nil
}

func (c *Coordinator) handleMeta(ctx context.Context, _ MetaRequest) (*MemberMeta, error) {
	return c.LocalMeta(ctx)
}

func (c *Coordinator) handleRunning(_ context.Context, _ RunningRequest) ([]running.Ref, error) {
	return c.running.List(), nil
}

func (c *Coordinator) handleCancel(ctx context.Context, req CancelRequest) (bool, error) {
	ok := c.running.Cancel(req.TaskID)
	from, _ := router.Sender(ctx)
	c.logger.Debug("cancel requested",
		slog.String("task_id", req.TaskID),
		slog.String("from", from),
		slog.Bool("cancelled", ok),
	)
	return ok, nil
}

func (c *Coordinator) handleSubmit(_ context.Context, req SubmitRequest) (*SubmitResponse, error) {
	t, err := c.tasks.Open(&req.Envelope)
	if err != nil {
		return nil, err
	}

	wrapped := &remoteTask{Task: t, origin: req.Origin}
	// The task outlives the request, so it is not bound to its context.
	future, err := c.pool.Submit(context.Background(), wrapped)
	if err != nil {
		return nil, err
	}

	go c.reportResult(req.Origin, t.ID().String(), future.Done(), future.Result)

	c.logger.Info("accepted remote task",
		slog.String("task_id", t.ID().String()),
		slog.String("task_name", t.Name()),
		slog.String("origin", req.Origin),
	)
	return &SubmitResponse{TaskID: t.ID().String(), Member: c.Address()}, nil
}

// reportResult waits for a placed task to finish and tells its origin.
func (c *Coordinator) reportResult(origin, taskID string, done <-chan struct{}, result func() (any, error)) {
	<-done
	_, runErr := result()

	req := ResultRequest{TaskID: taskID, Member: c.Address()}
	if runErr != nil {
		req.Error = transport.NewRemoteError(runErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.UnicastTimeout)
	defer cancel()

	if _, err := call[bool](ctx, c, origin, req); err != nil {
		c.logger.Warn("failed to report task result",
			slog.String("task_id", taskID),
			slog.String("origin", origin),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Coordinator) handleResult(ctx context.Context, req ResultRequest) (bool, error) {
	from, _ := router.Sender(ctx)

	v, ok := c.pending.Load(req.TaskID)
	if !ok || (req.Member != "" && v.(*Handle).member != req.Member) {
		c.logger.Warn("result for unknown task",
			slog.String("task_id", req.TaskID),
			slog.String("from", from),
		)
		return false, nil
	}
	if _, ok := c.pending.LoadAndDelete(req.TaskID); !ok {
		return false, nil
	}

	var err error
	if req.Error != nil {
		err = req.Error
	}
	v.(*Handle).resolve(err)
	return true, nil
}
