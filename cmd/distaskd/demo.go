package main

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"time"

	"github.com/xraph/distask/task"
)

// demoTasks registers the task types the daemon can run.
func demoTasks(logger *slog.Logger) *task.Registry {
	reg := task.NewRegistry()

	task.RegisterResumable(reg, task.NewResumableDefinition("demo.tick",
		func() task.Steps { return &ticker{remaining: 10, logger: logger} },
		task.WithInterval(time.Second),
		task.WithLogger(logger),
	))
	task.RegisterSimple(reg, task.NewSimpleDefinition("demo.sleep",
		func(ctx context.Context) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return "slept", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
		task.WithLogger(logger),
	))
	return reg
}

// ticker counts down once per poll interval.
type ticker struct {
	remaining int32
	logger    *slog.Logger
}

func (t *ticker) Start(ctx context.Context) (task.Status, error) {
	return t.Resume(ctx)
}

func (t *ticker) Resume(context.Context) (task.Status, error) {
	t.remaining--
	t.logger.Info("tick", slog.Int("remaining", int(t.remaining)))
	if t.remaining <= 0 {
		return task.StatusComplete, nil
	}
	return task.StatusWait, nil
}

func (t *ticker) WriteState(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, t.remaining)
}

func (t *ticker) ReadState(r io.Reader) error {
	return binary.Read(r, binary.BigEndian, &t.remaining)
}
