package task

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/xraph/distask"
)

// Steps is the behavior of a resumable task.
type Steps interface {
	// Start runs the first step.
	Start(ctx context.Context) (Status, error)

	// Resume runs each following step after one poll interval.
	Resume(ctx context.Context) (Status, error)
}

// StateCodec is implemented by steps whose state must travel with the task
// when it is dispatched to another member. Reads mirror writes field for
// field.
type StateCodec interface {
	WriteState(w io.Writer) error
	ReadState(r io.Reader) error
}

// Resumable runs its steps as a timed polling loop.
type Resumable struct {
	Base
	interval       time.Duration
	steps          Steps
	reportFailures bool
	logger         *slog.Logger

	// sleep waits between steps and returns ctx.Err() on cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResumable creates a resumable task named name driven by steps.
// It returns distask.ErrNegativeInterval if the configured interval is
// negative and distask.ErrIntervalPrecision if it is not a whole number of
// milliseconds.
func NewResumable(name string, steps Steps, opts ...Option) (*Resumable, error) {
	o := buildOptions(opts)
	if o.Interval < 0 {
		return nil, fmt.Errorf("task %q: %w: %s", name, distask.ErrNegativeInterval, o.Interval)
	}
	if o.Interval%time.Millisecond != 0 {
		return nil, fmt.Errorf("task %q: %w: %s", name, distask.ErrIntervalPrecision, o.Interval)
	}
	return &Resumable{
		Base:           Base{id: o.ID, name: name},
		interval:       o.Interval,
		steps:          steps,
		reportFailures: o.ReportFailures,
		logger:         o.Logger,
		sleep:          sleepContext,
	}, nil
}

// Kind returns KindResumable.
func (r *Resumable) Kind() Kind { return KindResumable }

// Interval returns the poll interval.
func (r *Resumable) Interval() time.Duration { return r.interval }

// Steps returns the task's step implementation.
func (r *Resumable) Steps() Steps { return r.steps }

// Run executes Start and then, while the status is StatusWait, sleeps one
// interval and executes Resume. A step failure ends the loop; it is logged
// and, unless failure reporting is enabled, not returned. Cancelling ctx
// during the sleep ends the loop with ctx.Err() and Resume is not called
// again.
func (r *Resumable) Run(ctx context.Context) (any, error) {
	status, err := r.step(ctx, "start", r.steps.Start)
	if err != nil {
		return nil, r.fail(err)
	}

	for status == StatusWait {
		if sleepErr := r.sleep(ctx, r.interval); sleepErr != nil {
			r.logger.Debug("resumable task interrupted",
				slog.String("task_id", r.id.String()),
				slog.String("task_name", r.name),
			)
			return nil, sleepErr
		}

		status, err = r.step(ctx, "resume", r.steps.Resume)
		if err != nil {
			return nil, r.fail(err)
		}
	}

	return nil, nil
}

// step runs one step, converting a panic into a step error.
func (r *Resumable) step(ctx context.Context, name string, fn func(context.Context) (Status, error)) (status Status, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &distask.StepError{TaskID: r.id.String(), Step: name, Cause: fmt.Errorf("panic: %v", p)}
		}
	}()

	status, err = fn(ctx)
	if err != nil {
		return status, &distask.StepError{TaskID: r.id.String(), Step: name, Cause: err}
	}
	return status, nil
}

func (r *Resumable) fail(err error) error {
	r.logger.Error("error processing resumable task",
		slog.String("task_id", r.id.String()),
		slog.String("task_name", r.name),
		slog.String("error", err.Error()),
	)
	if r.reportFailures {
		return err
	}
	return nil
}

// WriteTo serializes the poll interval followed by the steps' own state.
func (r *Resumable) WriteTo(w io.Writer) (int64, error) {
	millis := r.interval.Milliseconds()
	if millis > math.MaxInt32 {
		return 0, fmt.Errorf("task %q: interval %s overflows wire format", r.name, r.interval)
	}

	cw := &countingWriter{w: w}
	if err := binary.Write(cw, binary.BigEndian, int32(millis)); err != nil {
		return cw.n, fmt.Errorf("task %q: write interval: %w", r.name, err)
	}
	if codec, ok := r.steps.(StateCodec); ok {
		if err := codec.WriteState(cw); err != nil {
			return cw.n, fmt.Errorf("task %q: write state: %w", r.name, err)
		}
	}
	return cw.n, nil
}

// ReadFrom restores the poll interval and then the steps' own state, in
// the order WriteTo wrote them.
func (r *Resumable) ReadFrom(rd io.Reader) (int64, error) {
	cr := &countingReader{r: rd}

	var millis int32
	if err := binary.Read(cr, binary.BigEndian, &millis); err != nil {
		return cr.n, fmt.Errorf("task %q: read interval: %w", r.name, err)
	}
	if millis < 0 {
		return cr.n, fmt.Errorf("task %q: %w: %dms", r.name, distask.ErrNegativeInterval, millis)
	}
	r.interval = time.Duration(millis) * time.Millisecond

	if codec, ok := r.steps.(StateCodec); ok {
		if err := codec.ReadState(cr); err != nil {
			return cr.n, fmt.Errorf("task %q: read state: %w", r.name, err)
		}
	}
	return cr.n, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
