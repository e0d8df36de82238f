package task

import (
	"log/slog"
	"time"

	"github.com/xraph/distask"
	"github.com/xraph/distask/id"
)

// Options configures a task at construction time.
type Options struct {
	// ID is the task identity. Nil means a new ID is generated.
	ID id.TaskID

	// Interval is the sleep between resumable steps.
	Interval time.Duration

	// ReportFailures makes a resumable task return step errors from Run
	// instead of only logging them.
	ReportFailures bool

	// Logger receives step failure reports.
	Logger *slog.Logger
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Interval: distask.DefaultPollInterval,
	}
}

// Option is a functional option for configuring a task.
type Option func(*Options)

// WithID sets the task identity.
func WithID(taskID id.TaskID) Option {
	return func(o *Options) { o.ID = taskID }
}

// WithInterval sets the poll interval of a resumable task. Zero is a busy
// poll. The interval travels in milliseconds, so NewResumable rejects
// negative values and values with a sub-millisecond remainder.
func WithInterval(d time.Duration) Option {
	return func(o *Options) { o.Interval = d }
}

// WithFailureReporting makes step failures visible through Run's error.
func WithFailureReporting() Option {
	return func(o *Options) { o.ReportFailures = true }
}

// WithLogger sets the logger used for step failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.ID.IsNil() {
		o.ID = id.NewTaskID()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
