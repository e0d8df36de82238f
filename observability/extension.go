package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/distask/ext"
	"github.com/xraph/distask/task"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/xraph/distask/observability"

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.TaskSubmitted = (*MetricsExtension)(nil)
	_ ext.TaskCompleted = (*MetricsExtension)(nil)
	_ ext.TaskFailed    = (*MetricsExtension)(nil)
	_ ext.TaskCancelled = (*MetricsExtension)(nil)
	_ ext.MemberJoined  = (*MetricsExtension)(nil)
	_ ext.MemberLeft    = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle counters. Task counters carry the
// task_name and task_kind attributes; membership counters carry member.
type MetricsExtension struct {
	TaskSubmitted metric.Int64Counter
	TaskCompleted metric.Int64Counter
	TaskFailed    metric.Int64Counter
	TaskCancelled metric.Int64Counter
	MemberJoined  metric.Int64Counter
	MemberLeft    metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension using meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		// On error the API returns a noop instrument.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		TaskSubmitted: counter("distask.task.submitted", "Tasks accepted by the executor"),
		TaskCompleted: counter("distask.task.completed", "Tasks that finished without error"),
		TaskFailed:    counter("distask.task.failed", "Tasks that finished with an error"),
		TaskCancelled: counter("distask.task.cancelled", "Tasks interrupted while queued or running"),
		MemberJoined:  counter("distask.member.joined", "Members that entered the local view"),
		MemberLeft:    counter("distask.member.left", "Members that left the local view"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Task lifecycle hooks ────────────────────────────

// OnTaskSubmitted implements ext.TaskSubmitted.
func (m *MetricsExtension) OnTaskSubmitted(ctx context.Context, t task.Task) error {
	m.TaskSubmitted.Add(ctx, 1, taskAttrs(t))
	return nil
}

// OnTaskCompleted implements ext.TaskCompleted.
func (m *MetricsExtension) OnTaskCompleted(ctx context.Context, t task.Task, _ time.Duration) error {
	m.TaskCompleted.Add(ctx, 1, taskAttrs(t))
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (m *MetricsExtension) OnTaskFailed(ctx context.Context, t task.Task, _ error) error {
	m.TaskFailed.Add(ctx, 1, taskAttrs(t))
	return nil
}

// OnTaskCancelled implements ext.TaskCancelled.
func (m *MetricsExtension) OnTaskCancelled(ctx context.Context, t task.Task) error {
	m.TaskCancelled.Add(ctx, 1, taskAttrs(t))
	return nil
}

// ── Cluster hooks ───────────────────────────────────

// OnMemberJoined implements ext.MemberJoined.
func (m *MetricsExtension) OnMemberJoined(ctx context.Context, address string) error {
	m.MemberJoined.Add(ctx, 1, metric.WithAttributes(attribute.String("member", address)))
	return nil
}

// OnMemberLeft implements ext.MemberLeft.
func (m *MetricsExtension) OnMemberLeft(ctx context.Context, address string) error {
	m.MemberLeft.Add(ctx, 1, metric.WithAttributes(attribute.String("member", address)))
	return nil
}

func taskAttrs(t task.Task) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("task_name", t.Name()),
		attribute.String("task_kind", string(t.Kind())),
	)
}
