// Package observability provides a hook extension that records workflow
// lifecycle metrics through the global OTel MeterProvider. If no
// MeterProvider is configured, noop instruments are used and the
// extension becomes a pass-through.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/hook"
)

// meterName is the instrumentation scope name for maestro metrics.
const meterName = "github.com/xraph/maestro"

// Compile-time interface checks.
var (
	_ hook.Extension          = (*MetricsExtension)(nil)
	_ hook.ExecutionStarted   = (*MetricsExtension)(nil)
	_ hook.ExecutionCompleted = (*MetricsExtension)(nil)
	_ hook.ExecutionFailed    = (*MetricsExtension)(nil)
	_ hook.ExecutionCancelled = (*MetricsExtension)(nil)
	_ hook.StepCompleted      = (*MetricsExtension)(nil)
	_ hook.StepFailed         = (*MetricsExtension)(nil)
	_ hook.CheckpointCreated  = (*MetricsExtension)(nil)
)

// MetricsExtension records execution, step, and checkpoint counters plus
// an execution duration histogram. Register it on the engine to track
// throughput and failure rates.
type MetricsExtension struct {
	executions  metric.Int64Counter
	steps       metric.Int64Counter
	checkpoints metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewMetricsExtension creates the extension against the global meter.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates the extension with the provided
// meter. This variant allows injecting a specific MeterProvider for
// testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// Instruments are created once; the OTel API guarantees noop
	// fallbacks on error.
	executions, _ := meter.Int64Counter(
		"maestro.execution.total",
		metric.WithDescription("Total workflow executions by outcome"),
		metric.WithUnit("{execution}"),
	)
	steps, _ := meter.Int64Counter(
		"maestro.step.total",
		metric.WithDescription("Total step settlements by outcome"),
		metric.WithUnit("{step}"),
	)
	checkpoints, _ := meter.Int64Counter(
		"maestro.checkpoint.total",
		metric.WithDescription("Total checkpoints created"),
		metric.WithUnit("{checkpoint}"),
	)
	duration, _ := meter.Float64Histogram(
		"maestro.execution.duration",
		metric.WithDescription("Duration of workflow executions in seconds"),
		metric.WithUnit("s"),
	)
	return &MetricsExtension{
		executions:  executions,
		steps:       steps,
		checkpoints: checkpoints,
		duration:    duration,
	}
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnExecutionStarted implements hook.ExecutionStarted.
func (m *MetricsExtension) OnExecutionStarted(ctx context.Context, rec *execution.Record) error {
	m.executions.Add(ctx, 1, m.execAttrs(rec, "started"))
	return nil
}

// OnExecutionCompleted implements hook.ExecutionCompleted.
func (m *MetricsExtension) OnExecutionCompleted(ctx context.Context, rec *execution.Record, elapsed time.Duration) error {
	attrs := m.execAttrs(rec, "completed")
	m.executions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}

// OnExecutionFailed implements hook.ExecutionFailed.
func (m *MetricsExtension) OnExecutionFailed(ctx context.Context, rec *execution.Record, _ error) error {
	m.executions.Add(ctx, 1, m.execAttrs(rec, "failed"))
	return nil
}

// OnExecutionCancelled implements hook.ExecutionCancelled.
func (m *MetricsExtension) OnExecutionCancelled(ctx context.Context, rec *execution.Record) error {
	m.executions.Add(ctx, 1, m.execAttrs(rec, "cancelled"))
	return nil
}

// OnStepCompleted implements hook.StepCompleted.
func (m *MetricsExtension) OnStepCompleted(ctx context.Context, rec *execution.Record, stepID string, _ time.Duration) error {
	m.steps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow_id", rec.WorkflowID),
		attribute.String("step_id", stepID),
		attribute.String("status", "ok"),
	))
	return nil
}

// OnStepFailed implements hook.StepFailed.
func (m *MetricsExtension) OnStepFailed(ctx context.Context, rec *execution.Record, stepID string, _ error) error {
	m.steps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow_id", rec.WorkflowID),
		attribute.String("step_id", stepID),
		attribute.String("status", "error"),
	))
	return nil
}

// OnCheckpointCreated implements hook.CheckpointCreated.
func (m *MetricsExtension) OnCheckpointCreated(ctx context.Context, cp *execution.Checkpoint) error {
	m.checkpoints.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow_id", cp.WorkflowID),
	))
	return nil
}

func (m *MetricsExtension) execAttrs(rec *execution.Record, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("workflow_id", rec.WorkflowID),
		attribute.String("status", status),
	)
}
