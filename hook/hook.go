// Package hook defines the extension system for Maestro.
// Extensions are notified of lifecycle events (execution started, step
// completed, checkpoint created, etc.) and can react to them — logging,
// metrics, tracing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/xraph/maestro/execution"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Execution lifecycle hooks
// ──────────────────────────────────────────────────

// ExecutionStarted is called after an execution is created and its
// definition accepted.
type ExecutionStarted interface {
	OnExecutionStarted(ctx context.Context, rec *execution.Record) error
}

// ExecutionCompleted is called after an execution finishes successfully.
type ExecutionCompleted interface {
	OnExecutionCompleted(ctx context.Context, rec *execution.Record, elapsed time.Duration) error
}

// ExecutionFailed is called when an execution fails terminally.
type ExecutionFailed interface {
	OnExecutionFailed(ctx context.Context, rec *execution.Record, err error) error
}

// ExecutionCancelled is called when an execution is cancelled.
type ExecutionCancelled interface {
	OnExecutionCancelled(ctx context.Context, rec *execution.Record) error
}

// ExecutionPaused is called when an execution is paused at the batch
// barrier.
type ExecutionPaused interface {
	OnExecutionPaused(ctx context.Context, rec *execution.Record) error
}

// ExecutionResumed is called when a paused execution continues.
type ExecutionResumed interface {
	OnExecutionResumed(ctx context.Context, rec *execution.Record) error
}

// ──────────────────────────────────────────────────
// Step and batch hooks
// ──────────────────────────────────────────────────

// StepCompleted is called after a step settles successfully.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, rec *execution.Record, stepID string, elapsed time.Duration) error
}

// StepFailed is called when a step exhausts its retries.
type StepFailed interface {
	OnStepFailed(ctx context.Context, rec *execution.Record, stepID string, err error) error
}

// BatchCompleted is called when every dispatched step of a batch has
// settled.
type BatchCompleted interface {
	OnBatchCompleted(ctx context.Context, rec *execution.Record, batchIndex int) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// CheckpointCreated is called after a checkpoint is persisted.
type CheckpointCreated interface {
	OnCheckpointCreated(ctx context.Context, cp *execution.Checkpoint) error
}

// CheckpointRestored is called after an execution is rebuilt from a
// checkpoint.
type CheckpointRestored interface {
	OnCheckpointRestored(ctx context.Context, rec *execution.Record, cp *execution.Checkpoint) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
