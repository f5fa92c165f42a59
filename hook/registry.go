package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/maestro/execution"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type executionStartedEntry struct {
	name string
	hook ExecutionStarted
}

type executionCompletedEntry struct {
	name string
	hook ExecutionCompleted
}

type executionFailedEntry struct {
	name string
	hook ExecutionFailed
}

type executionCancelledEntry struct {
	name string
	hook ExecutionCancelled
}

type executionPausedEntry struct {
	name string
	hook ExecutionPaused
}

type executionResumedEntry struct {
	name string
	hook ExecutionResumed
}

type stepCompletedEntry struct {
	name string
	hook StepCompleted
}

type stepFailedEntry struct {
	name string
	hook StepFailed
}

type batchCompletedEntry struct {
	name string
	hook BatchCompleted
}

type checkpointCreatedEntry struct {
	name string
	hook CheckpointCreated
}

type checkpointRestoredEntry struct {
	name string
	hook CheckpointRestored
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	executionStarted   []executionStartedEntry
	executionCompleted []executionCompletedEntry
	executionFailed    []executionFailedEntry
	executionCancelled []executionCancelledEntry
	executionPaused    []executionPausedEntry
	executionResumed   []executionResumedEntry
	stepCompleted      []stepCompletedEntry
	stepFailed         []stepFailedEntry
	batchCompleted     []batchCompletedEntry
	checkpointCreated  []checkpointCreatedEntry
	checkpointRestored []checkpointRestoredEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ExecutionStarted); ok {
		r.executionStarted = append(r.executionStarted, executionStartedEntry{name, h})
	}
	if h, ok := e.(ExecutionCompleted); ok {
		r.executionCompleted = append(r.executionCompleted, executionCompletedEntry{name, h})
	}
	if h, ok := e.(ExecutionFailed); ok {
		r.executionFailed = append(r.executionFailed, executionFailedEntry{name, h})
	}
	if h, ok := e.(ExecutionCancelled); ok {
		r.executionCancelled = append(r.executionCancelled, executionCancelledEntry{name, h})
	}
	if h, ok := e.(ExecutionPaused); ok {
		r.executionPaused = append(r.executionPaused, executionPausedEntry{name, h})
	}
	if h, ok := e.(ExecutionResumed); ok {
		r.executionResumed = append(r.executionResumed, executionResumedEntry{name, h})
	}
	if h, ok := e.(StepCompleted); ok {
		r.stepCompleted = append(r.stepCompleted, stepCompletedEntry{name, h})
	}
	if h, ok := e.(StepFailed); ok {
		r.stepFailed = append(r.stepFailed, stepFailedEntry{name, h})
	}
	if h, ok := e.(BatchCompleted); ok {
		r.batchCompleted = append(r.batchCompleted, batchCompletedEntry{name, h})
	}
	if h, ok := e.(CheckpointCreated); ok {
		r.checkpointCreated = append(r.checkpointCreated, checkpointCreatedEntry{name, h})
	}
	if h, ok := e.(CheckpointRestored); ok {
		r.checkpointRestored = append(r.checkpointRestored, checkpointRestoredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Execution event emitters
// ──────────────────────────────────────────────────

// EmitExecutionStarted notifies all extensions that implement ExecutionStarted.
func (r *Registry) EmitExecutionStarted(ctx context.Context, rec *execution.Record) {
	for _, e := range r.executionStarted {
		if err := e.hook.OnExecutionStarted(ctx, rec); err != nil {
			r.logHookError("OnExecutionStarted", e.name, err)
		}
	}
}

// EmitExecutionCompleted notifies all extensions that implement ExecutionCompleted.
func (r *Registry) EmitExecutionCompleted(ctx context.Context, rec *execution.Record, elapsed time.Duration) {
	for _, e := range r.executionCompleted {
		if err := e.hook.OnExecutionCompleted(ctx, rec, elapsed); err != nil {
			r.logHookError("OnExecutionCompleted", e.name, err)
		}
	}
}

// EmitExecutionFailed notifies all extensions that implement ExecutionFailed.
func (r *Registry) EmitExecutionFailed(ctx context.Context, rec *execution.Record, execErr error) {
	for _, e := range r.executionFailed {
		if err := e.hook.OnExecutionFailed(ctx, rec, execErr); err != nil {
			r.logHookError("OnExecutionFailed", e.name, err)
		}
	}
}

// EmitExecutionCancelled notifies all extensions that implement ExecutionCancelled.
func (r *Registry) EmitExecutionCancelled(ctx context.Context, rec *execution.Record) {
	for _, e := range r.executionCancelled {
		if err := e.hook.OnExecutionCancelled(ctx, rec); err != nil {
			r.logHookError("OnExecutionCancelled", e.name, err)
		}
	}
}

// EmitExecutionPaused notifies all extensions that implement ExecutionPaused.
func (r *Registry) EmitExecutionPaused(ctx context.Context, rec *execution.Record) {
	for _, e := range r.executionPaused {
		if err := e.hook.OnExecutionPaused(ctx, rec); err != nil {
			r.logHookError("OnExecutionPaused", e.name, err)
		}
	}
}

// EmitExecutionResumed notifies all extensions that implement ExecutionResumed.
func (r *Registry) EmitExecutionResumed(ctx context.Context, rec *execution.Record) {
	for _, e := range r.executionResumed {
		if err := e.hook.OnExecutionResumed(ctx, rec); err != nil {
			r.logHookError("OnExecutionResumed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Step and batch event emitters
// ──────────────────────────────────────────────────

// EmitStepCompleted notifies all extensions that implement StepCompleted.
func (r *Registry) EmitStepCompleted(ctx context.Context, rec *execution.Record, stepID string, elapsed time.Duration) {
	for _, e := range r.stepCompleted {
		if err := e.hook.OnStepCompleted(ctx, rec, stepID, elapsed); err != nil {
			r.logHookError("OnStepCompleted", e.name, err)
		}
	}
}

// EmitStepFailed notifies all extensions that implement StepFailed.
func (r *Registry) EmitStepFailed(ctx context.Context, rec *execution.Record, stepID string, stepErr error) {
	for _, e := range r.stepFailed {
		if err := e.hook.OnStepFailed(ctx, rec, stepID, stepErr); err != nil {
			r.logHookError("OnStepFailed", e.name, err)
		}
	}
}

// EmitBatchCompleted notifies all extensions that implement BatchCompleted.
func (r *Registry) EmitBatchCompleted(ctx context.Context, rec *execution.Record, batchIndex int) {
	for _, e := range r.batchCompleted {
		if err := e.hook.OnBatchCompleted(ctx, rec, batchIndex); err != nil {
			r.logHookError("OnBatchCompleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Checkpoint and shutdown emitters
// ──────────────────────────────────────────────────

// EmitCheckpointCreated notifies all extensions that implement CheckpointCreated.
func (r *Registry) EmitCheckpointCreated(ctx context.Context, cp *execution.Checkpoint) {
	for _, e := range r.checkpointCreated {
		if err := e.hook.OnCheckpointCreated(ctx, cp); err != nil {
			r.logHookError("OnCheckpointCreated", e.name, err)
		}
	}
}

// EmitCheckpointRestored notifies all extensions that implement CheckpointRestored.
func (r *Registry) EmitCheckpointRestored(ctx context.Context, rec *execution.Record, cp *execution.Checkpoint) {
	for _, e := range r.checkpointRestored {
		if err := e.hook.OnCheckpointRestored(ctx, rec, cp); err != nil {
			r.logHookError("OnCheckpointRestored", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError records a hook failure. Extension errors never interrupt
// the execution they observe.
func (r *Registry) logHookError(hookName, extName string, err error) {
	r.logger.Warn("extension hook failed",
		slog.String("hook", hookName),
		slog.String("extension", extName),
		slog.Any("error", err),
	)
}
