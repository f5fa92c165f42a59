package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/definition"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/graph"
	"github.com/xraph/maestro/id"
	"github.com/xraph/maestro/machine"
)

// Run drives one workflow execution synchronously from raw definition
// to a terminal record. The returned error reports infrastructure
// problems only (store failures, illegal transitions); a workflow that
// parses but fails at runtime yields a nil error and a record in the
// failed state carrying the error taxonomy.
func (e *Engine) Run(ctx context.Context, raw []byte, format definition.Format) (*execution.Record, error) {
	execID := id.NewExecutionID()
	m := machine.New(execID, e.logger)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := &execution.Record{
		Entity: maestro.NewEntity(),
		ID:     execID,
		State:  string(m.State()),
	}
	sess := newSession(execID, m, rec, e.hooks, runCtx, cancel)
	e.register(sess)
	defer e.unregister(sess)

	if err := sess.apply(machine.Initiate{Raw: raw, Format: format}); err != nil {
		return nil, err
	}
	sess.sync()
	if err := e.store.CreateExecution(ctx, rec); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	wf, perr := definition.Parse(raw, format)
	if perr != nil {
		_ = sess.apply(machine.ParseFailed{Err: perr})
		return e.finish(ctx, sess)
	}
	if err := sess.apply(machine.Parsed{Workflow: wf}); err != nil {
		return nil, err
	}
	e.hooks.EmitExecutionStarted(runCtx, rec)

	if res := definition.Validate(wf); !res.Valid {
		_ = sess.apply(machine.Invalid{Errors: res.Errors})
		return e.finish(ctx, sess)
	}
	if err := sess.apply(machine.Validated{}); err != nil {
		return nil, err
	}

	g, gerr := graph.Build(wf.Steps)
	if gerr != nil {
		_ = sess.apply(machine.GraphInvalid{Err: gerr})
		return e.finish(ctx, sess)
	}
	if err := sess.apply(machine.GraphBuilt{Graph: g}); err != nil {
		return nil, err
	}

	if err := sess.apply(machine.Scheduled{}); err != nil {
		return nil, err
	}
	e.persist(ctx, sess)

	return e.runBatches(ctx, runCtx, sess)
}

// Restore rebuilds an execution from a checkpoint under a fresh
// execution id and continues it to a terminal record.
func (e *Engine) Restore(ctx context.Context, cpID id.CheckpointID) (*execution.Record, error) {
	cp, err := e.checkpoints.Get(ctx, cpID)
	if err != nil {
		return nil, err
	}

	execID := id.NewExecutionID()
	m := machine.New(execID, e.logger)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := &execution.Record{
		Entity:     maestro.NewEntity(),
		ID:         execID,
		WorkflowID: cp.WorkflowID,
		State:      string(m.State()),
	}
	sess := newSession(execID, m, rec, e.hooks, runCtx, cancel)
	e.register(sess)
	defer e.unregister(sess)

	if err := sess.apply(machine.RestoreCheckpoint{CheckpointID: cpID}); err != nil {
		return nil, err
	}

	mctx, rerr := e.checkpoints.Restore(execID, cp)
	if rerr != nil {
		_ = sess.apply(machine.Fail{Err: rerr})
		sess.sync()
		if cerr := e.store.CreateExecution(ctx, rec); cerr != nil {
			return nil, fmt.Errorf("create execution: %w", cerr)
		}
		return e.finish(ctx, sess)
	}

	now := time.Now().UTC()
	mctx.Metrics.StartedAt = &now
	if err := sess.apply(machine.CheckpointRestored{Context: mctx}); err != nil {
		return nil, err
	}
	sess.sync()
	if err := e.store.CreateExecution(ctx, rec); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}
	e.hooks.EmitCheckpointRestored(runCtx, rec, cp)

	return e.runBatches(ctx, runCtx, sess)
}

// runBatches is the barrier loop: execute one batch, settle it, wait
// out a pause, checkpoint, schedule the next. Every transition the loop
// emits goes through applyAtBarrier, which holds the session lock across
// the pause wait and the apply so a control call cannot land in between
// and strand the execution.
func (e *Engine) runBatches(ctx, runCtx context.Context, sess *session) (*execution.Record, error) {
	mctx := sess.m.Context()

	for {
		// A pause that landed before this batch was dispatched holds
		// here.
		if sess.state() == machine.StatePaused {
			e.persist(ctx, sess)
			if err := sess.awaitResume(); err != nil {
				break
			}
		}
		if sess.state() != machine.StateExecuting {
			break
		}

		batchIndex := sess.batchIndex()
		batch := mctx.Graph.Batch(batchIndex)

		batchErr := e.exec.ExecuteBatch(runCtx, mctx, batch, sess)

		if sess.state() == machine.StateCancelled {
			break
		}

		if batchErr != nil && e.cfg.FailurePolicy == maestro.FailFast {
			if sess.state() == machine.StatePaused {
				e.persist(ctx, sess)
				if err := sess.awaitResume(); err != nil {
					break
				}
			}
			_ = sess.apply(machine.Fail{Err: batchErr})
			break
		}

		// Barrier: a pause that landed during the batch holds here until
		// resumed or cancelled; the batch only closes once the execution
		// is unpaused.
		if sess.state() == machine.StatePaused {
			e.persist(ctx, sess)
		}
		if err := sess.applyAtBarrier(machine.BatchCompleted{}); err != nil {
			if errors.Is(err, maestro.ErrExecutionFrozen) {
				break
			}
			return nil, err
		}
		e.hooks.EmitBatchCompleted(runCtx, sess.rec, batchIndex)
		e.persist(ctx, sess)

		// The final batch checkpoints too; checkpointNow is a no-op when
		// the execution was cancelled in the meantime.
		if e.cfg.CheckpointEachBatch {
			e.checkpointNow(ctx, sess)
		}

		st := sess.state()
		if st == machine.StateCancelled || st == machine.StateAggregating {
			break
		}

		if !hasRunnableWork(mctx) {
			if err := sess.applyAtBarrier(machine.AllStepsCompleted{}); err != nil {
				if errors.Is(err, maestro.ErrExecutionFrozen) {
					break
				}
				return nil, err
			}
			break
		}
		if err := sess.applyAtBarrier(machine.Scheduled{}); err != nil {
			if errors.Is(err, maestro.ErrExecutionFrozen) {
				break
			}
			return nil, err
		}
	}

	return e.finish(ctx, sess)
}

// checkpointNow snapshots the execution at the batch barrier. Failures
// are logged and the execution continues.
func (e *Engine) checkpointNow(ctx context.Context, sess *session) {
	if err := sess.apply(machine.CreateCheckpoint{}); err != nil {
		return
	}
	cp, err := e.checkpoints.Create(ctx, sess.m.Context())
	if err != nil {
		_ = sess.apply(machine.CheckpointFailed{Err: err})
		return
	}
	if err := sess.apply(machine.CheckpointCreated{CheckpointID: cp.ID}); err != nil {
		e.logger.Warn("checkpoint settle failed",
			slog.String("execution_id", sess.execID.String()),
			slog.Any("error", err),
		)
		return
	}
	e.hooks.EmitCheckpointCreated(ctx, cp)
}

// finish aggregates if the execution reached aggregation, persists the
// terminal record, and fans out the terminal hooks.
func (e *Engine) finish(ctx context.Context, sess *session) (*execution.Record, error) {
	if sess.state() == machine.StateAggregating {
		out, err := aggregate(sess.m.Context())
		if err != nil {
			_ = sess.apply(machine.Fail{Err: err})
		} else {
			_ = sess.apply(machine.Complete{Result: out})
		}
	}

	e.persist(ctx, sess)
	rec := sess.rec

	switch sess.state() {
	case machine.StateCompleted:
		var elapsed time.Duration
		if rec.StartedAt != nil && rec.CompletedAt != nil {
			elapsed = rec.CompletedAt.Sub(*rec.StartedAt)
		}
		e.hooks.EmitExecutionCompleted(ctx, rec, elapsed)
		e.logger.Info("execution completed",
			slog.String("execution_id", sess.execID.String()),
			slog.String("workflow_id", rec.WorkflowID),
			slog.Int("completed_steps", rec.Metrics.CompletedSteps),
		)
	case machine.StateFailed:
		e.hooks.EmitExecutionFailed(ctx, rec, sess.m.Context().Err)
		e.logger.Warn("execution failed",
			slog.String("execution_id", sess.execID.String()),
			slog.String("workflow_id", rec.WorkflowID),
			slog.String("error_code", string(rec.ErrorCode)),
			slog.String("error", rec.Error),
		)
	case machine.StateCancelled:
		// The cancellation hook fired when Cancel was applied.
		e.logger.Info("execution cancelled",
			slog.String("execution_id", sess.execID.String()),
			slog.String("workflow_id", rec.WorkflowID),
		)
	}
	return rec, nil
}

// persist syncs the record from the machine context and upserts it.
// Persistence failures are logged; the in-memory record stays
// authoritative for the caller.
func (e *Engine) persist(ctx context.Context, sess *session) {
	sess.sync()
	if err := e.store.UpdateExecution(ctx, sess.rec); err != nil {
		e.logger.Warn("persist execution failed",
			slog.String("execution_id", sess.execID.String()),
			slog.Any("error", err),
		)
	}
}

// hasRunnableWork reports whether any not-yet-executed batch still
// contains a step that is pending and not transitively blocked by a
// failed dependency.
func hasRunnableWork(mctx *machine.Context) bool {
	blocked := make(map[string]bool)
	for _, s := range mctx.Steps {
		if s.Status == machine.StatusFailed {
			blocked[s.ID] = true
		}
	}
	// Batches are topologically ordered, so one forward pass propagates
	// blockage through the whole graph.
	for _, batch := range mctx.Graph.Batches {
		for _, stepID := range batch {
			step := mctx.Workflow.Step(stepID)
			if step == nil {
				continue
			}
			for _, dep := range step.Dependencies {
				if blocked[dep] {
					blocked[stepID] = true
					break
				}
			}
		}
	}
	for i := mctx.BatchIndex; i < len(mctx.Graph.Batches); i++ {
		for _, stepID := range mctx.Graph.Batches[i] {
			s := mctx.Step(stepID)
			if s != nil && s.Status == machine.StatusPending && !blocked[stepID] {
				return true
			}
		}
	}
	return false
}
