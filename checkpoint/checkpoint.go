// Package checkpoint creates and restores execution checkpoints.
//
// A checkpoint is an immutable snapshot of a running execution: the raw
// definition, the set of completed steps, and their results. Restoring
// re-parses the definition, rebuilds the dependency graph, and produces
// an execution context in which completed steps keep their results and
// every other step is reset to pending, so partially-executed batches
// re-run their unfinished steps.
package checkpoint

import (
	"context"
	"encoding/json"
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

// DefaultRetention is how many checkpoints per execution survive a
// prune when no retention is configured.
const DefaultRetention = 10

// Manager creates, prunes, and restores checkpoints against a store.
type Manager struct {
	store  execution.Store
	retain int
	logger *slog.Logger
}

// NewManager creates a manager. A retain of zero or less falls back to
// DefaultRetention.
func NewManager(store execution.Store, retain int, logger *slog.Logger) *Manager {
	if retain <= 0 {
		retain = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, retain: retain, logger: logger}
}

// Create snapshots the given execution context into a new checkpoint,
// persists it, and prunes older checkpoints past the retention limit.
func (m *Manager) Create(ctx context.Context, mctx *machine.Context) (*execution.Checkpoint, error) {
	if m.store == nil {
		return nil, maestro.ErrNoStore
	}

	// The context keeps mutating after the snapshot is taken; the
	// checkpoint gets its own copy of the results so it stays immutable.
	results := make(map[string]json.RawMessage, len(mctx.Results))
	for stepID, out := range mctx.Results {
		results[stepID] = out
	}

	cp := &execution.Checkpoint{
		ID:          id.NewCheckpointID(),
		ExecutionID: mctx.ExecutionID,
		CreatedAt:   time.Now().UTC(),
		Raw:         mctx.Raw,
		Format:      string(mctx.Format),

		CompletedSteps: mctx.CompletedStepIDs(),
		PendingSteps:   mctx.PendingStepIDs(),
		StepResults:    results,
	}
	if mctx.Workflow != nil {
		cp.WorkflowID = mctx.Workflow.ID
	}

	if err := m.store.SaveCheckpoint(ctx, cp); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	pruned, err := m.store.PruneCheckpoints(ctx, cp.ExecutionID, m.retain)
	if err != nil {
		// The checkpoint itself was saved; a failed prune only delays
		// cleanup until the next one.
		m.logger.Warn("checkpoint prune failed",
			slog.String("execution_id", cp.ExecutionID.String()),
			slog.Any("error", err),
		)
	} else if pruned > 0 {
		m.logger.Debug("pruned checkpoints",
			slog.String("execution_id", cp.ExecutionID.String()),
			slog.Int("pruned", pruned),
		)
	}

	m.logger.Info("checkpoint created",
		slog.String("checkpoint_id", cp.ID.String()),
		slog.String("execution_id", cp.ExecutionID.String()),
		slog.Int("completed_steps", len(cp.CompletedSteps)),
		slog.Int("pending_steps", len(cp.PendingSteps)),
	)
	return cp, nil
}

// Restore rebuilds an execution context from a checkpoint under a new
// execution id. The definition carried by the checkpoint is re-parsed
// and its graph rebuilt, then completed steps are replayed from the
// snapshot. Any inconsistency between the snapshot and the definition
// wraps maestro.ErrCheckpointCorrupt.
func (m *Manager) Restore(execID id.ExecutionID, cp *execution.Checkpoint) (*machine.Context, error) {
	format := definition.Format(cp.Format)
	if !format.Valid() {
		return nil, fmt.Errorf("%w: unknown format %q", maestro.ErrCheckpointCorrupt, cp.Format)
	}
	wf, err := definition.Parse(cp.Raw, format)
	if err != nil {
		return nil, fmt.Errorf("%w: definition no longer parses: %v", maestro.ErrCheckpointCorrupt, err)
	}
	g, err := graph.Build(wf.Steps)
	if err != nil {
		return nil, fmt.Errorf("%w: graph no longer builds: %v", maestro.ErrCheckpointCorrupt, err)
	}

	mctx := machine.NewContext(execID)
	mctx.Raw = cp.Raw
	mctx.Format = format
	mctx.Graph = g
	mctx.Restore(wf, cp.CompletedSteps, cp.StepResults)

	// Every completed step id in the snapshot must exist in the
	// definition, or the replay above silently dropped results.
	for _, stepID := range cp.CompletedSteps {
		if mctx.Step(stepID) == nil {
			return nil, fmt.Errorf("%w: completed step %q not in definition", maestro.ErrCheckpointCorrupt, stepID)
		}
	}

	// Resume at the first batch that still has work.
	mctx.BatchIndex = len(g.Batches)
	for i, batch := range g.Batches {
		if batchHasPending(mctx, batch) {
			mctx.BatchIndex = i
			break
		}
	}

	m.logger.Info("checkpoint restored",
		slog.String("checkpoint_id", cp.ID.String()),
		slog.String("execution_id", execID.String()),
		slog.Int("completed_steps", len(cp.CompletedSteps)),
		slog.Int("resume_batch", mctx.BatchIndex),
	)
	return mctx, nil
}

// Get loads a checkpoint by id.
func (m *Manager) Get(ctx context.Context, cpID id.CheckpointID) (*execution.Checkpoint, error) {
	if m.store == nil {
		return nil, maestro.ErrNoStore
	}
	return m.store.GetCheckpoint(ctx, cpID)
}

func batchHasPending(mctx *machine.Context, batch []string) bool {
	for _, stepID := range batch {
		s := mctx.Step(stepID)
		if s != nil && s.Status != machine.StatusCompleted {
			return true
		}
	}
	return false
}
