package execution

import (
	"context"

	"github.com/xraph/maestro/id"
)

// ListOpts narrows and pages a record listing. A zero value lists
// everything in creation order, newest first.
type ListOpts struct {
	// State filters by lifecycle state when non-empty.
	State string

	Limit  int
	Offset int
}

// Store persists execution records and checkpoints. Implementations
// must be safe for concurrent use.
//
// Records are upserted whole; the engine owns merge semantics.
// Checkpoints are write-once: SaveCheckpoint never overwrites an
// existing id.
type Store interface {
	CreateExecution(ctx context.Context, rec *Record) error
	GetExecution(ctx context.Context, execID id.ExecutionID) (*Record, error)
	UpdateExecution(ctx context.Context, rec *Record) error
	ListExecutions(ctx context.Context, opts ListOpts) ([]*Record, error)

	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error
	GetCheckpoint(ctx context.Context, cpID id.CheckpointID) (*Checkpoint, error)
	// ListCheckpoints returns the execution's checkpoints, oldest first.
	ListCheckpoints(ctx context.Context, execID id.ExecutionID) ([]*Checkpoint, error)
	// PruneCheckpoints deletes all but the newest keep checkpoints for
	// the execution and returns how many were removed.
	PruneCheckpoints(ctx context.Context, execID id.ExecutionID, keep int) (int, error)
}
