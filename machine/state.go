package machine

// State is the lifecycle state of a workflow execution instance.
type State string

const (
	// StateIdle is the initial state before a workflow is initiated.
	StateIdle State = "idle"
	// StateParsing means the raw definition is being parsed.
	StateParsing State = "parsing"
	// StateValidating means the parsed definition is being validated.
	StateValidating State = "validating"
	// StateBuildingGraph means the dependency graph is being built.
	StateBuildingGraph State = "building_graph"
	// StateScheduling means the batched execution order is being prepared.
	StateScheduling State = "scheduling"
	// StateExecuting means steps of the current batch are in flight.
	StateExecuting State = "executing"
	// StateAwaitingCompletion is the barrier between batches.
	StateAwaitingCompletion State = "awaiting_completion"
	// StateCheckpointing means a checkpoint snapshot is being created.
	StateCheckpointing State = "checkpointing"
	// StateRestoring means a context is being rebuilt from a checkpoint.
	StateRestoring State = "restoring"
	// StateAggregating means step results are being folded into the
	// workflow result.
	StateAggregating State = "aggregating"
	// StatePaused means the next batch is blocked until resumed.
	StatePaused State = "paused"
	// StateCompleted is the successful terminal state.
	StateCompleted State = "completed"
	// StateFailed is the failure terminal state.
	StateFailed State = "failed"
	// StateCancelled is the terminal state after cancellation. It is
	// distinct from StateFailed and is not an error.
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further (non-reset) transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// CanPause reports whether PauseWorkflow is legal from s.
func (s State) CanPause() bool {
	return s == StateExecuting || s == StateAwaitingCompletion
}

// CanCheckpoint reports whether CreateCheckpoint is legal from s.
// Aggregating is included so the final batch snapshots before the
// results fold.
func (s State) CanCheckpoint() bool {
	switch s {
	case StateExecuting, StateAwaitingCompletion, StatePaused, StateAggregating:
		return true
	default:
		return false
	}
}
