package maestro

import "errors"

var (
	// Store errors.
	ErrNoStore   = errors.New("maestro: no store configured")
	ErrNoInvoker = errors.New("maestro: no agent invoker configured")

	// Not found errors.
	ErrExecutionNotFound  = errors.New("maestro: execution not found")
	ErrCheckpointNotFound = errors.New("maestro: checkpoint not found")

	// Conflict errors.
	ErrExecutionExists = errors.New("maestro: execution already exists")

	// Execution errors.
	ErrStepTimeout        = errors.New("maestro: step timed out")
	ErrMaxRetriesExceeded = errors.New("maestro: max retries exceeded")
	ErrCheckpointCorrupt  = errors.New("maestro: checkpoint corrupt")
	ErrExecutionFrozen    = errors.New("maestro: execution is terminal and read-only")
)
