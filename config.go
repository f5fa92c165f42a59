package maestro

import "time"

// FailurePolicy decides what happens to a workflow when a single step
// exhausts its retries.
type FailurePolicy string

const (
	// FailFast aborts the whole workflow on the first step that exhausts
	// its retries. Siblings already in flight are cancelled but always
	// awaited before the batch settles.
	FailFast FailurePolicy = "fail_fast"

	// BestEffort keeps executing every step whose dependencies all
	// completed. Steps downstream of a failed step stay pending and the
	// workflow completes with a partial result.
	BestEffort FailurePolicy = "best_effort"
)

// Valid reports whether p is a known failure policy.
func (p FailurePolicy) Valid() bool {
	return p == FailFast || p == BestEffort
}

// Config holds engine-level configuration.
type Config struct {
	// FailurePolicy decides whether a step failure aborts the workflow
	// or only marks that step failed.
	FailurePolicy FailurePolicy

	// StepTimeout is the per-attempt timeout applied to steps that do
	// not declare their own. Zero means no default timeout.
	StepTimeout time.Duration

	// CheckpointEachBatch makes the engine create a checkpoint after
	// every completed batch.
	CheckpointEachBatch bool

	// CheckpointRetention is how many checkpoints to keep per execution.
	// Older checkpoints are pruned after each create. Zero or negative
	// falls back to the default retention.
	CheckpointRetention int

	// AgentRPS rate-limits agent invocations across a whole execution.
	// Zero means unlimited.
	AgentRPS float64

	// AgentBurst is the burst size for the agent rate limiter. Only
	// meaningful when AgentRPS is set.
	AgentBurst int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailurePolicy:       FailFast,
		StepTimeout:         1 * time.Minute,
		CheckpointEachBatch: true,
		CheckpointRetention: 10,
	}
}
