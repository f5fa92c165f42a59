package redis

// Redis key naming conventions for maestro data.
// All keys are prefixed with "maestro:" to avoid collisions.

const keyPrefix = "maestro:"

// execKey returns the key for an execution entity: maestro:exec:{id}
func execKey(id string) string { return keyPrefix + "exec:" + id }

// execIDsKey is the Set tracking all execution IDs for enumeration.
const execIDsKey = keyPrefix + "exec_ids"

// checkpointKey returns the key for a checkpoint: maestro:checkpoint:{id}
func checkpointKey(id string) string { return keyPrefix + "checkpoint:" + id }

// checkpointIndexKey returns the Set key tracking checkpoints for an
// execution.
func checkpointIndexKey(execID string) string {
	return keyPrefix + "checkpoint_idx:" + execID
}
