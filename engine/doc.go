// Package engine wires the subsystems into a runnable orchestrator:
// definition parsing and validation, graph construction, the execution
// state machine, the batch executor, checkpointing, persistence, and
// lifecycle hooks.
//
// Run drives one execution synchronously from raw definition to a
// terminal record. Pause, Resume, and Cancel act on in-flight
// executions from other goroutines; Restore rebuilds an execution from
// a persisted checkpoint and continues it.
package engine
