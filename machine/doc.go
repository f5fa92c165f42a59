// Package machine implements the deterministic state machine governing
// the lifecycle of one workflow execution instance. All other components
// only emit events into the machine; it alone decides whether a
// transition is legal and what the resulting state and context mutation
// are.
//
// State is a closed enum and Event is a sealed interface with one payload
// struct per event, so the transition function is an exhaustive switch
// with an explicit default producing *InvalidTransitionError. Transitions
// are all-or-nothing: an illegal (state, event) pair leaves both the
// state and the execution context untouched.
//
// Every applied transition appends the prior state to an append-only
// history, which doubles as the return path for Paused and Checkpointing:
// Resume and CheckpointCreated transition back to the state on top of the
// history.
package machine
