package machine

import (
	"github.com/xraph/maestro/agent"
	"github.com/xraph/maestro/definition"
	"github.com/xraph/maestro/graph"
	"github.com/xraph/maestro/id"
)

// Event is the sealed set of inputs the machine accepts. Each event is a
// payload struct; the unexported marker keeps the set closed to this
// package.
type Event interface {
	// Name returns the stable event name used in errors and logs.
	Name() string

	isEvent()
}

// Initiate starts a workflow execution from a raw definition.
// Legal from: Idle.
type Initiate struct {
	Raw    []byte
	Format definition.Format
}

// Parsed reports a successfully parsed definition.
// Legal from: Parsing.
type Parsed struct {
	Workflow *definition.Workflow
}

// ParseFailed reports a definition that could not be parsed.
// Legal from: Parsing.
type ParseFailed struct {
	Err error
}

// Validated reports a definition that passed validation.
// Legal from: Validating.
type Validated struct{}

// Invalid reports validation violations.
// Legal from: Validating.
type Invalid struct {
	Errors []string
}

// GraphBuilt reports a successfully built dependency graph.
// Legal from: BuildingGraph.
type GraphBuilt struct {
	Graph *graph.Graph
}

// GraphInvalid reports a graph construction failure (e.g. a cycle).
// Legal from: BuildingGraph.
type GraphInvalid struct {
	Err error
}

// Scheduled reports that the next batch is ready to execute.
// Legal from: Scheduling (first batch) and AwaitingCompletion (later
// batches).
type Scheduled struct{}

// StepStarted marks a step as running.
// Legal from: Executing, Paused; accepted as a no-op once terminal.
type StepStarted struct {
	StepID string
}

// StepCompleted settles a step successfully.
// Legal from: Executing, Paused; accepted as a no-op once terminal.
type StepCompleted struct {
	StepID   string
	Result   *agent.Result
	Attempts int
}

// StepFailed settles a step with a failure.
// Legal from: Executing, Paused; accepted as a no-op once terminal.
type StepFailed struct {
	StepID   string
	Err      error
	Attempts int
}

// BatchCompleted closes the current batch after every dispatched step
// settled. Legal from: Executing. A pause that arrives while the last
// steps are settling holds the batch open; the engine closes it only
// after the execution is resumed.
type BatchCompleted struct{}

// AllStepsCompleted moves past the batch barrier into aggregation when
// no runnable steps remain. Legal from: AwaitingCompletion.
type AllStepsCompleted struct{}

// CreateCheckpoint requests a checkpoint snapshot.
// Legal from: states where State.CanCheckpoint holds.
type CreateCheckpoint struct{}

// CheckpointCreated records a created checkpoint and returns to the
// state that requested it. Legal from: Checkpointing.
type CheckpointCreated struct {
	CheckpointID id.CheckpointID
}

// CheckpointFailed abandons a checkpoint attempt and returns to the
// state that requested it. Checkpoint failures are not fatal to the
// execution. Legal from: Checkpointing.
type CheckpointFailed struct {
	Err error
}

// RestoreCheckpoint begins rebuilding an execution from a checkpoint.
// Legal from: Idle.
type RestoreCheckpoint struct {
	CheckpointID id.CheckpointID
}

// CheckpointRestored adopts a context rebuilt by the checkpoint manager
// and enters execution. Legal from: Restoring.
type CheckpointRestored struct {
	Context *Context
}

// Complete finishes the workflow with its aggregated result.
// Legal from: Aggregating.
type Complete struct {
	Result []byte
}

// Fail moves the execution to the failure terminal state.
// Legal from: any non-terminal state.
type Fail struct {
	Err error
}

// Pause blocks the next batch from starting. In-flight step invocations
// are not cancelled; they settle normally.
// Legal from: states where State.CanPause holds.
type Pause struct{}

// Resume returns from Paused to the state that preceded it.
// Legal from: Paused.
type Resume struct{}

// Cancel moves the execution to the cancelled terminal state and freezes
// the context; late step settlements are accepted but mutate nothing.
// Legal from: any non-terminal state.
type Cancel struct{}

// Name implementations.

func (Initiate) Name() string           { return "InitiateWorkflow" }
func (Parsed) Name() string             { return "WorkflowParsed" }
func (ParseFailed) Name() string        { return "ParseFailed" }
func (Validated) Name() string          { return "WorkflowValid" }
func (Invalid) Name() string            { return "WorkflowInvalid" }
func (GraphBuilt) Name() string         { return "GraphBuilt" }
func (GraphInvalid) Name() string       { return "GraphInvalid" }
func (Scheduled) Name() string          { return "StepsScheduled" }
func (StepStarted) Name() string        { return "StepStarted" }
func (StepCompleted) Name() string      { return "StepCompleted" }
func (StepFailed) Name() string         { return "StepFailed" }
func (BatchCompleted) Name() string     { return "BatchCompleted" }
func (AllStepsCompleted) Name() string  { return "AllStepsCompleted" }
func (CreateCheckpoint) Name() string   { return "CreateCheckpoint" }
func (CheckpointCreated) Name() string  { return "CheckpointCreated" }
func (CheckpointFailed) Name() string   { return "CheckpointFailed" }
func (RestoreCheckpoint) Name() string  { return "RestoreCheckpoint" }
func (CheckpointRestored) Name() string { return "CheckpointRestored" }
func (Complete) Name() string           { return "CompleteWorkflow" }
func (Fail) Name() string               { return "WorkflowFailed" }
func (Pause) Name() string              { return "PauseWorkflow" }
func (Resume) Name() string             { return "ResumeWorkflow" }
func (Cancel) Name() string             { return "CancelWorkflow" }

// Sealed markers.

func (Initiate) isEvent()           {}
func (Parsed) isEvent()             {}
func (ParseFailed) isEvent()        {}
func (Validated) isEvent()          {}
func (Invalid) isEvent()            {}
func (GraphBuilt) isEvent()         {}
func (GraphInvalid) isEvent()       {}
func (Scheduled) isEvent()          {}
func (StepStarted) isEvent()        {}
func (StepCompleted) isEvent()      {}
func (StepFailed) isEvent()         {}
func (BatchCompleted) isEvent()     {}
func (AllStepsCompleted) isEvent()  {}
func (CreateCheckpoint) isEvent()   {}
func (CheckpointCreated) isEvent()  {}
func (CheckpointFailed) isEvent()   {}
func (RestoreCheckpoint) isEvent()  {}
func (CheckpointRestored) isEvent() {}
func (Complete) isEvent()           {}
func (Fail) isEvent()               {}
func (Pause) isEvent()              {}
func (Resume) isEvent()             {}
func (Cancel) isEvent()             {}
