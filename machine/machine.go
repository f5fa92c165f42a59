package machine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/maestro/id"
)

// InvalidTransitionError reports an event that is illegal for the
// machine's current state. This is a programming or integration error in
// the caller; it is never retried and the machine is left unchanged.
type InvalidTransitionError struct {
	State State
	Event string
}

// Error implements error.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("machine: event %s is illegal in state %s", e.Event, e.State)
}

// Machine is the state machine for one workflow execution instance. It
// exclusively owns its Context; callers mutate the execution only by
// applying events.
//
// Machine is not safe for concurrent use. The engine serializes access.
type Machine struct {
	state   State
	ctx     *Context
	history []State
	logger  *slog.Logger
}

// New creates a machine in StateIdle with a fresh context for the given
// execution id.
func New(execID id.ExecutionID, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		state:  StateIdle,
		ctx:    NewContext(execID),
		logger: logger,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Context returns the execution context owned by this machine. Callers
// must treat it as read-only; all mutation flows through Apply.
func (m *Machine) Context() *Context { return m.ctx }

// History returns the append-only list of prior states, oldest first.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// Apply runs one transition. It validates the (state, event) pair and
// all guards before mutating anything, so a returned error always leaves
// the machine exactly as it was.
func (m *Machine) Apply(ev Event) error {
	// Steps that could not be cancelled are allowed to settle after the
	// execution reached a terminal state; they must not corrupt the
	// frozen context.
	if m.state.Terminal() {
		switch ev.(type) {
		case StepStarted, StepCompleted, StepFailed:
			m.logger.Debug("ignoring step event on terminal execution",
				slog.String("execution_id", m.ctx.ExecutionID.String()),
				slog.String("event", ev.Name()),
				slog.String("state", string(m.state)),
			)
			return nil
		}
	}

	switch ev := ev.(type) {
	case Initiate:
		if m.state != StateIdle {
			return m.illegal(ev)
		}
		m.ctx.Raw = ev.Raw
		m.ctx.Format = ev.Format
		now := time.Now().UTC()
		m.ctx.Metrics.StartedAt = &now
		m.transition(ev, StateParsing)

	case Parsed:
		if m.state != StateParsing || ev.Workflow == nil {
			return m.illegal(ev)
		}
		m.ctx.initSteps(ev.Workflow)
		m.transition(ev, StateValidating)

	case ParseFailed:
		if m.state != StateParsing {
			return m.illegal(ev)
		}
		m.fail(ev, ev.Err)

	case Validated:
		if m.state != StateValidating {
			return m.illegal(ev)
		}
		m.transition(ev, StateBuildingGraph)

	case Invalid:
		if m.state != StateValidating {
			return m.illegal(ev)
		}
		m.ctx.ValidationErrors = ev.Errors
		m.fail(ev, errors.New("definition invalid: "+strings.Join(ev.Errors, "; ")))

	case GraphBuilt:
		if m.state != StateBuildingGraph || ev.Graph == nil {
			return m.illegal(ev)
		}
		m.ctx.Graph = ev.Graph
		m.transition(ev, StateScheduling)

	case GraphInvalid:
		if m.state != StateBuildingGraph {
			return m.illegal(ev)
		}
		m.fail(ev, ev.Err)

	case Scheduled:
		// First batch from Scheduling, later batches from the barrier.
		if m.state != StateScheduling && m.state != StateAwaitingCompletion {
			return m.illegal(ev)
		}
		// Entering Executing requires a non-empty graph.
		if m.ctx.Graph == nil || len(m.ctx.Graph.Batches) == 0 {
			return m.illegal(ev)
		}
		m.transition(ev, StateExecuting)

	case StepStarted:
		if m.state != StateExecuting && m.state != StatePaused {
			return m.illegal(ev)
		}
		s := m.ctx.Step(ev.StepID)
		if s == nil {
			return fmt.Errorf("machine: %s for unknown step %q", ev.Name(), ev.StepID)
		}
		now := time.Now().UTC()
		s.Status = StatusRunning
		s.StartedAt = &now

	case StepCompleted:
		if m.state != StateExecuting && m.state != StatePaused {
			return m.illegal(ev)
		}
		s := m.ctx.Step(ev.StepID)
		if s == nil {
			return fmt.Errorf("machine: %s for unknown step %q", ev.Name(), ev.StepID)
		}
		now := time.Now().UTC()
		s.Status = StatusCompleted
		s.Result = ev.Result
		s.Attempts = ev.Attempts
		s.CompletedAt = &now
		if ev.Result != nil {
			m.ctx.Results[ev.StepID] = ev.Result.Output
		}
		m.ctx.Metrics.CompletedSteps++

	case StepFailed:
		if m.state != StateExecuting && m.state != StatePaused {
			return m.illegal(ev)
		}
		s := m.ctx.Step(ev.StepID)
		if s == nil {
			return fmt.Errorf("machine: %s for unknown step %q", ev.Name(), ev.StepID)
		}
		now := time.Now().UTC()
		s.Status = StatusFailed
		if ev.Err != nil {
			s.Error = ev.Err.Error()
		}
		s.Attempts = ev.Attempts
		s.CompletedAt = &now
		m.ctx.Metrics.FailedSteps++

	case BatchCompleted:
		if m.state != StateExecuting {
			return m.illegal(ev)
		}
		m.ctx.BatchIndex++
		if m.ctx.BatchIndex < len(m.ctx.Graph.Batches) {
			m.transition(ev, StateAwaitingCompletion)
		} else {
			m.transition(ev, StateAggregating)
		}

	case AllStepsCompleted:
		if m.state != StateAwaitingCompletion {
			return m.illegal(ev)
		}
		m.transition(ev, StateAggregating)

	case CreateCheckpoint:
		if !m.state.CanCheckpoint() {
			return m.illegal(ev)
		}
		m.transition(ev, StateCheckpointing)

	case CheckpointCreated:
		if m.state != StateCheckpointing {
			return m.illegal(ev)
		}
		m.ctx.Checkpoints = append(m.ctx.Checkpoints, ev.CheckpointID)
		// Return to the state that requested the checkpoint.
		m.transition(ev, m.prior())

	case CheckpointFailed:
		if m.state != StateCheckpointing {
			return m.illegal(ev)
		}
		m.logger.Warn("checkpoint attempt failed",
			slog.String("execution_id", m.ctx.ExecutionID.String()),
			slog.Any("error", ev.Err),
		)
		m.transition(ev, m.prior())

	case RestoreCheckpoint:
		if m.state != StateIdle {
			return m.illegal(ev)
		}
		m.transition(ev, StateRestoring)

	case CheckpointRestored:
		if m.state != StateRestoring {
			return m.illegal(ev)
		}
		if ev.Context == nil || ev.Context.Workflow == nil ||
			ev.Context.Graph == nil || len(ev.Context.Graph.Batches) == 0 {
			return m.illegal(ev)
		}
		m.ctx = ev.Context
		m.transition(ev, StateExecuting)

	case Complete:
		if m.state != StateAggregating {
			return m.illegal(ev)
		}
		m.ctx.Aggregate = ev.Result
		now := time.Now().UTC()
		m.ctx.Metrics.CompletedAt = &now
		m.transition(ev, StateCompleted)

	case Fail:
		if m.state.Terminal() {
			return m.illegal(ev)
		}
		m.fail(ev, ev.Err)

	case Pause:
		if !m.state.CanPause() {
			return m.illegal(ev)
		}
		m.transition(ev, StatePaused)

	case Resume:
		if m.state != StatePaused {
			return m.illegal(ev)
		}
		m.transition(ev, m.prior())

	case Cancel:
		if m.state.Terminal() {
			return m.illegal(ev)
		}
		now := time.Now().UTC()
		m.ctx.Metrics.CompletedAt = &now
		m.ctx.frozen = true
		m.transition(ev, StateCancelled)

	default:
		return m.illegal(ev)
	}

	return nil
}

// transition commits a state change, appending the prior state to the
// history.
func (m *Machine) transition(ev Event, next State) {
	m.logger.Debug("transition",
		slog.String("execution_id", m.ctx.ExecutionID.String()),
		slog.String("event", ev.Name()),
		slog.String("from", string(m.state)),
		slog.String("to", string(next)),
	)
	m.history = append(m.history, m.state)
	m.state = next
}

// fail records the terminal error and transitions to StateFailed.
func (m *Machine) fail(ev Event, err error) {
	m.ctx.Err = err
	now := time.Now().UTC()
	m.ctx.Metrics.CompletedAt = &now
	m.transition(ev, StateFailed)
}

// illegal builds the rejection for an event that is not legal now.
func (m *Machine) illegal(ev Event) error {
	return &InvalidTransitionError{State: m.state, Event: ev.Name()}
}

// prior returns the state on top of the history: the state the machine
// was in immediately before the current one.
func (m *Machine) prior() State {
	if len(m.history) == 0 {
		return StateIdle
	}
	return m.history[len(m.history)-1]
}
