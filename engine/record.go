package engine

import (
	"errors"
	"time"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/definition"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/graph"
	"github.com/xraph/maestro/machine"
)

// syncRecord projects the machine's context onto the persisted record.
// Callers hold the session lock.
func syncRecord(rec *execution.Record, m *machine.Machine) {
	mctx := m.Context()

	rec.State = string(m.State())
	if mctx.Workflow != nil {
		rec.WorkflowID = mctx.Workflow.ID
		rec.WorkflowName = mctx.Workflow.Name
	}
	rec.StartedAt = mctx.Metrics.StartedAt
	rec.CompletedAt = mctx.Metrics.CompletedAt
	rec.Result = mctx.Aggregate
	rec.Metrics = execution.Metrics{
		TotalSteps:     mctx.Metrics.TotalSteps,
		CompletedSteps: mctx.Metrics.CompletedSteps,
		FailedSteps:    mctx.Metrics.FailedSteps,
	}

	rec.Steps = rec.Steps[:0]
	for _, s := range mctx.Steps {
		sr := execution.StepRecord{
			ID:          s.ID,
			Name:        s.Name,
			AgentID:     s.AgentID,
			Status:      string(s.Status),
			Error:       s.Error,
			Attempts:    s.Attempts,
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
		}
		if out, ok := mctx.Results[s.ID]; ok {
			sr.Result = out
		}
		rec.Steps = append(rec.Steps, sr)
	}

	if mctx.Err != nil {
		rec.Error = mctx.Err.Error()
		rec.ErrorCode = classify(mctx)
	}
	rec.UpdatedAt = time.Now().UTC()
}

// classify maps the execution's terminal error onto the error taxonomy.
func classify(mctx *machine.Context) execution.ErrorCode {
	err := mctx.Err

	var schemaErr *definition.SchemaError
	if errors.As(err, &schemaErr) {
		return execution.CodeSchemaError
	}
	var parseErr *definition.ParseError
	if errors.As(err, &parseErr) {
		return execution.CodeParseError
	}
	if len(mctx.ValidationErrors) > 0 {
		return execution.CodeValidationError
	}
	var cycleErr *graph.CycleError
	if errors.As(err, &cycleErr) {
		return execution.CodeCycleError
	}
	switch {
	case errors.Is(err, maestro.ErrStepTimeout):
		return execution.CodeStepTimeout
	case errors.Is(err, maestro.ErrCheckpointCorrupt):
		return execution.CodeCheckpointError
	case errors.Is(err, maestro.ErrMaxRetriesExceeded):
		return execution.CodeStepExecution
	}
	if mctx.Metrics.FailedSteps > 0 {
		return execution.CodeStepExecution
	}
	return execution.CodeInternal
}
