package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/id"
)

// ── Execution model ───────────────────────────────────────────────

type executionModel struct {
	bun.BaseModel `bun:"table:maestro_executions"`

	ID           string     `bun:"id,pk"`
	WorkflowID   string     `bun:"workflow_id,notnull"`
	WorkflowName string     `bun:"workflow_name"`
	State        string     `bun:"state,notnull,default:'idle'"`
	Steps        []byte     `bun:"steps,type:jsonb"`
	Result       []byte     `bun:"result,type:jsonb"`
	Error        string     `bun:"error"`
	ErrorCode    string     `bun:"error_code"`
	StartedAt    *time.Time `bun:"started_at"`
	CompletedAt  *time.Time `bun:"completed_at"`

	TotalSteps     int `bun:"total_steps,notnull,default:0"`
	CompletedSteps int `bun:"completed_steps,notnull,default:0"`
	FailedSteps    int `bun:"failed_steps,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toExecutionModel(rec *execution.Record) (*executionModel, error) {
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	return &executionModel{
		ID:             rec.ID.String(),
		WorkflowID:     rec.WorkflowID,
		WorkflowName:   rec.WorkflowName,
		State:          rec.State,
		Steps:          steps,
		Result:         rec.Result,
		Error:          rec.Error,
		ErrorCode:      string(rec.ErrorCode),
		StartedAt:      rec.StartedAt,
		CompletedAt:    rec.CompletedAt,
		TotalSteps:     rec.Metrics.TotalSteps,
		CompletedSteps: rec.Metrics.CompletedSteps,
		FailedSteps:    rec.Metrics.FailedSteps,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}, nil
}

func fromExecutionModel(m *executionModel) (*execution.Record, error) {
	execID, err := id.ParseExecutionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse execution id %q: %w", m.ID, err)
	}
	rec := &execution.Record{
		ID:           execID,
		WorkflowID:   m.WorkflowID,
		WorkflowName: m.WorkflowName,
		State:        m.State,
		Result:       m.Result,
		Error:        m.Error,
		ErrorCode:    execution.ErrorCode(m.ErrorCode),
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
		Metrics: execution.Metrics{
			TotalSteps:     m.TotalSteps,
			CompletedSteps: m.CompletedSteps,
			FailedSteps:    m.FailedSteps,
		},
	}
	rec.CreatedAt = m.CreatedAt
	rec.UpdatedAt = m.UpdatedAt
	if len(m.Steps) > 0 {
		if err := json.Unmarshal(m.Steps, &rec.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	return rec, nil
}

// ── Checkpoint model ──────────────────────────────────────────────

type checkpointModel struct {
	bun.BaseModel `bun:"table:maestro_checkpoints"`

	ID          string    `bun:"id,pk"`
	ExecutionID string    `bun:"execution_id,notnull"`
	WorkflowID  string    `bun:"workflow_id"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`

	Raw    []byte `bun:"raw,notnull,type:bytea"`
	Format string `bun:"format,notnull"`

	CompletedSteps []byte `bun:"completed_steps,type:jsonb"`
	PendingSteps   []byte `bun:"pending_steps,type:jsonb"`
	StepResults    []byte `bun:"step_results,type:jsonb"`
}

func toCheckpointModel(cp *execution.Checkpoint) (*checkpointModel, error) {
	completed, err := json.Marshal(cp.CompletedSteps)
	if err != nil {
		return nil, fmt.Errorf("marshal completed steps: %w", err)
	}
	pending, err := json.Marshal(cp.PendingSteps)
	if err != nil {
		return nil, fmt.Errorf("marshal pending steps: %w", err)
	}
	results, err := json.Marshal(cp.StepResults)
	if err != nil {
		return nil, fmt.Errorf("marshal step results: %w", err)
	}
	return &checkpointModel{
		ID:             cp.ID.String(),
		ExecutionID:    cp.ExecutionID.String(),
		WorkflowID:     cp.WorkflowID,
		CreatedAt:      cp.CreatedAt,
		Raw:            cp.Raw,
		Format:         cp.Format,
		CompletedSteps: completed,
		PendingSteps:   pending,
		StepResults:    results,
	}, nil
}

func fromCheckpointModel(m *checkpointModel) (*execution.Checkpoint, error) {
	cpID, err := id.ParseCheckpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint id %q: %w", m.ID, err)
	}
	execID, err := id.ParseExecutionID(m.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("parse execution id %q: %w", m.ExecutionID, err)
	}
	cp := &execution.Checkpoint{
		ID:          cpID,
		ExecutionID: execID,
		WorkflowID:  m.WorkflowID,
		CreatedAt:   m.CreatedAt,
		Raw:         m.Raw,
		Format:      m.Format,
	}
	if len(m.CompletedSteps) > 0 {
		if err := json.Unmarshal(m.CompletedSteps, &cp.CompletedSteps); err != nil {
			return nil, fmt.Errorf("unmarshal completed steps: %w", err)
		}
	}
	if len(m.PendingSteps) > 0 {
		if err := json.Unmarshal(m.PendingSteps, &cp.PendingSteps); err != nil {
			return nil, fmt.Errorf("unmarshal pending steps: %w", err)
		}
	}
	if len(m.StepResults) > 0 {
		if err := json.Unmarshal(m.StepResults, &cp.StepResults); err != nil {
			return nil, fmt.Errorf("unmarshal step results: %w", err)
		}
	}
	return cp, nil
}
