package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/id"
)

// CreateExecution persists a new execution record.
func (s *Store) CreateExecution(ctx context.Context, rec *execution.Record) error {
	eID := rec.ID.String()
	key := execKey(eID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("maestro/redis: create execution exists: %w", err)
	}
	if exists > 0 {
		return maestro.ErrExecutionExists
	}

	m, err := recordToMap(rec)
	if err != nil {
		return fmt.Errorf("maestro/redis: create execution: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	pipe.SAdd(ctx, execIDsKey, eID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("maestro/redis: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves a record by id.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*execution.Record, error) {
	vals, err := s.client.HGetAll(ctx, execKey(execID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("maestro/redis: get execution: %w", err)
	}
	if len(vals) == 0 {
		return nil, maestro.ErrExecutionNotFound
	}
	return mapToRecord(vals)
}

// UpdateExecution overwrites an existing record.
func (s *Store) UpdateExecution(ctx context.Context, rec *execution.Record) error {
	key := execKey(rec.ID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("maestro/redis: update execution exists: %w", err)
	}
	if exists == 0 {
		return maestro.ErrExecutionNotFound
	}

	m, err := recordToMap(rec)
	if err != nil {
		return fmt.Errorf("maestro/redis: update execution: %w", err)
	}
	m["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.client.HSet(ctx, key, m).Result()
	if err != nil {
		return fmt.Errorf("maestro/redis: update execution: %w", err)
	}
	return nil
}

// ListExecutions returns records matching the given options, newest
// first.
func (s *Store) ListExecutions(ctx context.Context, opts execution.ListOpts) ([]*execution.Record, error) {
	ids, err := s.client.SMembers(ctx, execIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("maestro/redis: list executions smembers: %w", err)
	}

	var recs []*execution.Record
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, execKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		rec, convErr := mapToRecord(vals)
		if convErr != nil {
			continue
		}
		if opts.State != "" && rec.State != opts.State {
			continue
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID.String() > recs[j].ID.String()
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(recs) {
			return nil, nil
		}
		recs = recs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(recs) {
		recs = recs[:opts.Limit]
	}
	return recs, nil
}

// SaveCheckpoint persists a checkpoint. Checkpoints are write-once.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *execution.Checkpoint) error {
	cpID := cp.ID.String()
	key := checkpointKey(cpID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("maestro/redis: save checkpoint exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("maestro/redis: save checkpoint: duplicate id %s", cpID)
	}

	m, err := checkpointToMap(cp)
	if err != nil {
		return fmt.Errorf("maestro/redis: save checkpoint: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	pipe.SAdd(ctx, checkpointIndexKey(cp.ExecutionID.String()), cpID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("maestro/redis: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint by id.
func (s *Store) GetCheckpoint(ctx context.Context, cpID id.CheckpointID) (*execution.Checkpoint, error) {
	vals, err := s.client.HGetAll(ctx, checkpointKey(cpID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("maestro/redis: get checkpoint: %w", err)
	}
	if len(vals) == 0 {
		return nil, maestro.ErrCheckpointNotFound
	}
	return mapToCheckpoint(vals)
}

// ListCheckpoints returns the execution's checkpoints, oldest first.
func (s *Store) ListCheckpoints(ctx context.Context, execID id.ExecutionID) ([]*execution.Checkpoint, error) {
	ids, err := s.client.SMembers(ctx, checkpointIndexKey(execID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("maestro/redis: list checkpoints smembers: %w", err)
	}

	var cps []*execution.Checkpoint
	for _, cpID := range ids {
		vals, getErr := s.client.HGetAll(ctx, checkpointKey(cpID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		cp, convErr := mapToCheckpoint(vals)
		if convErr != nil {
			continue
		}
		cps = append(cps, cp)
	}

	sort.Slice(cps, func(i, j int) bool {
		if cps[i].CreatedAt.Equal(cps[j].CreatedAt) {
			return cps[i].ID.String() < cps[j].ID.String()
		}
		return cps[i].CreatedAt.Before(cps[j].CreatedAt)
	})
	return cps, nil
}

// PruneCheckpoints deletes all but the newest keep checkpoints for the
// execution.
func (s *Store) PruneCheckpoints(ctx context.Context, execID id.ExecutionID, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	cps, err := s.ListCheckpoints(ctx, execID)
	if err != nil {
		return 0, err
	}
	if len(cps) <= keep {
		return 0, nil
	}

	doomed := cps[:len(cps)-keep]
	pipe := s.client.TxPipeline()
	for _, cp := range doomed {
		cpID := cp.ID.String()
		pipe.Del(ctx, checkpointKey(cpID))
		pipe.SRem(ctx, checkpointIndexKey(execID.String()), cpID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("maestro/redis: prune checkpoints: %w", err)
	}
	return len(doomed), nil
}

// ── Hash conversions ──────────────────────────────────────────────

func recordToMap(rec *execution.Record) (map[string]interface{}, error) {
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	m := map[string]interface{}{
		"id":              rec.ID.String(),
		"workflow_id":     rec.WorkflowID,
		"workflow_name":   rec.WorkflowName,
		"state":           rec.State,
		"steps":           string(steps),
		"result":          string(rec.Result),
		"error":           rec.Error,
		"error_code":      string(rec.ErrorCode),
		"total_steps":     rec.Metrics.TotalSteps,
		"completed_steps": rec.Metrics.CompletedSteps,
		"failed_steps":    rec.Metrics.FailedSteps,
		"created_at":      rec.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":      rec.UpdatedAt.Format(time.RFC3339Nano),
	}
	if rec.StartedAt != nil {
		m["started_at"] = rec.StartedAt.Format(time.RFC3339Nano)
	}
	if rec.CompletedAt != nil {
		m["completed_at"] = rec.CompletedAt.Format(time.RFC3339Nano)
	}
	return m, nil
}

func mapToRecord(m map[string]string) (*execution.Record, error) {
	execID, err := id.ParseExecutionID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("parse execution id %q: %w", m["id"], err)
	}
	rec := &execution.Record{
		ID:           execID,
		WorkflowID:   m["workflow_id"],
		WorkflowName: m["workflow_name"],
		State:        m["state"],
		Error:        m["error"],
		ErrorCode:    execution.ErrorCode(m["error_code"]),
	}
	if v := m["result"]; v != "" {
		rec.Result = json.RawMessage(v)
	}
	if v := m["steps"]; v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &rec.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	rec.Metrics.TotalSteps, _ = strconv.Atoi(m["total_steps"])
	rec.Metrics.CompletedSteps, _ = strconv.Atoi(m["completed_steps"])
	rec.Metrics.FailedSteps, _ = strconv.Atoi(m["failed_steps"])
	rec.CreatedAt = parseTime(m["created_at"])
	rec.UpdatedAt = parseTime(m["updated_at"])
	if v := m["started_at"]; v != "" {
		t := parseTime(v)
		rec.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t := parseTime(v)
		rec.CompletedAt = &t
	}
	return rec, nil
}

func checkpointToMap(cp *execution.Checkpoint) (map[string]interface{}, error) {
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
	return map[string]interface{}{
		"id":              cp.ID.String(),
		"execution_id":    cp.ExecutionID.String(),
		"workflow_id":     cp.WorkflowID,
		"created_at":      cp.CreatedAt.Format(time.RFC3339Nano),
		"raw":             string(cp.Raw),
		"format":          cp.Format,
		"completed_steps": string(completed),
		"pending_steps":   string(pending),
		"step_results":    string(results),
	}, nil
}

func mapToCheckpoint(m map[string]string) (*execution.Checkpoint, error) {
	cpID, err := id.ParseCheckpointID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint id %q: %w", m["id"], err)
	}
	execID, err := id.ParseExecutionID(m["execution_id"])
	if err != nil {
		return nil, fmt.Errorf("parse execution id %q: %w", m["execution_id"], err)
	}
	cp := &execution.Checkpoint{
		ID:          cpID,
		ExecutionID: execID,
		WorkflowID:  m["workflow_id"],
		CreatedAt:   parseTime(m["created_at"]),
		Raw:         []byte(m["raw"]),
		Format:      m["format"],
	}
	if v := m["completed_steps"]; v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &cp.CompletedSteps); err != nil {
			return nil, fmt.Errorf("unmarshal completed steps: %w", err)
		}
	}
	if v := m["pending_steps"]; v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &cp.PendingSteps); err != nil {
			return nil, fmt.Errorf("unmarshal pending steps: %w", err)
		}
	}
	if v := m["step_results"]; v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &cp.StepResults); err != nil {
			return nil, fmt.Errorf("unmarshal step results: %w", err)
		}
	}
	return cp, nil
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}
