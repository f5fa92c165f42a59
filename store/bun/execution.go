package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/id"
)

// CreateExecution persists a new execution record.
func (s *Store) CreateExecution(ctx context.Context, rec *execution.Record) error {
	m, err := toExecutionModel(rec)
	if err != nil {
		return fmt.Errorf("maestro/bun: create execution: %w", err)
	}
	_, err = s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return maestro.ErrExecutionExists
		}
		return fmt.Errorf("maestro/bun: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves a record by id.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*execution.Record, error) {
	m := new(executionModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", execID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, maestro.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("maestro/bun: get execution: %w", err)
	}
	return fromExecutionModel(m)
}

// UpdateExecution overwrites an existing record.
func (s *Store) UpdateExecution(ctx context.Context, rec *execution.Record) error {
	m, err := toExecutionModel(rec)
	if err != nil {
		return fmt.Errorf("maestro/bun: update execution: %w", err)
	}
	res, err := s.db.NewUpdate().Model(m).
		WherePK().
		Set("updated_at = NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("maestro/bun: update execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return maestro.ErrExecutionNotFound
	}
	return nil
}

// ListExecutions returns records newest first, filtered and paged per
// opts.
func (s *Store) ListExecutions(ctx context.Context, opts execution.ListOpts) ([]*execution.Record, error) {
	var models []executionModel
	q := s.db.NewSelect().Model(&models).
		Order("created_at DESC", "id DESC")
	if opts.State != "" {
		q = q.Where("state = ?", opts.State)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("maestro/bun: list executions: %w", err)
	}

	recs := make([]*execution.Record, 0, len(models))
	for i := range models {
		rec, convErr := fromExecutionModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("maestro/bun: list convert: %w", convErr)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// SaveCheckpoint persists a checkpoint. Checkpoints are write-once.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *execution.Checkpoint) error {
	m, err := toCheckpointModel(cp)
	if err != nil {
		return fmt.Errorf("maestro/bun: save checkpoint: %w", err)
	}
	_, err = s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("maestro/bun: save checkpoint: duplicate id %s", cp.ID)
		}
		return fmt.Errorf("maestro/bun: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint by id.
func (s *Store) GetCheckpoint(ctx context.Context, cpID id.CheckpointID) (*execution.Checkpoint, error) {
	m := new(checkpointModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", cpID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, maestro.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("maestro/bun: get checkpoint: %w", err)
	}
	return fromCheckpointModel(m)
}

// ListCheckpoints returns the execution's checkpoints, oldest first.
func (s *Store) ListCheckpoints(ctx context.Context, execID id.ExecutionID) ([]*execution.Checkpoint, error) {
	var models []checkpointModel
	err := s.db.NewSelect().Model(&models).
		Where("execution_id = ?", execID.String()).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("maestro/bun: list checkpoints: %w", err)
	}

	cps := make([]*execution.Checkpoint, 0, len(models))
	for i := range models {
		cp, convErr := fromCheckpointModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("maestro/bun: list convert: %w", convErr)
		}
		cps = append(cps, cp)
	}
	return cps, nil
}

// PruneCheckpoints deletes all but the newest keep checkpoints for the
// execution.
func (s *Store) PruneCheckpoints(ctx context.Context, execID id.ExecutionID, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.NewRaw(`
		DELETE FROM maestro_checkpoints
		WHERE execution_id = ?
		  AND id NOT IN (
			SELECT id FROM maestro_checkpoints
			WHERE execution_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)`,
		execID.String(), execID.String(), keep,
	).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("maestro/bun: prune checkpoints: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
