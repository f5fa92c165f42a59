// Package memory provides a fully in-memory store implementation,
// intended for unit testing and development.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/id"
	"github.com/xraph/maestro/store"
)

// Ensure Store implements the composite store interface at compile time.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access.
type Store struct {
	mu sync.RWMutex

	executions  map[string]*execution.Record
	checkpoints map[string]*execution.Checkpoint

	// order preserves execution creation order for listing.
	order []string
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		executions:  make(map[string]*execution.Record),
		checkpoints: make(map[string]*execution.Checkpoint),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Execution records
// ──────────────────────────────────────────────────

// CreateExecution persists a new record.
func (m *Store) CreateExecution(_ context.Context, rec *execution.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.ID.String()
	if _, exists := m.executions[key]; exists {
		return maestro.ErrExecutionExists
	}
	cp := cloneRecord(rec)
	m.executions[key] = cp
	m.order = append(m.order, key)
	return nil
}

// GetExecution loads a record by id.
func (m *Store) GetExecution(_ context.Context, execID id.ExecutionID) (*execution.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.executions[execID.String()]
	if !ok {
		return nil, maestro.ErrExecutionNotFound
	}
	return cloneRecord(rec), nil
}

// UpdateExecution overwrites an existing record.
func (m *Store) UpdateExecution(_ context.Context, rec *execution.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.ID.String()
	if _, ok := m.executions[key]; !ok {
		return maestro.ErrExecutionNotFound
	}
	m.executions[key] = cloneRecord(rec)
	return nil
}

// ListExecutions returns records newest first, filtered and paged per
// opts.
func (m *Store) ListExecutions(_ context.Context, opts execution.ListOpts) ([]*execution.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*execution.Record, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		rec := m.executions[m.order[i]]
		if opts.State != "" && rec.State != opts.State {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	return page(out, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Checkpoints
// ──────────────────────────────────────────────────

// SaveCheckpoint persists a checkpoint. Checkpoints are write-once.
func (m *Store) SaveCheckpoint(_ context.Context, cp *execution.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := cp.ID.String()
	if _, exists := m.checkpoints[key]; exists {
		return fmt.Errorf("maestro/memory: save checkpoint: duplicate id %s", key)
	}
	c := cloneCheckpoint(cp)
	m.checkpoints[key] = c
	return nil
}

// GetCheckpoint loads a checkpoint by id.
func (m *Store) GetCheckpoint(_ context.Context, cpID id.CheckpointID) (*execution.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[cpID.String()]
	if !ok {
		return nil, maestro.ErrCheckpointNotFound
	}
	return cloneCheckpoint(cp), nil
}

// ListCheckpoints returns the execution's checkpoints, oldest first.
func (m *Store) ListCheckpoints(_ context.Context, execID id.ExecutionID) ([]*execution.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.checkpointsFor(execID), nil
}

// PruneCheckpoints deletes all but the newest keep checkpoints.
func (m *Store) PruneCheckpoints(_ context.Context, execID id.ExecutionID, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cps := m.checkpointsFor(execID)
	if keep < 0 {
		keep = 0
	}
	if len(cps) <= keep {
		return 0, nil
	}
	doomed := cps[:len(cps)-keep]
	for _, cp := range doomed {
		delete(m.checkpoints, cp.ID.String())
	}
	return len(doomed), nil
}

// checkpointsFor returns copies of the execution's checkpoints sorted
// oldest first. Callers hold at least the read lock.
func (m *Store) checkpointsFor(execID id.ExecutionID) []*execution.Checkpoint {
	var out []*execution.Checkpoint
	for _, cp := range m.checkpoints {
		if cp.ExecutionID.String() == execID.String() {
			out = append(out, cloneCheckpoint(cp))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func page(recs []*execution.Record, offset, limit int) []*execution.Record {
	if offset > 0 {
		if offset >= len(recs) {
			return nil
		}
		recs = recs[offset:]
	}
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}

func cloneRecord(rec *execution.Record) *execution.Record {
	cp := *rec
	cp.Steps = append([]execution.StepRecord(nil), rec.Steps...)
	return &cp
}

func cloneCheckpoint(cp *execution.Checkpoint) *execution.Checkpoint {
	c := *cp
	c.CompletedSteps = append([]string(nil), cp.CompletedSteps...)
	c.PendingSteps = append([]string(nil), cp.PendingSteps...)
	if cp.StepResults != nil {
		c.StepResults = make(map[string]json.RawMessage, len(cp.StepResults))
		for k, v := range cp.StepResults {
			c.StepResults[k] = v
		}
	}
	return &c
}
