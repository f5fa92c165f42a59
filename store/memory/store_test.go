package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/id"
	"github.com/xraph/maestro/store"
)

func newRecord(workflowID, state string) *execution.Record {
	return &execution.Record{
		Entity:     maestro.NewEntity(),
		ID:         id.NewExecutionID(),
		WorkflowID: workflowID,
		State:      state,
		Steps: []execution.StepRecord{
			{ID: "a", AgentID: "agent", Status: "completed", Result: json.RawMessage(`{"ok":true}`)},
		},
		Metrics: execution.Metrics{TotalSteps: 1, CompletedSteps: 1},
	}
}

func newCheckpoint(execID id.ExecutionID) *execution.Checkpoint {
	return &execution.Checkpoint{
		ID:             id.NewCheckpointID(),
		ExecutionID:    execID,
		WorkflowID:     "wf",
		CreatedAt:      time.Now().UTC(),
		Raw:            []byte("id: wf"),
		Format:         "yaml",
		CompletedSteps: []string{"a"},
		StepResults:    map[string]json.RawMessage{"a": json.RawMessage(`1`)},
	}
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	// Exercised through the composite interface the backends share.
	var s store.Store = New()
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestExecutionCRUD(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	rec := newRecord("wf", "executing")
	if err := s.CreateExecution(ctx, rec); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	if err := s.CreateExecution(ctx, rec); !errors.Is(err, maestro.ErrExecutionExists) {
		t.Fatalf("duplicate create error = %v, want ErrExecutionExists", err)
	}

	got, err := s.GetExecution(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.WorkflowID != "wf" || len(got.Steps) != 1 {
		t.Errorf("got = %+v", got)
	}

	// Stored copies are isolated from caller mutation.
	got.State = "mutated"
	again, _ := s.GetExecution(ctx, rec.ID)
	if again.State == "mutated" {
		t.Error("store returned a shared record")
	}

	rec.State = "completed"
	if err := s.UpdateExecution(ctx, rec); err != nil {
		t.Fatalf("UpdateExecution: %v", err)
	}
	updated, _ := s.GetExecution(ctx, rec.ID)
	if updated.State != "completed" {
		t.Errorf("State = %q after update, want completed", updated.State)
	}

	if _, err := s.GetExecution(ctx, id.NewExecutionID()); !errors.Is(err, maestro.ErrExecutionNotFound) {
		t.Errorf("missing get error = %v, want ErrExecutionNotFound", err)
	}
	if err := s.UpdateExecution(ctx, newRecord("wf", "idle")); !errors.Is(err, maestro.ErrExecutionNotFound) {
		t.Errorf("missing update error = %v, want ErrExecutionNotFound", err)
	}
}

func TestListExecutionsFilterAndPage(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.CreateExecution(ctx, newRecord("wf", "completed")); err != nil {
			t.Fatalf("CreateExecution: %v", err)
		}
	}
	if err := s.CreateExecution(ctx, newRecord("wf", "failed")); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	all, err := s.ListExecutions(ctx, execution.ListOpts{})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("len(all) = %d, want 4", len(all))
	}
	// Newest first: the failed record was created last.
	if all[0].State != "failed" {
		t.Errorf("all[0].State = %q, want failed", all[0].State)
	}

	completed, _ := s.ListExecutions(ctx, execution.ListOpts{State: "completed"})
	if len(completed) != 3 {
		t.Errorf("len(completed) = %d, want 3", len(completed))
	}

	paged, _ := s.ListExecutions(ctx, execution.ListOpts{Limit: 2, Offset: 1})
	if len(paged) != 2 {
		t.Errorf("len(paged) = %d, want 2", len(paged))
	}

	empty, _ := s.ListExecutions(ctx, execution.ListOpts{Offset: 100})
	if len(empty) != 0 {
		t.Errorf("len(empty) = %d, want 0", len(empty))
	}
}

func TestCheckpointCRUDAndPrune(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	execID := id.NewExecutionID()

	var ids []string
	for i := 0; i < 4; i++ {
		cp := newCheckpoint(execID)
		cp.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		if err := s.SaveCheckpoint(ctx, cp); err != nil {
			t.Fatalf("SaveCheckpoint #%d: %v", i, err)
		}
		ids = append(ids, cp.ID.String())
	}

	got, err := s.GetCheckpoint(ctx, id.MustParse(ids[0]))
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if string(got.StepResults["a"]) != "1" {
		t.Errorf("StepResults = %v", got.StepResults)
	}

	if _, err := s.GetCheckpoint(ctx, id.NewCheckpointID()); !errors.Is(err, maestro.ErrCheckpointNotFound) {
		t.Errorf("missing get error = %v, want ErrCheckpointNotFound", err)
	}

	cps, err := s.ListCheckpoints(ctx, execID)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(cps) != 4 {
		t.Fatalf("len(cps) = %d, want 4", len(cps))
	}
	// Oldest first.
	for i := 1; i < len(cps); i++ {
		if cps[i].CreatedAt.Before(cps[i-1].CreatedAt) {
			t.Errorf("checkpoints not sorted oldest first")
		}
	}

	pruned, err := s.PruneCheckpoints(ctx, execID, 2)
	if err != nil {
		t.Fatalf("PruneCheckpoints: %v", err)
	}
	if pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}
	remaining, _ := s.ListCheckpoints(ctx, execID)
	if len(remaining) != 2 {
		t.Errorf("len(remaining) = %d, want 2", len(remaining))
	}
	// The newest two survive.
	if remaining[1].ID.String() != ids[3] {
		t.Errorf("newest checkpoint missing after prune")
	}

	// Pruning below the retention count is a no-op.
	pruned, _ = s.PruneCheckpoints(ctx, execID, 10)
	if pruned != 0 {
		t.Errorf("pruned = %d on no-op, want 0", pruned)
	}
}

func TestSaveCheckpointIsWriteOnce(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	cp := newCheckpoint(id.NewExecutionID())
	if err := s.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if err := s.SaveCheckpoint(ctx, cp); err == nil {
		t.Fatal("second SaveCheckpoint with same id succeeded")
	}
}
