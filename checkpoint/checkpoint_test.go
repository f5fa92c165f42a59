package checkpoint_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/checkpoint"
	"github.com/xraph/maestro/definition"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/graph"
	"github.com/xraph/maestro/id"
	"github.com/xraph/maestro/machine"
	"github.com/xraph/maestro/store/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const defYAML = `
id: wf-cp
name: Checkpointed
steps:
  - id: a
    agentId: agent
    task: first
  - id: b
    agentId: agent
    task: second
    dependencies: [a]
`

// runningContext builds an execution context with step a completed and
// step b pending, positioned at the barrier after batch 0.
func runningContext(t *testing.T) *machine.Context {
	t.Helper()

	wf, err := definition.Parse([]byte(defYAML), definition.FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	g, err := graph.Build(wf.Steps)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	m := machine.New(id.NewExecutionID(), quietLogger())
	events := []machine.Event{
		machine.Initiate{Raw: []byte(defYAML), Format: definition.FormatYAML},
		machine.Parsed{Workflow: wf},
		machine.Validated{},
		machine.GraphBuilt{Graph: g},
		machine.Scheduled{},
		machine.StepCompleted{StepID: "a", Result: nil, Attempts: 1},
		machine.BatchCompleted{},
	}
	for _, ev := range events {
		if err := m.Apply(ev); err != nil {
			t.Fatalf("Apply(%s): %v", ev.Name(), err)
		}
	}
	mctx := m.Context()
	mctx.Results["a"] = json.RawMessage(`{"done":true}`)
	return mctx
}

func TestCreateAndRestoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.New()
	mgr := checkpoint.NewManager(store, 10, quietLogger())

	mctx := runningContext(t)
	cp, err := mgr.Create(ctx, mctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cp.WorkflowID != "wf-cp" {
		t.Errorf("WorkflowID = %q, want wf-cp", cp.WorkflowID)
	}
	if len(cp.CompletedSteps) != 1 || cp.CompletedSteps[0] != "a" {
		t.Errorf("CompletedSteps = %v, want [a]", cp.CompletedSteps)
	}
	if len(cp.PendingSteps) != 1 || cp.PendingSteps[0] != "b" {
		t.Errorf("PendingSteps = %v, want [b]", cp.PendingSteps)
	}

	loaded, err := mgr.Get(ctx, cp.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	restored, err := mgr.Restore(id.NewExecutionID(), loaded)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := restored.Step("a").Status; got != machine.StatusCompleted {
		t.Errorf("step a status = %s, want %s", got, machine.StatusCompleted)
	}
	if got := restored.Step("b").Status; got != machine.StatusPending {
		t.Errorf("step b status = %s, want %s", got, machine.StatusPending)
	}
	if string(restored.Results["a"]) != `{"done":true}` {
		t.Errorf("restored result a = %s", restored.Results["a"])
	}
	// Resume at the batch containing b.
	if restored.BatchIndex != 1 {
		t.Errorf("BatchIndex = %d, want 1", restored.BatchIndex)
	}
	if restored.Metrics.CompletedSteps != 1 {
		t.Errorf("CompletedSteps = %d, want 1", restored.Metrics.CompletedSteps)
	}
}

func TestCreateSnapshotsAreIsolatedFromLaterProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mgr := checkpoint.NewManager(memory.New(), 10, quietLogger())

	mctx := runningContext(t)
	cp, err := mgr.Create(ctx, mctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The execution moves on after the snapshot: step b completes.
	mctx.Results["b"] = json.RawMessage(`{"late":true}`)
	mctx.Results["a"] = json.RawMessage(`{"rewritten":true}`)

	if _, ok := cp.StepResults["b"]; ok {
		t.Error("checkpoint picked up a result settled after Create")
	}
	if string(cp.StepResults["a"]) != `{"done":true}` {
		t.Errorf("checkpoint result a = %s, want the snapshotted value", cp.StepResults["a"])
	}
	if len(cp.CompletedSteps) != 1 || cp.CompletedSteps[0] != "a" {
		t.Errorf("CompletedSteps = %v, want [a]", cp.CompletedSteps)
	}
}

func TestRestoreUnknownStepIsCorrupt(t *testing.T) {
	t.Parallel()
	mgr := checkpoint.NewManager(memory.New(), 10, quietLogger())

	cp := &execution.Checkpoint{
		ID:             id.NewCheckpointID(),
		ExecutionID:    id.NewExecutionID(),
		Raw:            []byte(defYAML),
		Format:         "yaml",
		CompletedSteps: []string{"ghost"},
	}
	_, err := mgr.Restore(id.NewExecutionID(), cp)
	if !errors.Is(err, maestro.ErrCheckpointCorrupt) {
		t.Fatalf("error = %v, want ErrCheckpointCorrupt", err)
	}
}

func TestRestoreUnparseableDefinitionIsCorrupt(t *testing.T) {
	t.Parallel()
	mgr := checkpoint.NewManager(memory.New(), 10, quietLogger())

	cp := &execution.Checkpoint{
		ID:          id.NewCheckpointID(),
		ExecutionID: id.NewExecutionID(),
		Raw:         []byte("{{{"),
		Format:      "json",
	}
	_, err := mgr.Restore(id.NewExecutionID(), cp)
	if !errors.Is(err, maestro.ErrCheckpointCorrupt) {
		t.Fatalf("error = %v, want ErrCheckpointCorrupt", err)
	}

	cp.Format = "toml"
	_, err = mgr.Restore(id.NewExecutionID(), cp)
	if !errors.Is(err, maestro.ErrCheckpointCorrupt) {
		t.Fatalf("error = %v, want ErrCheckpointCorrupt for bad format", err)
	}
}

func TestCreatePrunesBeyondRetention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.New()
	mgr := checkpoint.NewManager(store, 2, quietLogger())

	mctx := runningContext(t)
	var last *execution.Checkpoint
	for i := 0; i < 5; i++ {
		cp, err := mgr.Create(ctx, mctx)
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		last = cp
	}

	cps, err := store.ListCheckpoints(ctx, mctx.ExecutionID)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(cps) != 2 {
		t.Fatalf("len(checkpoints) = %d after prune, want 2", len(cps))
	}
	// The newest checkpoint always survives.
	found := false
	for _, cp := range cps {
		if cp.ID.String() == last.ID.String() {
			found = true
		}
	}
	if !found {
		t.Error("newest checkpoint pruned")
	}
}
