package graph_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/xraph/maestro/definition"
	"github.com/xraph/maestro/graph"
)

func step(id string, deps ...string) definition.Step {
	return definition.Step{ID: id, AgentID: "agent", Task: "task", Dependencies: deps}
}

func TestBuildBatches(t *testing.T) {
	t.Parallel()

	// a and b are independent; c depends on both.
	g, err := graph.Build([]definition.Step{step("a"), step("b"), step("c", "a", "b")})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	want := [][]string{{"a", "b"}, {"c"}}
	if !reflect.DeepEqual(g.Batches, want) {
		t.Errorf("Batches = %v, want %v", g.Batches, want)
	}
	if len(g.Nodes) != 3 {
		t.Errorf("len(Nodes) = %d, want 3", len(g.Nodes))
	}
	if len(g.Edges) != 2 {
		t.Errorf("len(Edges) = %d, want 2", len(g.Edges))
	}
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	steps := []definition.Step{
		step("d", "b", "c"),
		step("b", "a"),
		step("c", "a"),
		step("a"),
	}
	first, err := graph.Build(steps)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		g, err := graph.Build(steps)
		if err != nil {
			t.Fatalf("Build returned error: %v", err)
		}
		if !reflect.DeepEqual(g.Batches, first.Batches) {
			t.Fatalf("run %d: Batches = %v, want %v", i, g.Batches, first.Batches)
		}
	}
	// Members of a batch follow definition order.
	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if !reflect.DeepEqual(first.Batches, want) {
		t.Errorf("Batches = %v, want %v", first.Batches, want)
	}
}

func TestBuildChain(t *testing.T) {
	t.Parallel()

	g, err := graph.Build([]definition.Step{step("a"), step("b", "a"), step("c", "b")})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := [][]string{{"a"}, {"b"}, {"c"}}
	if !reflect.DeepEqual(g.Batches, want) {
		t.Errorf("Batches = %v, want %v", g.Batches, want)
	}
}

func TestBuildCycle(t *testing.T) {
	t.Parallel()

	_, err := graph.Build([]definition.Step{step("a", "b"), step("b", "a"), step("c")})

	var cycleErr *graph.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("error = %v (%T), want *CycleError", err, err)
	}
	want := []string{"a", "b"}
	if !reflect.DeepEqual(cycleErr.Steps, want) {
		t.Errorf("cycle Steps = %v, want %v", cycleErr.Steps, want)
	}
}

func TestBatchOutOfRange(t *testing.T) {
	t.Parallel()

	g, err := graph.Build([]definition.Step{step("a")})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if got := g.Batch(-1); got != nil {
		t.Errorf("Batch(-1) = %v, want nil", got)
	}
	if got := g.Batch(1); got != nil {
		t.Errorf("Batch(1) = %v, want nil", got)
	}
	if got := g.Batch(0); len(got) != 1 || got[0] != "a" {
		t.Errorf("Batch(0) = %v, want [a]", got)
	}
}
