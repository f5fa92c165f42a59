// Package graph builds the directed dependency graph of a workflow
// definition and computes its batched execution schedule.
//
// Cycle detection uses a three-color depth-first traversal. The schedule
// is computed by repeatedly peeling the frontier: batch k is every
// not-yet-scheduled step whose dependencies all live in batches < k. This
// greedily maximizes parallelism instead of producing one linear order;
// members of a batch are logically concurrent.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xraph/maestro/definition"
)

// Edge is a directed dependency edge: From must complete before To runs.
type Edge struct {
	From string
	To   string
}

// Graph is the derived dependency graph of a definition. It is computed
// per execution attempt and never persisted.
type Graph struct {
	// Nodes are the step ids in definition order.
	Nodes []string

	// Edges are the dependency edges (dependency -> dependent).
	Edges []Edge

	// Batches is the execution schedule: an ordered sequence of sets of
	// step ids whose dependencies are all satisfied by earlier batches.
	Batches [][]string
}

// Batch returns the step ids of batch k, or nil if k is out of range.
func (g *Graph) Batch(k int) []string {
	if k < 0 || k >= len(g.Batches) {
		return nil
	}
	return g.Batches[k]
}

// CycleError reports a circular dependency. It is fatal for the
// execution; Steps lists the ids involved in the detected cycle.
type CycleError struct {
	Steps []string
}

// Error implements error.
func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: dependency cycle involving steps [%s]", strings.Join(e.Steps, ", "))
}

// Build constructs the dependency graph for the given steps and computes
// the batched execution order. The step list must already be validated:
// Build assumes ids are unique and dependencies resolve. It fails with a
// *CycleError when the dependencies are circular.
func Build(steps []definition.Step) (*Graph, error) {
	g := &Graph{Nodes: make([]string, 0, len(steps))}

	deps := make(map[string][]string, len(steps))
	for i := range steps {
		s := &steps[i]
		g.Nodes = append(g.Nodes, s.ID)
		deps[s.ID] = s.Dependencies
		for _, dep := range s.Dependencies {
			g.Edges = append(g.Edges, Edge{From: dep, To: s.ID})
		}
	}

	if cycle := findCycle(g.Nodes, deps); len(cycle) > 0 {
		return nil, &CycleError{Steps: cycle}
	}

	g.Batches = peelBatches(steps, deps)
	return g, nil
}

// Traversal colors for cycle detection.
const (
	white = iota // unvisited
	gray         // in progress
	black        // done
)

// findCycle runs a three-color DFS over the dependency relation and
// returns the ids on the first cycle found, sorted for stable reporting.
// Returns nil when the graph is acyclic.
func findCycle(nodes []string, deps map[string][]string) []string {
	color := make(map[string]int, len(nodes))
	var stack []string

	var visit func(n string) []string
	visit = func(n string) []string {
		color[n] = gray
		stack = append(stack, n)

		for _, dep := range deps[n] {
			switch color[dep] {
			case gray:
				// Found a back edge: the cycle is the stack suffix
				// starting at dep.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						cycle := append([]string(nil), stack[i:]...)
						sort.Strings(cycle)
						return cycle
					}
				}
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}

	for _, n := range nodes {
		if color[n] == white {
			if cycle := visit(n); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// peelBatches computes the batched topological order. Steps are
// considered in definition order within each pass, so the schedule is
// deterministic for a given definition.
func peelBatches(steps []definition.Step, deps map[string][]string) [][]string {
	scheduled := make(map[string]struct{}, len(steps))
	var batches [][]string

	for len(scheduled) < len(steps) {
		var batch []string
		for i := range steps {
			s := &steps[i]
			if _, done := scheduled[s.ID]; done {
				continue
			}
			ready := true
			for _, dep := range deps[s.ID] {
				if _, done := scheduled[dep]; !done {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, s.ID)
			}
		}

		// An empty frontier with unscheduled steps left would mean a
		// cycle, which findCycle already ruled out.
		for _, id := range batch {
			scheduled[id] = struct{}{}
		}
		batches = append(batches, batch)
	}

	return batches
}
