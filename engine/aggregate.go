package engine

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/maestro/machine"
)

// aggregateResult is the shape of the workflow-level output: per-step
// agent outputs keyed by step id, plus the overall counters. Map keys
// are marshalled in sorted order, so aggregating the same step results
// always yields byte-identical output.
type aggregateResult struct {
	WorkflowID string                     `json:"workflowId"`
	Steps      map[string]json.RawMessage `json:"steps"`
	Completed  int                        `json:"completedSteps"`
	Failed     int                        `json:"failedSteps"`
	Total      int                        `json:"totalSteps"`
}

// aggregate folds the settled step results into the workflow result.
// It is deterministic and idempotent over the same context.
func aggregate(mctx *machine.Context) ([]byte, error) {
	res := aggregateResult{
		Steps:     make(map[string]json.RawMessage, len(mctx.Results)),
		Completed: mctx.Metrics.CompletedSteps,
		Failed:    mctx.Metrics.FailedSteps,
		Total:     mctx.Metrics.TotalSteps,
	}
	if mctx.Workflow != nil {
		res.WorkflowID = mctx.Workflow.ID
	}
	for stepID, out := range mctx.Results {
		res.Steps[stepID] = out
	}

	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("aggregate results: %w", err)
	}
	return data, nil
}
