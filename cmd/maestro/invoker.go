package main

import (
	"context"
	"encoding/json"

	"github.com/xraph/maestro/agent"
)

// echoInvoker is the built-in agent used by the CLI: it echoes the task
// back as the step output. It makes the CLI usable for dry-running
// definitions end to end without any external agent infrastructure.
type echoInvoker struct{}

func (echoInvoker) Invoke(_ context.Context, req agent.Request) (*agent.Result, error) {
	out, err := json.Marshal(map[string]string{
		"agentId": req.AgentID,
		"task":    req.Task,
	})
	if err != nil {
		return nil, err
	}
	return &agent.Result{Output: out}, nil
}
