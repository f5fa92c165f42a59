package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/xraph/maestro/agent"
)

func TestRegistryRoutesByAgentID(t *testing.T) {
	t.Parallel()

	reg := agent.NewRegistry()
	reg.Register("echo", agent.Func(func(_ context.Context, req agent.Request) (*agent.Result, error) {
		out, _ := json.Marshal(req.Task)
		return &agent.Result{Output: out}, nil
	}))

	res, err := reg.Invoke(context.Background(), agent.Request{AgentID: "echo", Task: "hi"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(res.Output) != `"hi"` {
		t.Errorf("Output = %s, want %q", res.Output, `"hi"`)
	}
}

func TestRegistryUnknownAgent(t *testing.T) {
	t.Parallel()

	reg := agent.NewRegistry()
	_, err := reg.Invoke(context.Background(), agent.Request{AgentID: "ghost"})

	var agentErr *agent.Error
	if !errors.As(err, &agentErr) {
		t.Fatalf("error = %v (%T), want *agent.Error", err, err)
	}
	if agentErr.Code != "unknown_agent" {
		t.Errorf("Code = %q, want unknown_agent", agentErr.Code)
	}
}

func TestRegistryFallback(t *testing.T) {
	t.Parallel()

	reg := agent.NewRegistry()
	reg.SetFallback(agent.Func(func(_ context.Context, _ agent.Request) (*agent.Result, error) {
		return &agent.Result{Output: json.RawMessage(`"fallback"`)}, nil
	}))

	res, err := reg.Invoke(context.Background(), agent.Request{AgentID: "anything"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(res.Output) != `"fallback"` {
		t.Errorf("Output = %s, want fallback", res.Output)
	}
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	withCode := &agent.Error{Code: "rate_limited", Message: "slow down"}
	if got := withCode.Error(); got != "agent: [rate_limited] slow down" {
		t.Errorf("Error() = %q", got)
	}
	bare := &agent.Error{Message: "oops"}
	if got := bare.Error(); got != "agent: oops" {
		t.Errorf("Error() = %q", got)
	}
}
