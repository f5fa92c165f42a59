// Package agent defines the execution interface the engine delegates step
// work to. The engine treats an agent as an opaque capability: given a
// task description and context, it produces a result or fails. Invokers
// are constructor-injected into the engine, never looked up through
// global state, so the core stays testable with fakes.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Request carries one step invocation to an agent.
type Request struct {
	// AgentID names the target executor.
	AgentID string

	// Task is the opaque instruction string from the step definition.
	Task string

	// Context carries the results of the step's dependencies, keyed by
	// step id.
	Context map[string]any
}

// Result is the opaque success payload of an agent invocation.
type Result struct {
	// Output is the agent's payload, a string or structured value.
	Output json.RawMessage `json:"output"`

	// Metadata carries optional agent-reported key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error is a structured agent failure with a message and optional code.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Error implements error.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("agent: [%s] %s", e.Code, e.Message)
	}
	return "agent: " + e.Message
}

// Invoker performs the actual unit of work for a step. Implementations
// must honor ctx cancellation and deadlines; the engine bounds every
// invocation attempt with the step's timeout.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a plain function to the Invoker interface.
type Func func(ctx context.Context, req Request) (*Result, error)

// Invoke implements Invoker.
func (f Func) Invoke(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// Registry routes invocations to per-agent invokers by agent id. It is a
// convenience Invoker for hosts that wire several distinct agents into
// one engine. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	invokers map[string]Invoker
	fallback Invoker
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{invokers: make(map[string]Invoker)}
}

// Register binds an invoker to an agent id, replacing any previous
// binding for the same id.
func (r *Registry) Register(agentID string, inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokers[agentID] = inv
}

// SetFallback sets the invoker used for agent ids with no explicit
// binding. Without a fallback, unknown ids fail the invocation.
func (r *Registry) SetFallback(inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = inv
}

// Invoke implements Invoker by routing on req.AgentID.
func (r *Registry) Invoke(ctx context.Context, req Request) (*Result, error) {
	r.mu.RLock()
	inv, ok := r.invokers[req.AgentID]
	if !ok {
		inv = r.fallback
	}
	r.mu.RUnlock()

	if inv == nil {
		return nil, &Error{Code: "unknown_agent", Message: fmt.Sprintf("no invoker registered for agent %q", req.AgentID)}
	}

	return inv.Invoke(ctx, req)
}
