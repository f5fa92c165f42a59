package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/agent"
	"github.com/xraph/maestro/backoff"
	"github.com/xraph/maestro/checkpoint"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/executor"
	"github.com/xraph/maestro/hook"
	"github.com/xraph/maestro/id"
)

// Engine orchestrates workflow executions end to end.
type Engine struct {
	store   execution.Store
	invoker agent.Invoker

	cfg      maestro.Config
	logger   *slog.Logger
	strategy backoff.Strategy
	limiter  *rate.Limiter

	hooks       *hook.Registry
	pendingExts []hook.Extension

	checkpoints *checkpoint.Manager
	exec        *executor.Executor

	mu     sync.Mutex
	active map[string]*session
}

// New creates an engine. The store persists records and checkpoints;
// the invoker dispatches step tasks to agents. Both are required.
func New(store execution.Store, invoker agent.Invoker, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, maestro.ErrNoStore
	}
	if invoker == nil {
		return nil, maestro.ErrNoInvoker
	}

	e := &Engine{
		store:   store,
		invoker: invoker,
		cfg:     maestro.DefaultConfig(),
		logger:  slog.Default(),
		active:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.strategy == nil {
		e.strategy = backoff.DefaultStrategy()
	}
	if e.limiter == nil && e.cfg.AgentRPS > 0 {
		burst := e.cfg.AgentBurst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(e.cfg.AgentRPS), burst)
	}

	e.hooks = hook.NewRegistry(e.logger)
	for _, ext := range e.pendingExts {
		e.hooks.Register(ext)
	}
	e.pendingExts = nil

	e.checkpoints = checkpoint.NewManager(store, e.cfg.CheckpointRetention, e.logger)
	e.exec = executor.New(invoker, executor.Config{
		Limiter:     e.limiter,
		Backoff:     e.strategy,
		StepTimeout: e.cfg.StepTimeout,
		Policy:      e.cfg.FailurePolicy,
	}, e.logger)

	return e, nil
}

// Hooks returns the extension registry.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// Get loads a persisted execution record.
func (e *Engine) Get(ctx context.Context, execID id.ExecutionID) (*execution.Record, error) {
	return e.store.GetExecution(ctx, execID)
}

// List returns persisted execution records per opts.
func (e *Engine) List(ctx context.Context, opts execution.ListOpts) ([]*execution.Record, error) {
	return e.store.ListExecutions(ctx, opts)
}

// Checkpoints returns the persisted checkpoints for an execution,
// oldest first.
func (e *Engine) Checkpoints(ctx context.Context, execID id.ExecutionID) ([]*execution.Checkpoint, error) {
	return e.store.ListCheckpoints(ctx, execID)
}

// Pause blocks the given execution from starting its next batch. Steps
// already in flight settle normally. Returns ErrExecutionNotFound if
// the execution is not running in this engine.
func (e *Engine) Pause(execID id.ExecutionID) error {
	sess := e.session(execID)
	if sess == nil {
		return maestro.ErrExecutionNotFound
	}
	return sess.pause()
}

// Resume unblocks a paused execution.
func (e *Engine) Resume(execID id.ExecutionID) error {
	sess := e.session(execID)
	if sess == nil {
		return maestro.ErrExecutionNotFound
	}
	return sess.resume()
}

// Cancel terminates a running execution. In-flight step invocations are
// cancelled through their context; settlements arriving afterwards are
// discarded.
func (e *Engine) Cancel(execID id.ExecutionID) error {
	sess := e.session(execID)
	if sess == nil {
		return maestro.ErrExecutionNotFound
	}
	return sess.cancelExecution()
}

// Shutdown notifies extensions. Running executions are not interrupted;
// cancel them first if required.
func (e *Engine) Shutdown(ctx context.Context) {
	e.hooks.EmitShutdown(ctx)
}

func (e *Engine) session(execID id.ExecutionID) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active[execID.String()]
}

func (e *Engine) register(sess *session) {
	e.mu.Lock()
	e.active[sess.execID.String()] = sess
	e.mu.Unlock()
}

func (e *Engine) unregister(sess *session) {
	e.mu.Lock()
	delete(e.active, sess.execID.String())
	e.mu.Unlock()
}
