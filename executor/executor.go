// Package executor runs one batch of workflow steps at a time:
// fork-join concurrency inside a batch, a hard barrier between batches.
// Retries, per-attempt timeouts, and rate limiting all live here; the
// state machine only sees settled outcomes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/agent"
	"github.com/xraph/maestro/backoff"
	"github.com/xraph/maestro/definition"
	"github.com/xraph/maestro/machine"
)

// DefaultStepTimeout bounds a single agent invocation when neither the
// step nor the engine configures one.
const DefaultStepTimeout = time.Minute

// Sink receives step lifecycle events as they happen. The executor
// calls it from multiple goroutines; implementations must serialize.
type Sink interface {
	Apply(ev machine.Event) error
}

// dispatch pairs a runnable step with the agent request built for it
// before the batch forked.
type dispatch struct {
	step *definition.Step
	req  agent.Request
}

// Executor dispatches the steps of one batch to their agents.
type Executor struct {
	invoker agent.Invoker
	limiter *rate.Limiter
	backoff backoff.Strategy
	timeout time.Duration
	policy  maestro.FailurePolicy
	logger  *slog.Logger
}

// Config tunes an Executor. Zero values fall back to defaults.
type Config struct {
	// Limiter throttles agent invocations across the whole batch. Nil
	// means unlimited.
	Limiter *rate.Limiter

	// Backoff spaces retry attempts of a failed step.
	Backoff backoff.Strategy

	// StepTimeout bounds one attempt when the step defines no timeout.
	StepTimeout time.Duration

	// Policy decides whether one failed step aborts the batch.
	Policy maestro.FailurePolicy
}

// New creates an executor for the given invoker.
func New(invoker agent.Invoker, cfg Config, logger *slog.Logger) *Executor {
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.DefaultStrategy()
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	if !cfg.Policy.Valid() {
		cfg.Policy = maestro.FailFast
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		invoker: invoker,
		limiter: cfg.Limiter,
		backoff: cfg.Backoff,
		timeout: cfg.StepTimeout,
		policy:  cfg.Policy,
		logger:  logger,
	}
}

// ExecuteBatch runs every dispatchable step of the batch and waits for
// all of them to settle. Under fail-fast the first failure cancels the
// remaining invocations (which still settle before return) and is
// returned; under best-effort all steps run and the error is nil unless
// the surrounding context was cancelled.
//
// Steps whose dependencies have failed are not dispatched and keep
// their pending status.
func (e *Executor) ExecuteBatch(ctx context.Context, mctx *machine.Context, batch []string, sink Sink) error {
	if e.invoker == nil {
		return maestro.ErrNoInvoker
	}

	runnable := make([]dispatch, 0, len(batch))
	for _, stepID := range batch {
		step := mctx.Workflow.Step(stepID)
		if step == nil {
			return fmt.Errorf("executor: step %q not in definition", stepID)
		}
		if st := mctx.Step(stepID); st != nil && st.Status == machine.StatusCompleted {
			// Restored executions re-enter a batch that is partially done.
			continue
		}
		if e.depsFailed(mctx, step) {
			e.logger.Debug("skipping step with failed dependency",
				slog.String("execution_id", mctx.ExecutionID.String()),
				slog.String("step_id", stepID),
			)
			continue
		}
		// Dependencies are all settled at the batch boundary, so their
		// results are snapshotted here, before sibling goroutines start
		// mutating the shared results map through their settlements.
		runnable = append(runnable, dispatch{step: step, req: buildRequest(mctx, step)})
	}
	if len(runnable) == 0 {
		return nil
	}

	if e.policy == maestro.FailFast {
		g, gctx := errgroup.WithContext(ctx)
		for _, d := range runnable {
			d := d
			g.Go(func() error {
				return e.runStep(gctx, mctx, d, sink)
			})
		}
		return g.Wait()
	}

	// Best effort: every step runs to its own conclusion.
	var wg sync.WaitGroup
	for _, d := range runnable {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.runStep(ctx, mctx, d, sink)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// buildRequest assembles the agent request for a step, copying its
// dependency results out of the execution context.
func buildRequest(mctx *machine.Context, step *definition.Step) agent.Request {
	reqCtx := make(map[string]any, len(step.Dependencies))
	for _, dep := range step.Dependencies {
		if out, ok := mctx.Results[dep]; ok {
			reqCtx[dep] = out
		}
	}
	return agent.Request{
		AgentID: step.AgentID,
		Task:    step.Task,
		Context: reqCtx,
	}
}

// runStep drives one step through its retry loop and settles it exactly
// once through the sink.
func (e *Executor) runStep(ctx context.Context, mctx *machine.Context, d dispatch, sink Sink) error {
	step, req := d.step, d.req
	if err := sink.Apply(machine.StepStarted{StepID: step.ID}); err != nil {
		return err
	}

	timeout := step.Timeout()
	if timeout <= 0 {
		timeout = e.timeout
	}
	maxAttempts := step.Retries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return e.settle(sink, step.ID, nil, err, attempt)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := e.invoker.Invoke(attemptCtx, req)
		cancel()

		if err == nil {
			return e.settle(sink, step.ID, res, nil, attempt)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: step %s after %s", maestro.ErrStepTimeout, step.ID, timeout)
		}
		lastErr = err

		// A cancelled parent context is not retryable.
		if ctx.Err() != nil {
			return e.settle(sink, step.ID, nil, lastErr, attempt)
		}

		e.logger.Warn("step attempt failed",
			slog.String("execution_id", mctx.ExecutionID.String()),
			slog.String("step_id", step.ID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Any("error", err),
		)

		if attempt < maxAttempts {
			if err := e.sleep(ctx, e.backoff.Delay(attempt)); err != nil {
				return e.settle(sink, step.ID, nil, lastErr, attempt)
			}
		}
	}

	lastErr = fmt.Errorf("%w: step %s failed %d attempts: %w",
		maestro.ErrMaxRetriesExceeded, step.ID, maxAttempts, lastErr)
	return e.settle(sink, step.ID, nil, lastErr, maxAttempts)
}

// settle emits the terminal step event and returns the step error so a
// fail-fast group cancels its siblings.
func (e *Executor) settle(sink Sink, stepID string, res *agent.Result, err error, attempts int) error {
	if err == nil {
		if applyErr := sink.Apply(machine.StepCompleted{StepID: stepID, Result: res, Attempts: attempts}); applyErr != nil {
			return applyErr
		}
		return nil
	}
	if applyErr := sink.Apply(machine.StepFailed{StepID: stepID, Err: err, Attempts: attempts}); applyErr != nil {
		return applyErr
	}
	return err
}

func (e *Executor) depsFailed(mctx *machine.Context, step *definition.Step) bool {
	for _, dep := range step.Dependencies {
		if st := mctx.Step(dep); st != nil && st.Status == machine.StatusFailed {
			return true
		}
	}
	return false
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
