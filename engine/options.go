package engine

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/backoff"
	"github.com/xraph/maestro/hook"
)

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine and its subsystems.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig replaces the whole engine configuration.
func WithConfig(cfg maestro.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithFailurePolicy sets how a failed step affects the rest of the
// execution.
func WithFailurePolicy(p maestro.FailurePolicy) Option {
	return func(e *Engine) {
		e.cfg.FailurePolicy = p
	}
}

// WithBackoff sets the retry backoff strategy for step attempts.
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) {
		e.strategy = b
	}
}

// WithRateLimiter throttles agent invocations across all steps of an
// execution.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithExtension registers a lifecycle hook extension. Extensions are
// notified in registration order.
func WithExtension(ext hook.Extension) Option {
	return func(e *Engine) {
		e.pendingExts = append(e.pendingExts, ext)
	}
}
