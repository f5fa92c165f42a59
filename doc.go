// Package maestro provides a declarative, multi-step workflow orchestration
// engine. Given a workflow definition (YAML or JSON) of named steps with
// inter-step dependencies, the engine resolves execution order, runs
// independent steps concurrently, persists resumable progress as
// checkpoints, and aggregates step results — delegating the actual unit of
// work to an injected agent invoker.
//
// Maestro is a library, not a service. Configure a store and an agent
// invoker, then run definitions through the engine:
//
//	eng, err := engine.New(memory.New(), myInvoker)
//	rec, err := eng.Run(ctx, rawYAML, definition.FormatYAML)
//
// # Architecture
//
// The core is a deterministic state machine (package machine): every other
// component only emits events into it, and it alone decides transition
// legality and the resulting execution context. Around it sit the
// definition parser/validator (package definition), the dependency graph
// builder (package graph), the batch step executor (package executor), the
// checkpoint manager (package checkpoint), and the result aggregator, all
// wired together by package engine.
//
// Persistence follows a composable store pattern: package execution defines
// the store interface, and store/memory, store/bun (PostgreSQL), and
// store/redis implement it.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package maestro
