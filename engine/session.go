package engine

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/hook"
	"github.com/xraph/maestro/id"
	"github.com/xraph/maestro/machine"
)

// session is the in-memory handle for one running execution. It
// serializes every machine mutation behind its mutex, so the machine
// itself stays single-threaded while executor goroutines and control
// calls (pause, resume, cancel) race against each other.
type session struct {
	execID id.ExecutionID

	mu      sync.Mutex
	resumed *sync.Cond
	m       *machine.Machine
	rec     *execution.Record

	// cancel aborts the context the batch executor runs under.
	cancel context.CancelFunc

	hooks   *hook.Registry
	hookCtx context.Context
}

func newSession(execID id.ExecutionID, m *machine.Machine, rec *execution.Record, hooks *hook.Registry, hookCtx context.Context, cancel context.CancelFunc) *session {
	s := &session{
		execID:  execID,
		m:       m,
		rec:     rec,
		cancel:  cancel,
		hooks:   hooks,
		hookCtx: hookCtx,
	}
	s.resumed = sync.NewCond(&s.mu)
	return s
}

// Apply is the executor's sink: it forwards step events into the
// machine under the session lock and fans out step hooks.
func (s *session) Apply(ev machine.Event) error {
	s.mu.Lock()
	err := s.m.Apply(ev)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	switch ev := ev.(type) {
	case machine.StepCompleted:
		s.hooks.EmitStepCompleted(s.hookCtx, s.rec, ev.StepID, s.stepElapsed(ev.StepID))
	case machine.StepFailed:
		s.hooks.EmitStepFailed(s.hookCtx, s.rec, ev.StepID, ev.Err)
	}
	return nil
}

// apply runs a machine transition under the session lock.
func (s *session) apply(ev machine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Apply(ev)
}

// state reads the machine state under the session lock.
func (s *session) state() machine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.State()
}

// pause blocks the next batch. In-flight invocations settle normally.
func (s *session) pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.m.Apply(machine.Pause{}); err != nil {
		return err
	}
	s.hooks.EmitExecutionPaused(s.hookCtx, s.rec)
	return nil
}

// resume unblocks a paused execution and wakes the barrier waiter.
func (s *session) resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.m.Apply(machine.Resume{}); err != nil {
		return err
	}
	s.resumed.Broadcast()
	s.hooks.EmitExecutionResumed(s.hookCtx, s.rec)
	return nil
}

// cancelExecution moves the machine to its cancelled terminal state,
// aborts in-flight invocations, and wakes the barrier waiter.
func (s *session) cancelExecution() error {
	s.mu.Lock()
	if err := s.m.Apply(machine.Cancel{}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.resumed.Broadcast()
	s.mu.Unlock()

	s.cancel()
	s.hooks.EmitExecutionCancelled(s.hookCtx, s.rec)
	return nil
}

// awaitResume blocks while the execution is paused. It returns an error
// only when the execution was cancelled while waiting.
func (s *session) awaitResume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.m.State() == machine.StatePaused {
		s.resumed.Wait()
	}
	if s.m.State() == machine.StateCancelled {
		return maestro.ErrExecutionFrozen
	}
	return nil
}

// applyAtBarrier waits out a pause and applies ev inside the same
// critical section, so a pause or cancel cannot land between the wait
// and the apply. Returns ErrExecutionFrozen when the execution was
// cancelled before the event could be applied.
func (s *session) applyAtBarrier(ev machine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.m.State() == machine.StatePaused {
		s.resumed.Wait()
	}
	if s.m.State() == machine.StateCancelled {
		return maestro.ErrExecutionFrozen
	}
	return s.m.Apply(ev)
}

// batchIndex reads the current batch index under the session lock.
func (s *session) batchIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Context().BatchIndex
}

// sync refreshes the record from the machine context.
func (s *session) sync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	syncRecord(s.rec, s.m)
}

func (s *session) stepElapsed(stepID string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m.Context().Step(stepID)
	if st == nil || st.StartedAt == nil || st.CompletedAt == nil {
		return 0
	}
	return st.CompletedAt.Sub(*st.StartedAt)
}
