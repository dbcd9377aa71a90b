// Package supervisor implements the generic rest_for_one restart-tree
// primitive spec §9 calls for ("the original relies on a runtime that
// supplies cheap isolated processes and restart trees. In the target, model
// each as a goroutine/task plus a message-channel mailbox; implement the
// rest_for_one policy explicitly with a small supervisor value that owns its
// children's cancellation handles and restarts them in order"), and
// AgentSupervisor (spec §4.8), the concrete three-child wiring over it.
//
// Grounded on the mailbox-goroutine actor idiom of
// runtime/agent/engine/inmem (a struct tracking running work plus done/crash
// channels) generalized from one-shot workflow runs to long-lived,
// restartable children.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"goa.design/agentcore/telemetry"
)

// ChildHandle is what a ChildSpec's Start returns: a running child plus the
// means to stop it cleanly and to detect an unexpected crash.
type ChildHandle struct {
	// Stop terminates the child. Called during an orderly Supervisor.Stop
	// or when restarting a later sibling; must not cause Crashed to close.
	Stop func()
	// Crashed is closed if the child terminates on its own, unexpectedly.
	// A child with no crash-detection of its own (e.g. nothing currently
	// monitors a vfs.VFS's internal goroutine for a panic) may return a
	// channel that is never closed; the supervisor is then a restart tree
	// in shape only for that child, with no live fault detection — a
	// documented limitation, not an oversight.
	Crashed <-chan struct{}
}

// ChildSpec names one restart-tree entry. Start must fully bring the child
// up before returning (or return the error that prevented it); it receives
// the supervisor's own lifetime context.
type ChildSpec struct {
	Name  string
	Start func(ctx context.Context) (ChildHandle, error)
}

// Supervisor runs a fixed, ordered list of children with the rest_for_one
// policy: a crashing child at index i causes children i+1..N to stop (in
// reverse order) and then i..N to restart (in order). An earlier child is
// never touched by a later child's crash.
type Supervisor struct {
	specs []ChildSpec
	log   telemetry.Logger

	mu       sync.Mutex
	ctx      context.Context
	handles  []ChildHandle
	watchers []context.CancelFunc
	stopping bool
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithLogger injects a telemetry.Logger. Defaults to telemetry.NoopLogger.
func WithLogger(l telemetry.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// New returns a Supervisor for specs, in restart order (leaves first).
func New(specs []ChildSpec, opts ...Option) *Supervisor {
	s := &Supervisor{specs: specs, log: telemetry.NoopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start brings up every child in order. If child i fails to start, children
// 0..i-1 are stopped in reverse order and the error is returned.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
	s.handles = make([]ChildHandle, len(s.specs))
	s.watchers = make([]context.CancelFunc, len(s.specs))

	for i, spec := range s.specs {
		h, err := spec.Start(ctx)
		if err != nil {
			s.stopFromLocked(i - 1)
			return fmt.Errorf("supervisor: start %q: %w", spec.Name, err)
		}
		s.handles[i] = h
		s.watchLocked(i)
	}
	return nil
}

// Stop terminates every child in reverse order and disables further
// restarts.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping = true
	s.stopFromLocked(len(s.handles) - 1)
}

// stopFromLocked stops handles[0..upto] in reverse order. Must be called
// with mu held.
func (s *Supervisor) stopFromLocked(upto int) {
	for j := upto; j >= 0; j-- {
		s.cancelWatcherLocked(j)
		if s.handles[j].Stop != nil {
			s.handles[j].Stop()
		}
	}
}

func (s *Supervisor) cancelWatcherLocked(i int) {
	if i < len(s.watchers) && s.watchers[i] != nil {
		s.watchers[i]()
		s.watchers[i] = nil
	}
}

// watchLocked spawns the goroutine that waits for handles[i] to crash and
// triggers a rest_for_one restart. Must be called with mu held.
func (s *Supervisor) watchLocked(i int) {
	watchCtx, cancel := context.WithCancel(s.ctx)
	s.watchers[i] = cancel
	crashed := s.handles[i].Crashed
	go func() {
		select {
		case <-crashed:
			s.onCrash(i)
		case <-watchCtx.Done():
		}
	}()
}

// onCrash implements the rest_for_one restart policy for a crash observed
// at index i.
func (s *Supervisor) onCrash(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return
	}
	s.log.Warn(context.Background(), "supervisor: child crashed, restarting", "name", s.specs[i].Name)

	// Children after i depend on i; stop them (they may already be dead)
	// before restarting i itself, then restart i..N in order.
	for j := len(s.handles) - 1; j > i; j-- {
		s.cancelWatcherLocked(j)
		if s.handles[j].Stop != nil {
			s.handles[j].Stop()
		}
	}
	for j := i; j < len(s.specs); j++ {
		h, err := s.specs[j].Start(s.ctx)
		if err != nil {
			s.log.Error(context.Background(), err, "supervisor: restart failed, subtree degraded", "name", s.specs[j].Name)
			return
		}
		s.handles[j] = h
		s.watchLocked(j)
	}
}
