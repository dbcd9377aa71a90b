// Package agentserver implements the long-lived per-agent process (spec
// §4.7): a single-threaded owner of an Agent's current State, serializing
// every public operation and running each turn as a cancellable background
// task so the process can still answer get_*/subscribe/cancel while a turn
// is in flight. Grounded on the teacher's engine/inmem actor shape (a
// mutex-guarded struct launching a goroutine per unit of work, tracked
// through a done channel) generalized from one-shot workflow runs to a
// long-lived, repeatedly-resumable process.
package agentserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"goa.design/agentcore/agent"
	"goa.design/agentcore/events"
	"goa.design/agentcore/hitl"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
	"goa.design/agentcore/telemetry"
)

// Status mirrors the state machine of spec §4.7.
type Status = events.Status

const (
	StatusIdle        = events.StatusIdle
	StatusRunning     = events.StatusRunning
	StatusInterrupted = events.StatusInterrupted
	StatusError       = events.StatusError
	StatusCancelled   = events.StatusCancelled
)

// ErrWrongStatus is returned when an operation's pre-condition on Status is
// not met (e.g. execute while already running).
var ErrWrongStatus = errors.New("agentserver: operation not valid in current status")

// SaveNewMessageFunc persists a completed LLM message for conversationID and
// returns the display-message(s) to broadcast as display_message_saved. A
// nil func disables persistence and the associated broadcast.
type SaveNewMessageFunc func(ctx context.Context, conversationID string, message model.Message) ([]any, error)

// Options configures a Server at construction time.
type Options struct {
	Bus                events.Bus
	Logger             telemetry.Logger
	InactivityTimeout  time.Duration // 0/negative disables the timer
	ShutdownDelay      time.Duration
	ConversationID     string
	SaveNewMessageFunc SaveNewMessageFunc
	// OnShutdown is invoked (in its own goroutine) when the inactivity timer
	// fires, after the shutdown_delay_ms wait and the agent_shutdown
	// broadcast; it is the hook the owning supervisor uses to stop the
	// whole agent subtree (spec §4.8).
	OnShutdown func(reason string)
}

// Server is the per-agent process described by spec §4.7. All exported
// methods are safe for concurrent use; they serialize through mu the same
// way the spec's "public operations (all serialized through the process)"
// requires.
type Server struct {
	mu sync.Mutex

	agent agent.Agent
	state state.State

	status        Status
	interruptData *hitl.InterruptData
	err           error

	lastActivityAt time.Time
	timer          *time.Timer

	// taskGen is bumped by beginTaskLocked every time a new task starts. A
	// task's own applyTaskResult only applies its outcome if the generation
	// it was launched with still matches s.taskGen, so a late-finishing task
	// (e.g. one blocked inside a tool call that never observes ctx
	// cancellation) can never clobber a newer task's result merely because
	// status no longer reads cancelled by the time it finishes — spec §5's
	// "subsequent task completion messages are ignored (matched by task
	// reference and dropped)".
	taskGen       uint64
	cancelCurrent context.CancelFunc

	// crashed is closed exactly once, the first time a task goroutine
	// recovers a panic, and is exposed via Crashed for an owning supervisor
	// to wire into a ChildHandle and restart the subtree (spec §4.8).
	crashed     chan struct{}
	crashedOnce sync.Once

	opts Options
	log  telemetry.Logger
	bus  events.Bus
}

// New constructs an idle Server wrapping a. st is the initial State (the
// caller is responsible for any restoration before calling New; use
// RestoreState afterward for the "replace in place" operation).
func New(a agent.Agent, st state.State, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = telemetry.NoopLogger{}
	}
	if opts.Bus == nil {
		opts.Bus = events.NewInProcessBus()
	}
	s := &Server{
		agent:          a,
		state:          st,
		status:         StatusIdle,
		lastActivityAt: time.Now(),
		crashed:        make(chan struct{}),
		opts:           opts,
		log:            opts.Logger,
		bus:            opts.Bus,
	}
	return s
}

// Crashed returns a channel closed the first time a task running on this
// Server panics. An owning supervisor wires this into a ChildHandle.Crashed
// to trigger its rest_for_one restart policy (spec §4.8); a Server that never
// panics never closes it.
func (s *Server) Crashed() <-chan struct{} {
	return s.crashed
}

// GetStatus returns the current status.
func (s *Server) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// GetState returns the current State snapshot. Since State is
// immutable-snapshot, the caller may read it freely without further
// synchronization.
func (s *Server) GetState() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info summarizes a Server for registry/listing queries.
type Info struct {
	AgentID        string
	Status         Status
	LastActivityAt time.Time
	Error          error
}

// GetInfo returns a point-in-time Info snapshot.
func (s *Server) GetInfo() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{AgentID: s.agent.ID, Status: s.status, LastActivityAt: s.lastActivityAt, Error: s.err}
}

// InactivityStatus reports how long is left before the inactivity timer
// fires, for get_inactivity_status.
type InactivityStatus struct {
	Enabled        bool
	LastActivityAt time.Time
	Timeout        time.Duration
	RemainingAt    time.Time // zero when Enabled is false
}

// GetInactivityStatus returns the current inactivity timer state.
func (s *Server) GetInactivityStatus() InactivityStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.InactivityTimeout <= 0 {
		return InactivityStatus{Enabled: false, LastActivityAt: s.lastActivityAt}
	}
	return InactivityStatus{
		Enabled:        true,
		LastActivityAt: s.lastActivityAt,
		Timeout:        s.opts.InactivityTimeout,
		RemainingAt:    s.lastActivityAt.Add(s.opts.InactivityTimeout),
	}
}

// Execute starts a turn per §4.5 from status=idle. It transitions to
// running synchronously and returns immediately; the turn itself runs on a
// background task that Cancel can kill independently of the caller's own
// context. Use Subscribe to observe its outcome.
func (s *Server) Execute(_ context.Context, userMessage model.Message) error {
	s.mu.Lock()
	if s.status != StatusIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: execute requires idle, got %s", ErrWrongStatus, s.status)
	}
	st := s.state.AddMessage(userMessage)
	taskCtx, gen := s.beginTaskLocked()
	s.mu.Unlock()

	s.runTask(taskCtx, gen, func(ctx context.Context) (state.State, *hitl.InterruptData, error) {
		return s.agent.Execute(ctx, st)
	})
	return nil
}

// Resume continues an interrupted turn per §4.9 from status=interrupted.
func (s *Server) Resume(_ context.Context, decisions []hitl.Decision) error {
	s.mu.Lock()
	if s.status != StatusInterrupted {
		s.mu.Unlock()
		return fmt.Errorf("%w: resume requires interrupted, got %s", ErrWrongStatus, s.status)
	}
	st := s.state
	taskCtx, gen := s.beginTaskLocked()
	s.mu.Unlock()

	s.runTask(taskCtx, gen, func(ctx context.Context) (state.State, *hitl.InterruptData, error) {
		return s.agent.Resume(ctx, st, decisions)
	})
	return nil
}

// beginTaskLocked must be called with mu held. It arms a fresh cancellable
// task context (so Cancel can kill it independently of whatever caller
// context triggered execute/resume), bumps taskGen, transitions to running
// and resets the inactivity timer, returning the context the task should run
// under along with the generation it was launched as.
func (s *Server) beginTaskLocked() (context.Context, uint64) {
	taskCtx, cancel := context.WithCancel(context.Background())
	s.cancelCurrent = cancel
	s.taskGen++
	s.setStatusLocked(StatusRunning, "")
	s.armInactivityLocked()
	return taskCtx, s.taskGen
}

// runTask runs fn on a new goroutine against taskCtx, then applies its
// outcome to the Server's status/state if gen is still the current
// generation. A panic inside fn (arbitrary tool/middleware code) is
// recovered here rather than crashing the process, and closes Crashed so an
// owning supervisor can restart this agent's subtree (spec §4.1/§4.8).
func (s *Server) runTask(taskCtx context.Context, gen uint64, fn func(context.Context) (state.State, *hitl.InterruptData, error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error(context.Background(), fmt.Errorf("agentserver: task panicked: %v", r),
					"agentserver: recovered task panic", "agent_id", s.agent.ID, "generation", gen)
				s.crashedOnce.Do(func() { close(s.crashed) })
			}
		}()
		newState, interrupt, err := fn(taskCtx)
		s.applyTaskResult(gen, newState, interrupt, err)
	}()
}

// applyTaskResult transitions status based on a completed task's outcome and
// broadcasts the result, implementing the running->{idle,interrupted,error}
// edges of the state machine. gen must match the generation captured when
// the task was launched (beginTaskLocked); any mismatch means a newer task
// has since started (possibly after an earlier one was cancelled but failed
// to observe ctx promptly) and the result is dropped and logged instead of
// clobbering the newer task's state, per spec §5's "subsequent task
// completion messages are ignored (matched by task reference and dropped)".
// A result that arrives while status has already moved to cancelled (via
// Cancel, with no newer task yet started) is dropped for the same reason.
func (s *Server) applyTaskResult(gen uint64, newState state.State, interrupt *hitl.InterruptData, err error) {
	s.mu.Lock()
	if gen != s.taskGen {
		s.mu.Unlock()
		s.log.Info(context.Background(), "agentserver: dropping stale task result",
			"agent_id", s.agent.ID, "task_generation", gen, "current_generation", s.taskGen)
		return
	}
	if s.status == StatusCancelled {
		s.mu.Unlock()
		return
	}
	prevTodos := s.state.Todos
	s.state = newState
	s.interruptData = interrupt
	todosChanged := len(prevTodos) != len(newState.Todos)
	for i := 0; !todosChanged && i < len(prevTodos); i++ {
		todosChanged = prevTodos[i] != newState.Todos[i]
	}
	if todosChanged {
		s.bus.Publish(context.Background(), events.Topic(s.agent.ID), events.Event{
			Kind: events.KindTodosUpdated, AgentID: s.agent.ID, EmittedAt: time.Now(),
			Payload: events.TodosUpdatedPayload{Todos: newState.Todos},
		})
	}
	switch {
	case err != nil:
		s.err = err
		s.setStatusLocked(StatusError, err.Error())
	case interrupt != nil:
		s.setStatusLocked(StatusInterrupted, "")
	default:
		s.err = nil
		s.setStatusLocked(StatusIdle, "")
	}
	s.mu.Unlock()
}

// Cancel brutally kills the current task and transitions to cancelled
// without broadcasting state, per §4.7 ("state may be inconsistent, so is
// NOT broadcast").
func (s *Server) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return fmt.Errorf("%w: cancel requires running, got %s", ErrWrongStatus, s.status)
	}
	if s.cancelCurrent != nil {
		s.cancelCurrent()
	}
	s.setStatusLocked(StatusCancelled, "")
	s.armInactivityLocked()
	return nil
}

// AddMessage appends m to the current conversation. Valid in any status; a
// terminal status (error/cancelled) resets to idle afterward.
func (s *Server) AddMessage(ctx context.Context, m model.Message) error {
	s.mu.Lock()
	s.state = s.state.AddMessage(m)
	if s.status == StatusError || s.status == StatusCancelled {
		s.err = nil
		s.setStatusLocked(StatusIdle, "")
	}
	s.armInactivityLocked()
	s.mu.Unlock()

	s.broadcastMessage(ctx, m)
	s.persistMessage(ctx, m)
	return nil
}

// Reset resets the conversation (State.Reset) and, if terminal, returns to
// idle. The VFS reset half of §4.7's operation is the caller's
// responsibility (the Server does not own the VFS process).
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.Reset()
	s.err = nil
	if s.status == StatusError || s.status == StatusCancelled || s.status == StatusIdle {
		s.setStatusLocked(StatusIdle, "")
	}
	s.armInactivityLocked()
}

// SetTodos whole-list-replaces the todo list and broadcasts the change.
func (s *Server) SetTodos(ctx context.Context, todos []state.Todo) {
	s.mu.Lock()
	s.state = s.state.SetTodos(todos)
	s.armInactivityLocked()
	s.mu.Unlock()

	s.bus.Publish(ctx, events.Topic(s.agent.ID), events.Event{
		Kind: events.KindTodosUpdated, AgentID: s.agent.ID, EmittedAt: time.Now(),
		Payload: events.TodosUpdatedPayload{Todos: todos},
	})
}

// SetMessages whole-list-replaces the message history.
func (s *Server) SetMessages(messages []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Messages = append([]model.Message{}, messages...)
	s.armInactivityLocked()
}

// ExportState produces a versioned serialization of the current state,
// omitting the agent id (the importing side supplies its own, per §4.7).
func (s *Server) ExportState(now time.Time) ([]byte, error) {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	return st.Serialize(now)
}

// RestoreState deserializes data into the current process's state, keeping
// the current agent configuration untouched.
func (s *Server) RestoreState(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restored, err := state.Deserialize(data, s.state)
	if err != nil {
		return fmt.Errorf("agentserver: restore state: %w", err)
	}
	s.state = restored
	s.armInactivityLocked()
	return nil
}

// UpdateAgentAndState atomically replaces both the compiled Agent and the
// State, valid once st's agent id has been set by the caller.
func (s *Server) UpdateAgentAndState(a agent.Agent, st state.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent = a
	kept := make(map[string]any, len(st.MiddlewareState))
	for id, v := range st.MiddlewareState {
		if _, ok := a.Middleware.Find(id); ok {
			kept[id] = v
		}
	}
	st.MiddlewareState = kept
	s.state = st
	s.armInactivityLocked()
}

// Subscribe joins the agent's primary broadcast topic.
func (s *Server) Subscribe(ctx context.Context) events.Subscription {
	return s.bus.Subscribe(ctx, events.Topic(s.agent.ID))
}

// SubscribeDebug joins the agent's debug topic (state snapshots, wrapped
// sub-agent events).
func (s *Server) SubscribeDebug(ctx context.Context) events.Subscription {
	return s.bus.Subscribe(ctx, events.DebugTopic(s.agent.ID))
}

// setStatusLocked must be called with mu held. It updates status, records
// activity, and, when the status actually changes, logs the transition and
// broadcasts a status_changed event (including the change to cancelled).
func (s *Server) setStatusLocked(next Status, reason string) {
	prev := s.status
	s.status = next
	s.lastActivityAt = time.Now()
	if prev == next {
		return
	}
	s.log.Info(context.Background(), "agent status changed", "agent_id", s.agent.ID, "from", string(prev), "to", string(next))
	s.bus.Publish(context.Background(), events.Topic(s.agent.ID), events.Event{
		Kind: events.KindStatusChanged, AgentID: s.agent.ID, EmittedAt: time.Now(),
		Payload: events.StatusChangedPayload{Status: next, Reason: reason},
	})
}

// armInactivityLocked must be called with mu held. It (re)arms the
// inactivity timer on every status-changing or user-visible operation, per
// §4.7. A non-positive timeout disables the behavior entirely.
func (s *Server) armInactivityLocked() {
	s.lastActivityAt = time.Now()
	if s.opts.InactivityTimeout <= 0 {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.opts.InactivityTimeout, s.onInactivityTimeout)
}

// onInactivityTimeout implements the inactivity-timeout behavior: broadcast
// agent_shutdown, wait shutdown_delay_ms, then ask the owning supervisor to
// stop the agent subtree.
func (s *Server) onInactivityTimeout() {
	agentID := s.agent.ID
	s.log.Info(context.Background(), "agent inactivity timeout fired", "agent_id", agentID)
	s.bus.Publish(context.Background(), events.Topic(agentID), events.Event{
		Kind: events.KindAgentShutdown, AgentID: agentID, EmittedAt: time.Now(),
		Payload: events.AgentShutdownPayload{Reason: "inactivity"},
	})
	if s.opts.OnShutdown == nil {
		return
	}
	go func() {
		if s.opts.ShutdownDelay > 0 {
			time.Sleep(s.opts.ShutdownDelay)
		}
		s.opts.OnShutdown("inactivity")
	}()
}

// broadcastMessage publishes an llm_message/tool_response event for m.
func (s *Server) broadcastMessage(ctx context.Context, m model.Message) {
	kind := events.KindLLMMessage
	if m.Role == model.RoleTool {
		kind = events.KindToolResponse
	}
	s.bus.Publish(ctx, events.Topic(s.agent.ID), events.Event{
		Kind: kind, AgentID: s.agent.ID, EmittedAt: time.Now(),
		Payload: events.LLMMessagePayload{Message: m},
	})
}

// persistMessage runs the configured SaveNewMessageFunc, if any, and
// broadcasts display_message_saved for each returned display message.
// Failure suppresses the broadcast for this message but never fails the
// caller, per §4.7's "does not fail the turn".
func (s *Server) persistMessage(ctx context.Context, m model.Message) {
	s.mu.Lock()
	fn := s.opts.SaveNewMessageFunc
	convID := s.opts.ConversationID
	agentID := s.agent.ID
	s.mu.Unlock()
	if fn == nil {
		return
	}
	displays, err := fn(ctx, convID, m)
	if err != nil {
		s.log.Error(ctx, err, "agentserver: save new message failed", "agent_id", agentID)
		return
	}
	for _, d := range displays {
		s.bus.Publish(ctx, events.Topic(agentID), events.Event{
			Kind: events.KindDisplayMessageSaved, AgentID: agentID, EmittedAt: time.Now(),
			Payload: events.DisplayMessageSavedPayload{DisplayMessage: d},
		})
	}
}
