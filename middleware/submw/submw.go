// Package submw implements the default SubAgent middleware: a "delegate"
// tool that hands a self-contained subtask off to a sandboxed child
// conversation (spec §4.6), sharing only the parent's VFS and metadata.
//
// Named submw rather than subagent to avoid a package-name collision with
// the goa.design/agentcore/subagent package, which holds the pausable
// SubAgent value this middleware constructs and drives.
package submw

import (
	"context"
	"fmt"
	"sync"

	"goa.design/agentcore/agent"
	"goa.design/agentcore/middleware"
	"goa.design/agentcore/state"
	"goa.design/agentcore/subagent"
	"goa.design/agentcore/toolspec"
)

// ID is this middleware's identifier.
const ID = "subagent"

// Options configures the middleware, applied from config["subagent_opts"].
type Options struct {
	// PromptHint overrides the default system-prompt guidance.
	PromptHint string
}

// SubAgent is the default middleware exposing the delegate tool. child must
// not itself carry the SubAgent middleware (no nesting, per spec §4.6);
// callers typically build it with agent.Attrs.ReplaceDefaultMiddleware or a
// default stack that omits SubAgent.
type SubAgent struct {
	middleware.Base
	parentAgentID string
	child         agent.Agent
	counter       *subagent.Counter
	opts          Options

	mu           sync.Mutex
	parentState  state.State
}

// New constructs a SubAgent middleware. parentAgentID seeds the
// "<parent>-sub-<n>" id scheme; child is the compiled agent configuration
// every delegate call runs against.
func New(parentAgentID string, child agent.Agent) *SubAgent {
	return &SubAgent{parentAgentID: parentAgentID, child: child, counter: &subagent.Counter{}}
}

func (m *SubAgent) ID() string { return ID }

func (m *SubAgent) Init(config middleware.Config) (middleware.Config, error) {
	if raw, ok := config["subagent_opts"]; ok {
		opts, ok := raw.(Options)
		if !ok {
			return nil, fmt.Errorf("subagent: subagent_opts must be submw.Options, got %T", raw)
		}
		m.opts = opts
	}
	return config, nil
}

func (m *SubAgent) SystemPrompt(middleware.Config) ([]string, error) {
	hint := m.opts.PromptHint
	if hint == "" {
		hint = "Use delegate to hand a self-contained subtask off to a sandboxed sub-agent; only its final answer and any file changes it made return to you."
	}
	return []string{hint}, nil
}

// BeforeModel captures the turn's starting state so the delegate tool can
// seed a child with the parent's current files_index and metadata: the
// agent execution loop is single-threaded per agent (spec §4.3), so this
// snapshot is stable for the rest of the turn.
func (m *SubAgent) BeforeModel(_ context.Context, st state.State, _ middleware.Config) (state.State, error) {
	m.mu.Lock()
	m.parentState = st
	m.mu.Unlock()
	return st, nil
}

func (m *SubAgent) Tools(middleware.Config) ([]toolspec.ToolSpec, error) {
	return []toolspec.ToolSpec{
		{
			Name:        "delegate",
			Description: "Delegate a self-contained subtask to a sandboxed sub-agent; returns its final answer.",
			Parameters: []toolspec.FunctionParam{
				{Name: "instructions", Kind: toolspec.ParamString, Required: true, Description: "The subtask to hand off, in full detail; the sub-agent has no other context."},
			},
			Function: m.delegate,
		},
	}, nil
}

func (m *SubAgent) delegate(ctx context.Context, args map[string]any) (any, error) {
	instructions, _ := args["instructions"].(string)

	m.mu.Lock()
	parentState := m.parentState
	m.mu.Unlock()

	sa, err := subagent.New(m.parentAgentID, m.counter, m.child, instructions, parentState)
	if err != nil {
		return nil, fmt.Errorf("subagent: delegate: %w", err)
	}

	result, interrupt, err := sa.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("subagent: delegate: %w", err)
	}
	if interrupt != nil {
		// Implements engine.ToolInterrupt by structural typing; the engine
		// package never imports this one, keeping the dependency graph
		// acyclic (engine <- subagent <- submw).
		return interrupt, nil
	}

	return state.Fragment{
		State: state.State{
			FilesIndex: result.FilesIndex,
			Metadata:   result.Metadata,
		},
		Result: result.Text,
	}, nil
}
