package middleware

import (
	"context"
	"fmt"
	"strings"

	"goa.design/agentcore/hitl"
	"goa.design/agentcore/state"
	"goa.design/agentcore/toolspec"
)

// Stack is an ordered, initialized middleware chain built by Build.
type Stack struct {
	entries []Entry
}

// Entries returns the stack's entries in declaration order.
func (s Stack) Entries() []Entry { return append([]Entry(nil), s.entries...) }

// Factory constructs an uninitialized middleware instance for one slot of
// the default stack. Kept as a func so the default stack can be declared
// without import cycles between middleware and its default-stack
// subpackages (each subpackage imports middleware, not the reverse).
type Factory func() Middleware

// BuildOptions configures Build.
type BuildOptions struct {
	// ReplaceDefaultMiddleware skips prepending the default stack.
	ReplaceDefaultMiddleware bool
	// DefaultStack supplies the factories prepended in order when
	// ReplaceDefaultMiddleware is false. Callers pass the concrete
	// TodoList/FileSystem/SubAgent/Summarization/PatchToolCalls/
	// HumanInTheLoop factories; middleware itself has no knowledge of
	// those concrete types to avoid an import cycle.
	DefaultStack []Factory
	// IncludeHITL appends the HITL factory (last element of DefaultStack)
	// iff interrupt_on is non-empty, per spec §4.4 step 3.
	IncludeHITL bool
	// User-declared middleware appended after the default stack.
	User []Middleware
	// PerMiddlewareConfig supplies the config passed to each middleware's
	// Init, keyed by middleware ID. A middleware with no entry gets an
	// empty Config.
	PerMiddlewareConfig map[string]Config
}

// Build constructs and initializes the full middleware stack for an agent,
// per spec §4.4 steps 3-4.
func Build(opts BuildOptions) (Stack, error) {
	var mws []Middleware
	if !opts.ReplaceDefaultMiddleware {
		factories := opts.DefaultStack
		if !opts.IncludeHITL && len(factories) > 0 {
			factories = factories[:len(factories)-1]
		}
		for _, f := range factories {
			mws = append(mws, f())
		}
	}
	mws = append(mws, opts.User...)

	entries := make([]Entry, 0, len(mws))
	for _, mw := range mws {
		cfg := opts.PerMiddlewareConfig[mw.ID()]
		if cfg == nil {
			cfg = Config{}
		}
		initialized, err := mw.Init(cfg)
		if err != nil {
			return Stack{}, fmt.Errorf("middleware %q init: %w", mw.ID(), err)
		}
		entries = append(entries, Entry{Middleware: mw, Config: initialized})
	}
	return Stack{entries: entries}, nil
}

// AssembleSystemPrompt concatenates basePrompt with every middleware's
// SystemPrompt contributions, in declaration order, joined by blank lines,
// dropping empty entries.
func (s Stack) AssembleSystemPrompt(basePrompt string) (string, error) {
	parts := make([]string, 0, len(s.entries)+1)
	if strings.TrimSpace(basePrompt) != "" {
		parts = append(parts, basePrompt)
	}
	for _, e := range s.entries {
		contributed, err := e.Middleware.SystemPrompt(e.Config)
		if err != nil {
			return "", fmt.Errorf("middleware %q system_prompt: %w", e.Middleware.ID(), err)
		}
		for _, c := range contributed {
			if strings.TrimSpace(c) == "" {
				continue
			}
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// UnionTools concatenates middleware-provided tools with userTools, in
// declaration order, with user tools last.
func (s Stack) UnionTools(userTools []toolspec.ToolSpec) ([]toolspec.ToolSpec, error) {
	var all []toolspec.ToolSpec
	for _, e := range s.entries {
		contributed, err := e.Middleware.Tools(e.Config)
		if err != nil {
			return nil, fmt.Errorf("middleware %q tools: %w", e.Middleware.ID(), err)
		}
		all = append(all, contributed...)
	}
	return append(all, userTools...), nil
}

// RunBeforeModel runs every middleware's BeforeModel in declaration order,
// threading state. Any error aborts and is returned wrapped with the
// middleware's id (%w), so callers can still match it with errors.Is/As as
// the turn's abort reason.
func (s Stack) RunBeforeModel(ctx context.Context, st state.State) (state.State, error) {
	for _, e := range s.entries {
		next, err := e.Middleware.BeforeModel(ctx, st, e.Config)
		if err != nil {
			return st, fmt.Errorf("middleware %q before_model: %w", e.Middleware.ID(), err)
		}
		st = next
	}
	return st, nil
}

// RunAfterModel runs every middleware's AfterModel in REVERSE declaration
// order (spec §4.3's "outermost declared middleware observes the
// innermost's result"). The first middleware to return non-nil
// InterruptData stops the chain and its data is returned.
func (s Stack) RunAfterModel(ctx context.Context, st state.State) (state.State, *hitl.InterruptData, error) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		next, interrupt, err := e.Middleware.AfterModel(ctx, st, e.Config)
		if err != nil {
			return st, nil, fmt.Errorf("middleware %q after_model: %w", e.Middleware.ID(), err)
		}
		st = next
		if interrupt != nil {
			return st, interrupt, nil
		}
	}
	return st, nil, nil
}

// RunOnServerStart runs every middleware's OnServerStart in declaration
// order.
func (s Stack) RunOnServerStart(ctx context.Context, st state.State) (state.State, error) {
	for _, e := range s.entries {
		next, err := e.Middleware.OnServerStart(ctx, st, e.Config)
		if err != nil {
			return st, fmt.Errorf("middleware %q on_server_start: %w", e.Middleware.ID(), err)
		}
		st = next
	}
	return st, nil
}

// Find returns the entry whose middleware ID matches id.
func (s Stack) Find(id string) (Entry, bool) {
	for _, e := range s.entries {
		if e.Middleware.ID() == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Dispatch routes msg to the middleware identified by middlewareID, per
// spec §4.3's handle_message callback.
func (s Stack) Dispatch(ctx context.Context, middlewareID string, msg any, st state.State) (state.State, error) {
	e, ok := s.Find(middlewareID)
	if !ok {
		return st, fmt.Errorf("middleware: no entry with id %q", middlewareID)
	}
	return e.Middleware.HandleMessage(ctx, msg, st, e.Config)
}
