// Package middleware defines the per-agent middleware contract (spec §4.3):
// a value contributing config, system-prompt text, tools, and pre/post model
// hooks to an agent, modeled after the single-capability-interface shape
// used by runtime/agent/planner/planner.go, generalized from one capability
// to the handful spec.md's middleware contract requires.
package middleware

import (
	"context"

	"goa.design/agentcore/hitl"
	"goa.design/agentcore/state"
	"goa.design/agentcore/toolspec"
)

// Config is the runtime configuration map a middleware's Init returns and
// every subsequent callback receives back.
type Config map[string]any

// Middleware is the full contract. All callbacks are optional in spec
// terms; Base supplies identity no-op defaults so a concrete middleware
// only overrides what it uses.
type Middleware interface {
	// ID identifies this middleware for handle_message routing and
	// middleware_state keying.
	ID() string

	Init(config Config) (Config, error)
	SystemPrompt(config Config) ([]string, error)
	Tools(config Config) ([]toolspec.ToolSpec, error)
	BeforeModel(ctx context.Context, st state.State, config Config) (state.State, error)
	// AfterModel may return a non-nil InterruptData to park the turn instead
	// of completing it.
	AfterModel(ctx context.Context, st state.State, config Config) (state.State, *hitl.InterruptData, error)
	HandleMessage(ctx context.Context, msg any, st state.State, config Config) (state.State, error)
	OnServerStart(ctx context.Context, st state.State, config Config) (state.State, error)
}

// Base implements every Middleware method as an identity no-op. Concrete
// middlewares embed Base and override only the callbacks spec.md assigns
// them.
type Base struct{}

func (Base) ID() string { return "" }

func (Base) Init(config Config) (Config, error) { return config, nil }

func (Base) SystemPrompt(Config) ([]string, error) { return nil, nil }

func (Base) Tools(Config) ([]toolspec.ToolSpec, error) { return nil, nil }

func (Base) BeforeModel(_ context.Context, st state.State, _ Config) (state.State, error) {
	return st, nil
}

func (Base) AfterModel(_ context.Context, st state.State, _ Config) (state.State, *hitl.InterruptData, error) {
	return st, nil, nil
}

func (Base) HandleMessage(_ context.Context, _ any, st state.State, _ Config) (state.State, error) {
	return st, nil
}

func (Base) OnServerStart(_ context.Context, st state.State, _ Config) (state.State, error) {
	return st, nil
}

// Entry pairs a middleware with its initialized config, as stored in the
// agent's middleware_registry.
type Entry struct {
	Middleware Middleware
	Config     Config
}
