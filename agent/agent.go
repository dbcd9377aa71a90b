// Package agent implements agent construction (spec §4.4): bundling a model
// handle, an initialized middleware stack, an assembled system prompt and a
// unioned tool set into one immutable value.
package agent

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"goa.design/agentcore/hitl"
	"goa.design/agentcore/llm"
	"goa.design/agentcore/middleware"
	"goa.design/agentcore/toolspec"
)

// Attrs is the caller-supplied configuration for New.
type Attrs struct {
	// AgentID is used verbatim if non-empty; otherwise New generates one.
	AgentID string
	// ModelHandle identifies which model this agent calls. Required.
	ModelHandle string
	// BasePrompt is prepended to the middleware-contributed system prompt.
	BasePrompt string
	// Tools are user-provided tools, unioned after middleware-provided ones.
	Tools []toolspec.ToolSpec
	// InterruptOn configures the HITL gate; a non-empty map appends the
	// HumanInTheLoop middleware to the default stack.
	InterruptOn hitl.InterruptOn
	// ReplaceDefaultMiddleware skips the default stack entirely.
	ReplaceDefaultMiddleware bool
	// Middleware is appended after the default stack (or stands alone when
	// ReplaceDefaultMiddleware is true).
	Middleware []middleware.Middleware
	// PerMiddlewareConfig seeds each middleware's Init call, keyed by ID.
	PerMiddlewareConfig map[string]middleware.Config
}

// Agent is the immutable, constructed runtime value produced by New: a
// model handle, an initialized middleware stack, the assembled system
// prompt and the final unioned tool list.
type Agent struct {
	ID                  string
	ModelHandle         string
	Client              llm.Client
	Middleware          middleware.Stack
	AssembledSystemPrompt string
	Tools               []toolspec.ToolSpec
	InterruptOn         hitl.InterruptOn
}

// DefaultStackFactory supplies the six default-stack factories in
// declaration order (TodoList, FileSystem, SubAgent, Summarization,
// PatchToolCalls, HumanInTheLoop); the caller provides it to avoid an
// import cycle between agent and the concrete middleware subpackages.
type DefaultStackFactory func(agentID string, a Attrs) []middleware.Factory

// New builds an Agent per spec §4.4. client is the model transport used by
// Execute/Resume; defaultStack supplies the default middleware factories
// (nil is valid when attrs.ReplaceDefaultMiddleware is true).
func New(attrs Attrs, client llm.Client, defaultStack DefaultStackFactory) (Agent, error) {
	if attrs.ModelHandle == "" {
		return Agent{}, fmt.Errorf("agent: model_handle is required")
	}
	id := attrs.AgentID
	if id == "" {
		generated, err := generateID()
		if err != nil {
			return Agent{}, fmt.Errorf("agent: generate id: %w", err)
		}
		id = generated
	}

	var factories []middleware.Factory
	if !attrs.ReplaceDefaultMiddleware && defaultStack != nil {
		factories = defaultStack(id, attrs)
	}

	stack, err := middleware.Build(middleware.BuildOptions{
		ReplaceDefaultMiddleware: attrs.ReplaceDefaultMiddleware,
		DefaultStack:             factories,
		IncludeHITL:              len(attrs.InterruptOn.Enabled) > 0,
		User:                     attrs.Middleware,
		PerMiddlewareConfig:      attrs.PerMiddlewareConfig,
	})
	if err != nil {
		return Agent{}, err
	}

	prompt, err := stack.AssembleSystemPrompt(attrs.BasePrompt)
	if err != nil {
		return Agent{}, err
	}
	tools, err := stack.UnionTools(attrs.Tools)
	if err != nil {
		return Agent{}, err
	}

	return Agent{
		ID:                    id,
		ModelHandle:           attrs.ModelHandle,
		Client:                client,
		Middleware:            stack,
		AssembledSystemPrompt: prompt,
		Tools:                 tools,
		InterruptOn:           attrs.InterruptOn,
	}, nil
}

// generateID returns a cryptographically random, ≥128-bit, URL-safe string
// prefixed "agent_".
func generateID() (string, error) {
	buf := make([]byte, 18) // 144 bits
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "agent_" + base64.RawURLEncoding.EncodeToString(buf), nil
}
