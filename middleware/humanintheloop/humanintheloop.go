// Package humanintheloop implements the HumanInTheLoop middleware: it
// contributes no system prompt or tools of its own. Its only job is to hold
// the interrupt_on configuration so the agent execution loop (spec §4.5
// step 3c) can gate tool calls before executing them, via hitl.Gate.
//
// The gate check happens inline in the execution loop rather than through
// the generic after_model composition, because spec §4.5 requires it to run
// BEFORE tool execution within a turn, while after_model hooks only run
// once the whole turn (including tool execution) has completed.
package humanintheloop

import (
	"fmt"

	"goa.design/agentcore/hitl"
	"goa.design/agentcore/middleware"
)

// ID is this middleware's identifier.
const ID = "human_in_the_loop"

// HumanInTheLoop holds interrupt_on configuration for the agent's HITL gate.
type HumanInTheLoop struct {
	middleware.Base
	interruptOn hitl.InterruptOn
}

// New constructs a HumanInTheLoop middleware. defaultstack.Factory passes
// the agent's interrupt_on construction option (Attrs.InterruptOn) here; a
// config["interrupt_on"] entry given to Init (through
// Attrs.PerMiddlewareConfig) replaces it.
func New(interruptOn hitl.InterruptOn) *HumanInTheLoop {
	return &HumanInTheLoop{interruptOn: interruptOn}
}

func (m *HumanInTheLoop) ID() string { return ID }

func (m *HumanInTheLoop) Init(config middleware.Config) (middleware.Config, error) {
	if raw, ok := config["interrupt_on"]; ok {
		on, ok := raw.(hitl.InterruptOn)
		if !ok {
			return nil, fmt.Errorf("human_in_the_loop: interrupt_on must be hitl.InterruptOn, got %T", raw)
		}
		m.interruptOn = on
	}
	return config, nil
}

// InterruptOn returns the configured gate. The agent execution loop looks
// this middleware up by ID and type-asserts to the unexported interface it
// satisfies, rather than this method being part of the generic Middleware
// contract.
func (m *HumanInTheLoop) InterruptOn() hitl.InterruptOn { return m.interruptOn }
