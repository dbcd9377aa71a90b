// Package patchtoolcalls implements the default PatchToolCalls middleware:
// it repairs the tool_calls on the last assistant message of the state it
// is given, since not every LLM transport reliably assigns a call_id or
// finishes streaming every call's arguments before the turn ends. It runs
// as an after_model hook, so within Agent.Execute it sees the state only
// after engine.Run has executed the turn's tool calls; it does not patch
// calls before they are executed.
package patchtoolcalls

import (
	"context"

	"github.com/google/uuid"

	"goa.design/agentcore/hitl"
	"goa.design/agentcore/middleware"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
)

// ID is this middleware's identifier.
const ID = "patch_tool_calls"

// PatchToolCalls is the default middleware.
type PatchToolCalls struct {
	middleware.Base
}

// New constructs a PatchToolCalls middleware.
func New() *PatchToolCalls { return &PatchToolCalls{} }

func (m *PatchToolCalls) ID() string { return ID }

// AfterModel patches the last assistant message's tool_calls: assigns a
// fresh call_id to any call missing one, deduplicates call_ids that collide,
// and forces any call still Streaming at turn end to Complete with an empty
// argument map, since no further delta will ever arrive for it.
func (m *PatchToolCalls) AfterModel(_ context.Context, st state.State, _ middleware.Config) (state.State, *hitl.InterruptData, error) {
	idx := lastAssistantIndex(st.Messages)
	if idx < 0 {
		return st, nil, nil
	}
	msg := st.Messages[idx]
	if len(msg.ToolCalls) == 0 {
		return st, nil, nil
	}

	seen := make(map[string]bool, len(msg.ToolCalls))
	patched := make([]model.ToolCall, len(msg.ToolCalls))
	for i, call := range msg.ToolCalls {
		if call.CallID == "" || seen[call.CallID] {
			call.CallID = uuid.NewString()
		}
		seen[call.CallID] = true
		if call.Status != model.ToolCallComplete {
			call.Status = model.ToolCallComplete
			if call.Arguments == nil {
				call.Arguments = map[string]any{}
			}
		}
		patched[i] = call
	}
	msg.ToolCalls = patched

	messages := append([]model.Message{}, st.Messages...)
	messages[idx] = msg
	out := st
	out.Messages = messages
	return out, nil, nil
}

func lastAssistantIndex(messages []model.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleAssistant {
			return i
		}
	}
	return -1
}
