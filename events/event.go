// Package events implements the per-agent publish/subscribe broadcast used
// to notify observers of turn progress, grounded on
// runtime/agent/hooks/bus.go's synchronous snapshot-then-publish pattern.
package events

import (
	"time"

	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
)

// Kind identifies an event's payload shape.
type Kind string

const (
	KindStatusChanged        Kind = "status_changed"
	KindLLMDeltas            Kind = "llm_deltas"
	KindLLMMessage           Kind = "llm_message"
	KindLLMTokenUsage        Kind = "llm_token_usage"
	KindToolResponse         Kind = "tool_response"
	KindTodosUpdated         Kind = "todos_updated"
	KindDisplayMessageSaved  Kind = "display_message_saved"
	KindAgentShutdown        Kind = "agent_shutdown"
	KindStateRestored        Kind = "state_restored"

	// Debug-topic-only kinds.
	KindAgentStateUpdate Kind = "agent_state_update"
	KindSubAgent         Kind = "subagent"
)

// SubAgentKind identifies the wrapped sub-agent event shape carried by a
// KindSubAgent event's Payload (a SubAgentEvent).
type SubAgentKind string

const (
	SubAgentStarted        SubAgentKind = "subagent_started"
	SubAgentStatusChanged  SubAgentKind = "subagent_status_changed"
	SubAgentLLMMessage     SubAgentKind = "subagent_llm_message"
	SubAgentCompleted      SubAgentKind = "subagent_completed"
	SubAgentError          SubAgentKind = "subagent_error"
)

// Status mirrors the agent status state machine values carried by
// status_changed events.
type Status string

const (
	StatusRunning     Status = "running"
	StatusIdle        Status = "idle"
	StatusInterrupted Status = "interrupted"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// Event is the envelope delivered to every subscriber of a topic. Payload's
// concrete type is determined by Kind; see the Kind* payload types below.
type Event struct {
	Kind      Kind
	AgentID   string
	Payload   any
	EmittedAt time.Time
}

type (
	// StatusChangedPayload backs KindStatusChanged.
	StatusChangedPayload struct {
		Status Status
		Reason string // populated for error
	}

	// LLMDeltasPayload backs KindLLMDeltas.
	LLMDeltasPayload struct {
		Deltas []model.ContentPart
	}

	// LLMMessagePayload backs KindLLMMessage and KindToolResponse.
	LLMMessagePayload struct {
		Message model.Message
	}

	// LLMTokenUsagePayload backs KindLLMTokenUsage.
	LLMTokenUsagePayload struct {
		PromptTokens     int
		CompletionTokens int
		TotalTokens      int
	}

	// TodosUpdatedPayload backs KindTodosUpdated.
	TodosUpdatedPayload struct {
		Todos []state.Todo
	}

	// DisplayMessageSavedPayload backs KindDisplayMessageSaved.
	DisplayMessageSavedPayload struct {
		DisplayMessage any
	}

	// AgentShutdownPayload backs KindAgentShutdown.
	AgentShutdownPayload struct {
		Reason string
	}

	// StateRestoredPayload backs KindStateRestored.
	StateRestoredPayload struct {
		State state.State
	}

	// AgentStateUpdatePayload backs KindAgentStateUpdate on the debug topic.
	// MiddlewareID is empty for the whole-state variant.
	AgentStateUpdatePayload struct {
		MiddlewareID string
		State        state.State
	}

	// SubAgentEvent backs KindSubAgent on the debug topic: a sub-agent event
	// wrapped with its originating sub-agent id, mirroring
	// {:subagent, sub_agent_id, <event>}.
	SubAgentEvent struct {
		SubAgentID string
		Kind       SubAgentKind
		Payload    any
	}
)
