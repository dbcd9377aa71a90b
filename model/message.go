// Package model defines the conversational value types exchanged between the
// agent runtime and the LLM transport: messages, content parts, tool calls and
// tool results. Values are tagged sum types discriminated by a string field so
// they serialize to and from JSON without a custom wire codec.
package model

import "fmt"

// Role discriminates a Message's position in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Status describes how a Message's generation finished.
type Status string

const (
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
	StatusLength    Status = "length"
)

// Message is a tagged variant over the four conversation roles.
//
// Invariants (enforced by Validate, not by the zero value): system/user
// messages must have non-empty content; tool-role messages must carry at
// least one ToolResult; only assistant messages may carry ToolCalls.
type Message struct {
	Role Role `json:"role"`

	// Text is set when the message content is a plain string. Exactly one of
	// Text or Parts is populated for a given message.
	Text string `json:"content,omitempty"`
	// Parts is set when the message content is an ordered list of ContentPart.
	Parts []ContentPart `json:"parts,omitempty"`

	// ToolCalls is populated only on assistant messages that request tool
	// execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolResults is populated only on tool-role messages.
	ToolResults []ToolResult `json:"tool_results,omitempty"`

	Status Status `json:"status,omitempty"`
	// Index orders messages within a stream of deltas; absent (nil) for
	// messages that were not streamed.
	Index *int `json:"index,omitempty"`
	// Meta carries arbitrary per-message metadata, notably token usage.
	Meta map[string]any `json:"meta,omitempty"`
}

// HasContent reports whether the message carries text or parts.
func (m Message) HasContent() bool {
	return m.Text != "" || len(m.Parts) > 0
}

// Validate checks the role-specific invariants from the data model.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser:
		if !m.HasContent() {
			return fmt.Errorf("model: %s message requires non-empty content", m.Role)
		}
		if len(m.ToolCalls) > 0 {
			return fmt.Errorf("model: %s message must not carry tool_calls", m.Role)
		}
	case RoleAssistant:
		// assistant may have empty content if it only carries tool_calls.
	case RoleTool:
		if len(m.ToolResults) == 0 {
			return fmt.Errorf("model: tool message requires at least one tool result")
		}
	default:
		return fmt.Errorf("model: unknown role %q", m.Role)
	}
	if m.Role != RoleAssistant && len(m.ToolCalls) > 0 {
		return fmt.Errorf("model: only assistant messages may carry tool_calls")
	}
	return nil
}

// System builds a plain-text system message.
func System(text string) Message { return Message{Role: RoleSystem, Text: text, Status: StatusComplete} }

// User builds a plain-text user message.
func User(text string) Message { return Message{Role: RoleUser, Text: text, Status: StatusComplete} }

// Assistant builds a plain-text assistant message with no tool calls.
func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Text: text, Status: StatusComplete}
}

// ToolMessage builds a tool-role message from one or more results.
func ToolMessage(results ...ToolResult) Message {
	return Message{Role: RoleTool, ToolResults: results, Status: StatusComplete}
}
