package model

import "encoding/json"

// ToolCallStatus tracks whether a streamed tool call's arguments are fully
// parsed yet.
type ToolCallStatus string

const (
	ToolCallStreaming ToolCallStatus = "streaming"
	ToolCallComplete  ToolCallStatus = "complete"
)

// ToolCall is a single tool invocation requested by the assistant. Arguments
// may arrive as a streamed JSON string; the call is only Complete once that
// string parses successfully (see AppendArgumentsDelta).
type ToolCall struct {
	CallID    string         `json:"call_id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Index     int            `json:"index"`
	Status    ToolCallStatus `json:"status"`

	// rawArguments accumulates streamed JSON text until it parses.
	rawArguments string
}

// AppendArgumentsDelta appends a streamed JSON fragment and attempts to parse
// the accumulated text. On success the call transitions to Complete and
// Arguments is populated; on failure (including partial JSON) the call stays
// Streaming.
func (c ToolCall) AppendArgumentsDelta(delta string) ToolCall {
	c.rawArguments += delta
	var args map[string]any
	if err := json.Unmarshal([]byte(c.rawArguments), &args); err != nil {
		c.Status = ToolCallStreaming
		return c
	}
	c.Arguments = args
	c.Status = ToolCallComplete
	return c
}

// ToolResult is the structured reply to a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`

	// Text is set when the result content is a plain string. Exactly one of
	// Text or Parts is populated.
	Text  string        `json:"content,omitempty"`
	Parts []ContentPart `json:"parts,omitempty"`

	IsError bool `json:"is_error"`

	// ProcessedContent is opaque to the wire format; it is for local
	// (in-process) use by middleware/tool pipelines and is never serialized.
	ProcessedContent any `json:"-"`

	DisplayText string         `json:"display_text,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// ErrorResult builds a tool-result carrying an error, matching the synthetic
// rejection result shape the HITL resume path produces.
func ErrorResult(toolCallID, text string) ToolResult {
	return ToolResult{ToolCallID: toolCallID, Text: text, IsError: true}
}
