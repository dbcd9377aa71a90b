// Package llm defines the provider-agnostic model client this runtime calls
// into: a single Complete method translating a Request (messages, tools,
// model handle) into a Response (one assistant message plus token usage).
// Concrete provider adapters (OpenAI, Anthropic, Bedrock, ...) are out of
// scope for this module; callers supply a Client implementation.
package llm

import (
	"context"

	"goa.design/agentcore/model"
	"goa.design/agentcore/toolspec"
)

// Request is one turn's worth of input to the model.
type Request struct {
	// ModelHandle identifies which model/deployment to call; its format is
	// provider-defined.
	ModelHandle string
	Messages    []model.Message
	Tools       []toolspec.ToolSpec
}

// TokenUsage reports the model's own accounting for a turn, when the
// provider supplies it.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the model's reply to one Request: always an assistant
// message, possibly carrying tool_calls.
type Response struct {
	Message model.Message
	Usage   TokenUsage
}

// Client is the provider-agnostic model client. Implementations translate
// Requests into provider calls and adapt the reply back into Response.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
