// Package summarization implements the default Summarization middleware:
// when the conversation grows past a token budget, collapse the older
// messages into a single synthetic summary message and keep only the most
// recent messages verbatim.
package summarization

import (
	"context"
	"fmt"

	"goa.design/agentcore/middleware"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
	"goa.design/agentcore/tokencount"
)

// ID is this middleware's identifier.
const ID = "summarization"

// Summarize condenses the given messages into replacement text. Callers
// inject the model's actual summarization call here; this runtime has no
// concrete LLM provider of its own (spec's explicit out-of-scope
// collaborator), so Summarization cannot default to one.
type Summarize func(ctx context.Context, messages []model.Message) (string, error)

// Options configures the middleware, applied from
// config["summarization_opts"].
type Options struct {
	// MaxTokensBeforeSummary triggers a summarization pass once the
	// estimated token count of state.Messages exceeds this value. Zero
	// disables summarization.
	MaxTokensBeforeSummary int
	// MessagesToKeep is how many of the most recent messages survive
	// verbatim; everything older is folded into the summary message.
	MessagesToKeep int
	// Model names the encoding used for token estimation (see
	// tokencount.ForModel); empty uses the cl100k_base fallback.
	Model string
}

// Summarization is the default middleware. Summarize must be supplied by
// the embedding application; a zero-value Summarization never triggers.
type Summarization struct {
	middleware.Base
	opts      Options
	summarize Summarize
}

// New constructs a Summarization middleware. summarize performs the actual
// condensation (typically one more LLM call); it may be nil, in which case
// the middleware is a no-op regardless of MaxTokensBeforeSummary.
func New(summarize Summarize) *Summarization {
	return &Summarization{summarize: summarize, opts: Options{MessagesToKeep: 10}}
}

func (m *Summarization) ID() string { return ID }

func (m *Summarization) Init(config middleware.Config) (middleware.Config, error) {
	if raw, ok := config["summarization_opts"]; ok {
		opts, ok := raw.(Options)
		if !ok {
			return nil, fmt.Errorf("summarization: summarization_opts must be summarization.Options, got %T", raw)
		}
		if opts.MessagesToKeep <= 0 {
			opts.MessagesToKeep = 10
		}
		m.opts = opts
	}
	return config, nil
}

// BeforeModel collapses the conversation when it exceeds the configured
// token budget, keeping the most recent MessagesToKeep messages verbatim.
func (m *Summarization) BeforeModel(ctx context.Context, st state.State, _ middleware.Config) (state.State, error) {
	if m.opts.MaxTokensBeforeSummary <= 0 || m.summarize == nil {
		return st, nil
	}
	if len(st.Messages) <= m.opts.MessagesToKeep {
		return st, nil
	}

	counter := tokencount.ForModel(m.opts.Model)
	total := 0
	for _, msg := range st.Messages {
		total += counter.CountText(string(msg.Role), msg.Text)
	}
	if total <= m.opts.MaxTokensBeforeSummary {
		return st, nil
	}

	cut := len(st.Messages) - m.opts.MessagesToKeep
	older, recent := st.Messages[:cut], st.Messages[cut:]
	summaryText, err := m.summarize(ctx, older)
	if err != nil {
		return st, fmt.Errorf("summarization: %w", err)
	}

	replaced := append([]model.Message{model.System("Conversation summary so far: " + summaryText)}, recent...)
	out := st
	out.Messages = replaced
	return out, nil
}
