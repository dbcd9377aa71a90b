// Package tokencount estimates message token counts for the Summarization
// middleware's max_tokens_before_summary trigger, adapted from
// kadirpekel-hector's pkg/utils/tokens.go TokenCounter: cache one tiktoken
// encoding per model name, fall back to cl100k_base, and add the
// per-message role/framing overhead OpenAI's own counting guide documents.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokensPerMessage approximates the per-message framing overhead
// (<|start|>role|message<|end|>) that a raw content-length count misses.
const tokensPerMessage = 3

var (
	cacheMu  sync.RWMutex
	encoding = map[string]*tiktoken.Tiktoken{}
)

// Counter counts tokens for one model's encoding.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// ForModel returns a Counter for model, falling back to cl100k_base when the
// model has no known encoding (this runtime never bundles model-specific
// providers, so model is an advisory string, not a validated identifier).
func ForModel(model string) *Counter {
	cacheMu.RLock()
	enc, ok := encoding[model]
	cacheMu.RUnlock()
	if ok {
		return &Counter{enc: enc}
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return &Counter{}
		}
	}
	cacheMu.Lock()
	encoding[model] = enc
	cacheMu.Unlock()
	return &Counter{enc: enc}
}

// Count returns the token count for text, or a rough 4-chars-per-token
// estimate if no encoding could be loaded.
func (c *Counter) Count(text string) int {
	if c == nil || c.enc == nil {
		return len(text) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountText is the []{role,text} overload used to estimate a message list's
// total size, including per-message framing overhead.
func (c *Counter) CountText(role, text string) int {
	return tokensPerMessage + c.Count(role) + c.Count(text)
}
