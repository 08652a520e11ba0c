package agent

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter is a deterministic encoder-backed token counter. The chat
// budget math depends on real token counts, so the encoder is loaded eagerly
// and a heuristic is used only if loading fails.
type TokenCounter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter over the cl100k_base encoding.
func NewTokenCounter() *TokenCounter {
	c := &TokenCounter{}
	c.init()
	return c
}

func (c *TokenCounter) init() {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.encoding = enc
		}
	})
}

// Count returns the token count of text.
func (c *TokenCounter) Count(text string) int {
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// estimateTokens is the fallback heuristic: max(runes/4, word count).
func estimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
