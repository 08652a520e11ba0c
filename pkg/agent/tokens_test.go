package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenCounterCount(t *testing.T) {
	c := NewTokenCounter()

	assert.Zero(t, c.Count(""))
	assert.Greater(t, c.Count("hello world"), 0)

	short := c.Count("a quick note")
	long := c.Count(strings.Repeat("a quick note about the camping trip ", 40))
	assert.Greater(t, long, short)
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, estimateTokens(""))
	assert.Zero(t, estimateTokens("   "))
	assert.Equal(t, 1, estimateTokens("hi"))

	// Word count wins for short-word text, runes/4 for long words.
	assert.Equal(t, 5, estimateTokens("a b c d e"))
	assert.Equal(t, 10, estimateTokens(strings.Repeat("abcd", 10)))
}
