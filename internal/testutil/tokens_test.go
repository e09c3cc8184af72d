package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedTokensReturnsInOrder(t *testing.T) {
	tokens := NewFixedTokens("run-1", "producer-1", "consumer-1")

	assert.Equal(t, "run-1", tokens.Next())
	assert.Equal(t, "producer-1", tokens.Next())
	assert.Equal(t, "consumer-1", tokens.Next())
}

func TestFixedTokensPanicsWhenExhausted(t *testing.T) {
	tokens := NewFixedTokens("only")
	tokens.Next()

	assert.Panics(t, func() { tokens.Next() })
}
