package testutil

import "sync"

// FixedTokens returns predetermined tokens in order. Production code
// draws run IDs and container-name suffixes from UUIDv7; tests swap in a
// FixedTokens so both are stable across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedTokens struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokens creates a source that returns tokens in order.
//
// Example:
//
//	tokens := NewFixedTokens("run-1", "producer-1", "consumer-1")
//	tokens.Next() // "run-1"
//	tokens.Next() // "producer-1"
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{tokens: tokens}
}

// Next returns the next predetermined token.
//
// Panics once all tokens are consumed: a test drawing more tokens than it
// scripted is misconfigured and should fail loudly.
func (g *FixedTokens) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.tokens) {
		panic("FixedTokens: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
