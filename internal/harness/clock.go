package harness

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies run timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// TokenSource supplies run identifiers.
type TokenSource interface {
	Next() string
}

// UUIDTokens issues UUIDv7 identifiers. Their lexicographic order is
// creation order, which the journal relies on for newest-first listings.
type UUIDTokens struct{}

// Next returns a fresh UUIDv7 string.
func (UUIDTokens) Next() string { return uuid.Must(uuid.NewV7()).String() }
