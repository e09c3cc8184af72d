package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClockSteps(t *testing.T) {
	start := time.Date(2019, 4, 2, 10, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start, time.Minute)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Minute), clock.Now())
	assert.Equal(t, start.Add(2*time.Minute), clock.Now())
}

func TestFixedClockReset(t *testing.T) {
	start := time.Date(2019, 4, 2, 10, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start, time.Second)
	clock.Now()
	clock.Now()

	clock.Reset(start)
	assert.Equal(t, start, clock.Now())
}
