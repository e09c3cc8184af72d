package harness

import (
	"time"

	"github.com/roach88/wheelwright/internal/journal"
)

// Result is the outcome of one scenario run against one policy. The same
// commands and checks land in the journal as the run executes; the Result
// carries them back to the caller for reporting.
type Result struct {
	RunID    string
	Scenario string
	Policy   string

	// State is the terminal state on success, or the state the run was in
	// when it failed.
	State string
	Pass  bool

	// Failure is empty on pass; otherwise the error that ended the run.
	Failure string

	Started  time.Time
	Finished time.Time

	Commands []journal.CommandRecord
	Checks   []journal.CheckRecord
	Detail   journal.Detail
}

// Duration returns the run's wall time.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
