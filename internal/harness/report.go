package harness

import (
	"fmt"
	"io"
	"time"
)

// WriteReport renders the human summary for a batch of runs. Passing runs
// take one line; failing runs add the run ID, the state the run died in,
// and the failure itself. Durations round to a tenth of a second so live
// runs stay readable.
func WriteReport(w io.Writer, results []*Result) {
	passed, failed := 0, 0
	for _, res := range results {
		mark := "✓"
		if !res.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s on %s (%s)\n",
			mark, res.Scenario, res.Policy, res.Duration().Round(100*time.Millisecond))
		if res.Pass {
			passed++
			continue
		}
		failed++
		fmt.Fprintf(w, "  run: %s\n", res.RunID)
		fmt.Fprintf(w, "  state: %s\n", res.State)
		fmt.Fprintf(w, "  %s\n", res.Failure)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run Summary: %d passed, %d failed, %d total\n", passed, failed, len(results))
}
