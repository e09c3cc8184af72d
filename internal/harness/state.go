package harness

import "fmt"

// Run states. A run moves strictly forward:
//
//	building -> built -> repairing -> repaired -> inspecting -> installing -> verifying -> done
//
// Inside the cross-policy matrix each expected refusal moves the run to
// rejected and back to repairing for the next attempt. Scenarios without
// a consumer stage jump from inspecting straight to done. A run that
// fails keeps the state it failed in on its journal row, next to the
// error; there is no separate failed state.
const (
	StateBuilding   = "building"
	StateBuilt      = "built"
	StateRepairing  = "repairing"
	StateRepaired   = "repaired"
	StateRejected   = "rejected"
	StateInspecting = "inspecting"
	StateInstalling = "installing"
	StateVerifying  = "verifying"
	StateDone       = "done"
)

var transitions = map[string][]string{
	StateBuilding:   {StateBuilt},
	StateBuilt:      {StateRepairing},
	StateRepairing:  {StateRepaired, StateRejected},
	StateRejected:   {StateRepairing},
	StateRepaired:   {StateInspecting},
	StateInspecting: {StateInstalling, StateDone},
	StateInstalling: {StateVerifying},
	StateVerifying:  {StateDone},
	StateDone:       nil,
}

// ValidTransition reports whether a run may move from one state to the
// other. The zero from-state admits only building.
func ValidTransition(from, to string) bool {
	if from == "" {
		return to == StateBuilding
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// advanceState validates a transition and returns the new state. An
// illegal transition is a driver bug, never a test failure, so it comes
// back as a plain error rather than an AssertionError.
func advanceState(from, to string) (string, error) {
	if !ValidTransition(from, to) {
		return from, fmt.Errorf("illegal state transition %q -> %q", from, to)
	}
	return to, nil
}
