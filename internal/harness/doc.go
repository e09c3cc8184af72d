// Package harness drives wheel verification scenarios end to end.
//
// A scenario takes one wheel through its full lifecycle against one
// policy: build it in a producer environment, repair it with the tool
// under test, inspect what the repair changed, then install and exercise
// the result in a clean consumer environment. The driver owns the
// environments, the per-run io directory, the artifact cache, and the
// journal rows the run leaves behind.
//
// # Stages
//
// Each run moves through the states in state.go, strictly forward. The
// build stage may be satisfied from the artifact cache for wheels whose
// build does not exercise the tool under test. Scenarios opt into extra
// stages: the cross-policy rejection matrix before the real repair, and
// host-side ELF inspection of the repaired wheel after it.
//
// # Scenarios
//
// Scenarios are compiled in, not discovered. Each one is plain data that
// the driver interprets, so every container command a run can issue is
// either spelled out in the catalog or derived from catalog fields by a
// single well-known rule (the repair and show invocations).
//
// # Determinism
//
// Runs take their IDs from a TokenSource and their timestamps from a
// Clock. Production wires UUIDv7 tokens and the system clock; tests wire
// testutil.FixedTokens and testutil.FixedClock so journals and reports
// come out byte-identical and can be compared against golden files.
package harness
