package run

import "fmt"

// Outcome classifies one unit's execution.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Errored
	Skipped
)

// String returns the outcome for logs and test output.
func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MaxFailureExitCode caps the exit code derived from unit counts, keeping
// large suites out of the range reserved for the orchestrator's own fatal
// codes and the shell's signal codes.
const MaxFailureExitCode = 120

// Result tallies unit outcomes across one run.
type Result struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// Add tallies one outcome.
func (r *Result) Add(o Outcome) {
	switch o {
	case Passed:
		r.Passed++
	case Failed:
		r.Failed++
	case Errored:
		r.Errored++
	case Skipped:
		r.Skipped++
	}
}

// Total returns the number of units accounted for.
func (r Result) Total() int {
	return r.Passed + r.Failed + r.Errored + r.Skipped
}

// ExitCode derives the process outcome from the counts: zero for a clean
// run, otherwise failed plus errored, capped at MaxFailureExitCode.
func (r Result) ExitCode() int {
	return min(r.Failed+r.Errored, MaxFailureExitCode)
}
