package run

import "fmt"

// State is the phase of one run's lifecycle. A controller walks the states
// strictly forward; a failure skips ahead to the teardown phases but never
// back, so every run ends at Reported.
type State int

const (
	// Idle is the initial state; a controller runs once from here.
	Idle State = iota

	// EnvironmentUp means global setup completed.
	EnvironmentUp

	// Discovering means unit discovery and label resolution are in
	// progress.
	Discovering

	// SuiteBuilt means the ordered suite exists and stores may come up.
	SuiteBuilt

	// StoresUp means every store in the rig is provisioned and recorded.
	StoresUp

	// Executing means the unit loop is running.
	Executing

	// StoresDown means the store teardown phase has finished, whether it
	// destroyed stores, kept them, or had none to release.
	StoresDown

	// EnvironmentDown means global teardown completed.
	EnvironmentDown

	// Reported is the terminal state; the report is assembled.
	Reported
)

// String returns the state for logs and reports.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case EnvironmentUp:
		return "environment-up"
	case Discovering:
		return "discovering"
	case SuiteBuilt:
		return "suite-built"
	case StoresUp:
		return "stores-up"
	case Executing:
		return "executing"
	case StoresDown:
		return "stores-down"
	case EnvironmentDown:
		return "environment-down"
	case Reported:
		return "reported"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
