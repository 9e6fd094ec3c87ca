package run

import "fmt"

// ReentryError reports a Run call on a controller that already ran. A
// controller owns exactly one run's state; build a fresh one per run.
type ReentryError struct {
	State State
}

func (e *ReentryError) Error() string {
	return fmt.Sprintf("controller already used: state is %s, want %s", e.State, Idle)
}
