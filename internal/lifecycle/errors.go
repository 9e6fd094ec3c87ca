package lifecycle

import (
	"fmt"
	"strings"
)

// ExistsError is returned by Provider.CreateStore when a store with the
// requested name already exists. The manager turns it into a clobber or a
// user abort; it never reaches the run controller.
type ExistsError struct {
	Name string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("store %q already exists", e.Name)
}

// ProvisionError is a fatal creation failure. By the time it surfaces,
// every store created earlier in the same pass has been rolled back.
type ProvisionError struct {
	Store string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning store %q: %v", e.Store, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// UserAbortedError is a declined destructive prompt. It is a distinct,
// non-retryable cancellation, not a provisioning failure: the caller
// should stop the run, not report a broken environment. Rollback has
// already happened when it surfaces.
type UserAbortedError struct {
	Store string
}

func (e *UserAbortedError) Error() string {
	return fmt.Sprintf("aborted: declined to destroy existing store %q", e.Store)
}

// StoreFailure is one store that could not be destroyed during teardown.
type StoreFailure struct {
	Store string
	Err   error
}

// TeardownError aggregates teardown failures. Teardown keeps going past
// individual failures, so the aggregate lists everything that is still
// standing.
type TeardownError struct {
	Failures []StoreFailure
}

func (e *TeardownError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Store, f.Err)
	}
	return fmt.Sprintf("teardown left %d store(s) standing: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *TeardownError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
