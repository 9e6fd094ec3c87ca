package topology

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError marks configuration mistakes that are detected before any
// store is touched. The run controller treats them as fatal and skips
// straight to teardown-and-report.
//
// Error types outside this package (label resolution, rig compilation)
// satisfy the interface structurally; IsConfigError matches them all
// through wrapping.
type ConfigError interface {
	error

	// ConfigError is a marker; it carries no behavior.
	ConfigError()
}

// IsConfigError reports whether err (or anything it wraps) is a
// configuration error.
func IsConfigError(err error) bool {
	var ce ConfigError
	return errors.As(err, &ce)
}

// CycleError reports a dependency cycle between store declarations.
// Participants holds the names involved, sorted for stable output.
type CycleError struct {
	Participants []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between stores: %s", strings.Join(e.Participants, ", "))
}

func (e *CycleError) ConfigError() {}

// DuplicateStoreError reports two store declarations sharing a name.
type DuplicateStoreError struct {
	Name string
}

func (e *DuplicateStoreError) Error() string {
	return fmt.Sprintf("store %q is declared more than once", e.Name)
}

func (e *DuplicateStoreError) ConfigError() {}

// UnknownDependencyError reports a dependsOn entry that names no declared
// store.
type UnknownDependencyError struct {
	Store      string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("store %q depends on undeclared store %q", e.Store, e.Dependency)
}

func (e *UnknownDependencyError) ConfigError() {}

// UnknownPrimaryError reports a primary store name that no declaration
// carries.
type UnknownPrimaryError struct {
	Primary string
}

func (e *UnknownPrimaryError) Error() string {
	return fmt.Sprintf("primary store %q is not declared", e.Primary)
}

func (e *UnknownPrimaryError) ConfigError() {}

// UnknownMirrorTargetError reports a mirrorOf entry that names no declared
// store.
type UnknownMirrorTargetError struct {
	Store  string
	Target string
}

func (e *UnknownMirrorTargetError) Error() string {
	return fmt.Sprintf("store %q mirrors undeclared store %q", e.Store, e.Target)
}

func (e *UnknownMirrorTargetError) ConfigError() {}

// MirrorOrderError reports a mirror whose target is ordered after it: the
// redirect would dangle at provisioning time.
type MirrorOrderError struct {
	Store  string
	Target string
}

func (e *MirrorOrderError) Error() string {
	return fmt.Sprintf("store %q mirrors %q, which is created later in the order", e.Store, e.Target)
}

func (e *MirrorOrderError) ConfigError() {}
