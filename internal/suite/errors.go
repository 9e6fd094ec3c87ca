package suite

import "fmt"

// AmbiguousLabelError is a label that resolves to no unit, group, module,
// or directory. Labels are never silently dropped; an unresolvable one
// fails the whole build.
type AmbiguousLabelError struct {
	Label string
}

func (e *AmbiguousLabelError) Error() string {
	return fmt.Sprintf("label %q does not match any unit, group, module, or directory", e.Label)
}

// ConfigError marks this as a configuration error raised before any store
// is touched.
func (e *AmbiguousLabelError) ConfigError() {}

// UnknownScopeError is a unit scope declaration naming an application the
// rig never registered.
type UnknownScopeError struct {
	Unit string
	App  string
}

func (e *UnknownScopeError) Error() string {
	return fmt.Sprintf("unit %q declares scope app %q, which is not in the rig's app registry", e.Unit, e.App)
}

// ConfigError marks this as a configuration error raised before any store
// is touched.
func (e *UnknownScopeError) ConfigError() {}
