package topology

import "fmt"

// StepKind distinguishes the two kinds of provisioning work.
type StepKind int

const (
	// StepCreate provisions a fresh physical store.
	StepCreate StepKind = iota

	// StepMirror records a redirect to an already-created store's
	// connection. No physical store is provisioned.
	StepMirror
)

// String returns the kind for logs and test output.
func (k StepKind) String() string {
	switch k {
	case StepCreate:
		return "create"
	case StepMirror:
		return "mirror"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// ProvisionStep is one instruction for the lifecycle manager. Target is
// set only for StepMirror and names the store whose connection the mirror
// shares.
type ProvisionStep struct {
	Kind   StepKind
	Spec   StoreSpec
	Target string
}

// BindMirrors turns a resolved creation order into provisioning steps,
// rewriting mirror declarations into redirects at their target.
//
// The transform is pure: connection substitution happens later, in the
// lifecycle manager. A mirror's own dependsOn is never consulted.
//
// Binding fails with *UnknownMirrorTargetError when mirrorOf names no
// declared store, and with *MirrorOrderError when the target is created
// after the mirror: a redirect must always land on a store that already
// exists. A mirror may target another mirror; the redirect flattens to the
// physical store when the record is built.
func BindMirrors(order []string, specs []StoreSpec) ([]ProvisionStep, error) {
	byName := make(map[string]StoreSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}

	steps := make([]ProvisionStep, 0, len(order))
	placed := make(map[string]bool, len(order))
	for _, name := range order {
		spec, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("order names undeclared store %q", name)
		}
		if !spec.IsMirror() {
			steps = append(steps, ProvisionStep{Kind: StepCreate, Spec: spec})
			placed[name] = true
			continue
		}
		if _, declared := byName[spec.MirrorOf]; !declared {
			return nil, &UnknownMirrorTargetError{Store: name, Target: spec.MirrorOf}
		}
		if !placed[spec.MirrorOf] {
			return nil, &MirrorOrderError{Store: name, Target: spec.MirrorOf}
		}
		steps = append(steps, ProvisionStep{Kind: StepMirror, Spec: spec, Target: spec.MirrorOf})
		placed[name] = true
	}
	return steps, nil
}
