package rig

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/testrig/internal/topology"
)

// Load reads and validates a rig file.
//
// The rig is a CUE file of this shape; only stores is required:
//
//	primary: "default"
//	pattern: "unit_*.yaml"
//	apps: ["cart", "billing"]
//	stores: [{
//	    name:           "default"
//	    params:         {file: "default.db"}
//	    dependsOn:      ["..."]
//	    mirrorOf:       ""
//	    resetSequences: false
//	    schema:         ["CREATE TABLE ..."]
//	    fixtures:       ["INSERT INTO ..."]
//	}]
//
// Identifiers (store names, dependencies, mirror targets, apps, primary)
// are NFC-normalized so visually identical spellings collide during
// validation instead of provisioning twice.
func Load(path string) (*Rig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &CompileError{File: path, Message: "rig file not found"}
	} else if err != nil {
		return nil, &CompileError{File: path, Message: fmt.Sprintf("error accessing rig file: %v", err)}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &CompileError{File: path, Message: fmt.Sprintf("resolving path: %v", err)}
	}

	cfg := &load.Config{Dir: filepath.Dir(abs)}
	instances := load.Instances([]string{filepath.Base(abs)}, cfg)
	if len(instances) == 0 {
		return nil, &CompileError{File: path, Message: "no CUE instance loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(path, inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(path, err)
	}

	rig := &Rig{}

	rig.Primary, err = optionalString(value, "primary", path)
	if err != nil {
		return nil, err
	}
	if rig.Primary == "" {
		rig.Primary = DefaultPrimary
	}
	rig.Primary = norm.NFC.String(rig.Primary)

	rig.Pattern, err = optionalString(value, "pattern", path)
	if err != nil {
		return nil, err
	}

	rig.Apps, err = stringList(value, "apps", path)
	if err != nil {
		return nil, err
	}
	for i, app := range rig.Apps {
		rig.Apps[i] = norm.NFC.String(app)
	}

	rig.Stores, err = parseStores(value, path)
	if err != nil {
		return nil, err
	}

	if err := rig.validate(path); err != nil {
		return nil, err
	}
	return rig, nil
}

// parseStores extracts the stores list field by field so errors carry the
// offending element and position.
func parseStores(value cue.Value, file string) ([]topology.StoreSpec, error) {
	storesVal := value.LookupPath(cue.ParsePath("stores"))
	if !storesVal.Exists() {
		return nil, &CompileError{File: file, Field: "stores", Message: "stores list is required"}
	}

	iter, err := storesVal.List()
	if err != nil {
		return nil, &CompileError{File: file, Field: "stores", Message: "must be a list", Pos: storesVal.Pos()}
	}

	var specs []topology.StoreSpec
	for i := 0; iter.Next(); i++ {
		spec, err := parseStore(iter.Value(), fmt.Sprintf("stores[%d]", i), file)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseStore(v cue.Value, field, file string) (topology.StoreSpec, error) {
	var spec topology.StoreSpec
	var err error

	spec.Name, err = requiredString(v, field+".name", "name", file)
	if err != nil {
		return spec, err
	}
	spec.Name = norm.NFC.String(spec.Name)

	spec.Params, err = stringMap(v, field+".params", "params", file)
	if err != nil {
		return spec, err
	}

	deps, err := stringListAt(v, field+".dependsOn", "dependsOn", file)
	if err != nil {
		return spec, err
	}
	for i, dep := range deps {
		deps[i] = norm.NFC.String(dep)
	}
	spec.DependsOn = deps

	mirror, err := optionalStringAt(v, field+".mirrorOf", "mirrorOf", file)
	if err != nil {
		return spec, err
	}
	spec.MirrorOf = norm.NFC.String(mirror)

	spec.ResetSequences, err = optionalBool(v, field+".resetSequences", "resetSequences", file)
	if err != nil {
		return spec, err
	}

	spec.Schema, err = stringListAt(v, field+".schema", "schema", file)
	if err != nil {
		return spec, err
	}
	spec.Fixtures, err = stringListAt(v, field+".fixtures", "fixtures", file)
	if err != nil {
		return spec, err
	}
	return spec, nil
}

func optionalString(v cue.Value, field, file string) (string, error) {
	return optionalStringAt(v, field, field, file)
}

func optionalStringAt(v cue.Value, label, field, file string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{File: file, Field: label, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func requiredString(v cue.Value, label, field, file string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{File: file, Field: label, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{File: file, Field: label, Message: "must be a string", Pos: fv.Pos()}
	}
	if s == "" {
		return "", &CompileError{File: file, Field: label, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalBool(v cue.Value, label, field, file string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, &CompileError{File: file, Field: label, Message: "must be a bool", Pos: fv.Pos()}
	}
	return b, nil
}

// stringList returns nil when the field is absent and a non-nil slice
// (possibly empty) when present, so callers can tell "no registry" from
// "empty registry".
func stringList(v cue.Value, field, file string) ([]string, error) {
	return stringListAt(v, field, field, file)
}

func stringListAt(v cue.Value, label, field, file string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, &CompileError{File: file, Field: label, Message: "must be a list of strings", Pos: fv.Pos()}
	}
	out := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{File: file, Field: label, Message: "must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMap(v cue.Value, label, field, file string) (map[string]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.Fields()
	if err != nil {
		return nil, &CompileError{File: file, Field: label, Message: "must be a struct of strings", Pos: fv.Pos()}
	}
	out := map[string]string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{File: file, Field: label + "." + iter.Label(), Message: "must be a string", Pos: iter.Value().Pos()}
		}
		out[iter.Label()] = s
	}
	return out, nil
}
