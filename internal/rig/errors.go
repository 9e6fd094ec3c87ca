package rig

import (
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a rig file problem with source position when CUE can
// provide one.
type CompileError struct {
	File    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// ConfigError marks this as a configuration error raised before any store
// is touched.
func (e *CompileError) ConfigError() {}

// formatCUEError extracts position info from CUE's aggregated errors.
func formatCUEError(file string, err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{File: file, Message: err.Error()}
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{File: file, Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &CompileError{File: file, Field: "cue", Message: first.Error()}
}
