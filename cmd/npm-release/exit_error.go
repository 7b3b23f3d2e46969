package main

import (
	"fmt"

	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
)

// Process exit codes.
const (
	ExitSuccess    = 0
	ExitSemantic   = 1
	ExitUnexpected = 2
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE
// handlers. The wrapped error has already been reported.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError maps a run failure to its exit code: ExitSemantic when every
// collected error is a known release error, ExitUnexpected otherwise.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	code := ExitSemantic
	for _, e := range errors.Extract(err) {
		if !errors.IsSemantic(e) {
			code = ExitUnexpected
			break
		}
	}
	return &ExitError{Code: code, Err: err}
}
