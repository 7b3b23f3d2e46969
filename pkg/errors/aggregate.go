// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package errors

import (
	"errors"
	"sort"
	"strings"
)

// AggregateError carries every failure collected during a validation pass.
type AggregateError struct {
	Errors []error
}

// Aggregate wraps errs into an AggregateError. Nil entries are skipped and
// nil is returned when nothing remains.
func Aggregate(errs ...error) error {
	kept := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &AggregateError{Errors: kept}
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = "  " + err.Error()
	}
	return "multiple errors:\n" + strings.Join(msgs, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Extract flattens err into its leaf errors. Aggregates and errors.Join
// values are expanded recursively; anything else is returned as is.
func Extract(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return extractAll(joined.Unwrap())
	}
	return []error{err}
}

func extractAll(errs []error) []error {
	var out []error
	for _, e := range errs {
		out = append(out, Extract(e)...)
	}
	return out
}

// SortSemanticFirst orders semantic errors before unexpected ones, keeping the
// relative order inside each group.
func SortSemanticFirst(errs []error) []error {
	sorted := make([]error, len(errs))
	copy(sorted, errs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return IsSemantic(sorted[i]) && !IsSemantic(sorted[j])
	})
	return sorted
}

// Semantic returns the SemanticErrors found in errs, in order.
func Semantic(errs []error) []*SemanticError {
	var out []*SemanticError
	for _, err := range errs {
		var se *SemanticError
		if errors.As(err, &se) {
			out = append(out, se)
		}
	}
	return out
}
