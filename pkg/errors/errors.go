// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package errors provides the coded errors reported by npm-release.
//
// Errors created with New are "semantic": they describe something the
// operator can fix (a bad option, a missing token) and carry a stable code.
// Any other error reaching the reporter is treated as unexpected.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrConfig indicates a malformed plugin option
	ErrConfig ErrorType = iota
	// ErrAuth indicates missing git or registry permissions
	ErrAuth
	// ErrManifest indicates an unreadable or unwritable package descriptor
	ErrManifest
	// ErrPublish indicates a failed registry operation
	ErrPublish
	// ErrValidation indicates an invalid branch or tag setup
	ErrValidation
)

// SemanticError is a user-facing error with a stable code.
type SemanticError struct {
	Type    ErrorType
	Code    string
	Message string
	// Details is an optional longer explanation, written to the error stream.
	Details string
	Cause   error
}

// Error returns the error message
func (e *SemanticError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Message, e.Cause)
	}
	return e.Code + " " + e.Message
}

// Unwrap returns the underlying cause
func (e *SemanticError) Unwrap() error {
	return e.Cause
}

// New creates a new SemanticError
func New(errType ErrorType, code, message string) *SemanticError {
	return &SemanticError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WithDetails sets the long-form explanation.
func (e *SemanticError) WithDetails(details string) *SemanticError {
	e.Details = details
	return e
}

// WithCause records the underlying error.
func (e *SemanticError) WithCause(cause error) *SemanticError {
	e.Cause = cause
	return e
}

// IsSemantic reports whether err is, or wraps, a SemanticError.
func IsSemantic(err error) bool {
	var se *SemanticError
	return errors.As(err, &se)
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var se *SemanticError
	if err == nil {
		return false
	}
	if errors.As(err, &se) {
		return se.Type == errType
	}
	return false
}

// HasCode reports whether err is, or wraps, a SemanticError with the given code.
func HasCode(err error, code string) bool {
	var se *SemanticError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func (t ErrorType) String() string {
	switch t {
	case ErrConfig:
		return "CONFIG"
	case ErrAuth:
		return "AUTH"
	case ErrManifest:
		return "MANIFEST"
	case ErrPublish:
		return "PUBLISH"
	case ErrValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// Convenience functions for common errors

// ConfigError creates a configuration error
func ConfigError(code, message string) *SemanticError {
	return New(ErrConfig, code, message)
}

// AuthError creates an authorization error
func AuthError(code, message string) *SemanticError {
	return New(ErrAuth, code, message)
}

// ManifestError creates a package descriptor error
func ManifestError(code, message string) *SemanticError {
	return New(ErrManifest, code, message)
}

// PublishError creates a registry error
func PublishError(code, message string) *SemanticError {
	return New(ErrPublish, code, message)
}

// ValidationError creates a branch/tag validation error
func ValidationError(code, message string) *SemanticError {
	return New(ErrValidation, code, message)
}
