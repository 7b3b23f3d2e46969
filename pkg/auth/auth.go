// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package auth decides whether the run may push to the release branch.
package auth

import (
	"context"
	"fmt"

	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

// Decision is the kind of outcome of a push check.
type Decision int

const (
	// Authorized means the push probe succeeded.
	Authorized Decision = iota
	// Stale means the probe failed because the local branch is behind the
	// remote. The run must stop without releasing.
	Stale
	// Denied means the probe failed for any other reason.
	Denied
)

func (d Decision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case Stale:
		return "stale"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Outcome is the result of CheckPush. Command, Stderr and Err describe the
// failed probe when Decision is Denied.
type Outcome struct {
	Decision Decision
	Command  string
	Stderr   string
	Err      error
}

// Error converts a denied outcome into the reported error. It returns nil
// for any other outcome.
func (o Outcome) Error() error {
	if o.Decision != Denied {
		return nil
	}
	return errors.AuthError("EGITNOPERMISSION", "Cannot push to the Git repository.").
		WithDetails(fmt.Sprintf("The command %q failed with the error message %s.", o.Command, o.Stderr)).
		WithCause(o.Err)
}

// Prober runs the git side of the check.
type Prober interface {
	VerifyAuth(ctx context.Context, repositoryURL, branch string) error
	IsBranchUpToDate(ctx context.Context, repositoryURL, branch string) (bool, error)
}

// Checker decides push authorization.
type Checker struct {
	git Prober
}

// NewChecker creates a checker using git.
func NewChecker(git Prober) *Checker {
	return &Checker{git: git}
}

// CheckPush probes push permission to branch. A failed probe is attributed
// to a stale checkout when the remote tip is missing from the local history
// and to missing permission otherwise. The returned error is only set when
// the decision itself could not be made.
func (c *Checker) CheckPush(ctx context.Context, repositoryURL, branch string) (Outcome, error) {
	probeErr := c.git.VerifyAuth(ctx, repositoryURL, branch)
	if probeErr == nil {
		return Outcome{Decision: Authorized}, nil
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	upToDate, err := c.git.IsBranchUpToDate(ctx, repositoryURL, branch)
	if err == nil && !upToDate {
		return Outcome{Decision: Stale}, nil
	}

	// When staleness cannot be established the probe failure stands.
	out := Outcome{Decision: Denied, Err: probeErr}
	if ee, ok := runner.AsExecError(probeErr); ok {
		out.Command = ee.Command
		out.Stderr = ee.Stderr
	} else {
		out.Stderr = probeErr.Error()
	}
	return out, nil
}
