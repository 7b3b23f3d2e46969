// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
	"github.com/cicd-ai-toolkit/npm-release/pkg/hooks"
	"github.com/cicd-ai-toolkit/npm-release/pkg/observability"
	"github.com/cicd-ai-toolkit/npm-release/pkg/platform"
	"github.com/cicd-ai-toolkit/npm-release/pkg/release"
	"github.com/cicd-ai-toolkit/npm-release/pkg/version"
)

// Input is what a host hands to Execute.
type Input struct {
	Cwd    string
	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer
	// Overrides is applied to the loaded configuration, e.g. to honor
	// command line flags.
	Overrides func(cfg *config.Config)
}

// Execute loads the configuration, runs the release and reports its outcome
// to the configured hooks. Output written on behalf of the run has secrets
// from Env masked.
func Execute(ctx context.Context, in Input, opts Options) (*release.Result, error) {
	if in.Stdout == nil {
		in.Stdout = os.Stdout
	}
	if in.Stderr == nil {
		in.Stderr = os.Stderr
	}
	env := make(map[string]string, len(in.Env))
	for k, v := range in.Env {
		env[k] = v
	}
	stdout := observability.NewRedactor(in.Stdout, env)
	stderr := observability.NewRedactor(in.Stderr, env)
	defer func() {
		_ = stdout.Flush()
		_ = stderr.Flush()
	}()

	cfg, err := config.NewLoader().WithProjectRoot(in.Cwd).WithEnv(env).Load()
	if err != nil {
		LogErrors(observability.NewLoggerWithWriters(stdout, stderr, "info"), stderr, err)
		return nil, err
	}
	if in.Overrides != nil {
		in.Overrides(cfg)
	}
	log := observability.NewLoggerWithWriters(stdout, stderr, cfg.LogLevel)
	log.Info(fmt.Sprintf("Running %s version %s", version.Name, version.Version))

	e := New(opts)
	defer func() {
		if err := e.session.Close(); err != nil {
			log.Debug("Failed to remove temporary npm config", observability.Err(err))
		}
	}()
	e.hooks.WithProcess(in.Cwd, env, stdout, stderr)
	if err := e.hooks.RegisterConfig(cfg.Hooks); err != nil {
		LogErrors(log, stderr, err)
		return nil, err
	}

	rc := &release.Context{
		Cwd:     in.Cwd,
		Env:     env,
		CI:      platform.Detect(env),
		Options: cfg,
		Logger:  log,
		Stdout:  stdout,
		Stderr:  stderr,
	}

	res, err := e.Run(ctx, rc)
	if err != nil {
		e.callFail(ctx, log, err)
		LogErrors(log, stderr, err)
		return nil, err
	}
	if res != nil && len(res.Releases) > 0 {
		event := &hooks.Event{Type: hooks.EventSuccess, Data: map[string]any{"releases": res.Releases}}
		if err := e.hooks.Trigger(ctx, event); err != nil {
			log.Error("A success hook failed", observability.Err(err))
		}
	}
	return res, nil
}

// callFail notifies the fail hooks of the semantic errors of err. Hook
// failures are logged and never replace err.
func (e *Engine) callFail(ctx context.Context, log observability.Logger, err error) {
	semantic := errors.Semantic(errors.Extract(err))
	if len(semantic) == 0 {
		return
	}
	if hookErr := e.hooks.Trigger(ctx, hooks.NewFailEvent(semantic)); hookErr != nil {
		log.Error("A fail hook failed", observability.Err(hookErr))
	}
}

// LogErrors reports semantic errors first with their details, then
// unexpected errors.
func LogErrors(log observability.Logger, w io.Writer, err error) {
	for _, e := range errors.SortSemanticFirst(errors.Extract(err)) {
		var se *errors.SemanticError
		if stderrors.As(e, &se) {
			log.Error(fmt.Sprintf("%s %s", se.Code, se.Message))
			if se.Details != "" {
				fmt.Fprintln(w, se.Details)
			}
			continue
		}
		log.Error("An error occurred while running npm-release", observability.Err(e))
	}
}
