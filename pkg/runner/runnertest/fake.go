// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package runnertest provides a scripted runner.Executor for tests.
package runnertest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

// Response is the scripted outcome of a command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Hook runs before the response is returned, e.g. to create files a
	// real command would have produced.
	Hook func(cmd runner.Command)
}

// Fake matches each command line against registered prefixes. The longest
// matching prefix wins; unmatched commands succeed with empty output.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	Calls     []runner.Command
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{responses: make(map[string]Response)}
}

// On registers a response for commands whose rendered line starts with prefix.
func (f *Fake) On(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = resp
	return f
}

// Run implements runner.Executor.
func (f *Fake) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	line := cmd.String()
	var (
		best  string
		resp  Response
		found bool
	)
	for prefix, r := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(best) {
			best, resp, found = prefix, r, true
		}
	}
	f.mu.Unlock()

	if found && resp.Hook != nil {
		resp.Hook(cmd)
	}
	if cmd.Stdout != nil && resp.Stdout != "" {
		_, _ = io.WriteString(cmd.Stdout, resp.Stdout)
	}
	if cmd.Stderr != nil && resp.Stderr != "" {
		_, _ = io.WriteString(cmd.Stderr, resp.Stderr)
	}
	res := runner.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return res, &runner.ExecError{
			Command:  line,
			Stdout:   resp.Stdout,
			Stderr:   resp.Stderr,
			ExitCode: resp.ExitCode,
		}
	}
	return res, nil
}

// Count returns how many recorded calls start with prefix.
func (f *Fake) Count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c.String(), prefix) {
			n++
		}
	}
	return n
}
