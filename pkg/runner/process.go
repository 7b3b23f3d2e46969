// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package runner executes the external git and npm commands a release needs.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
)

// Command describes a single external invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is the complete environment of the child process.
	Env map[string]string
	// Stdin is optional input for the child process.
	Stdin io.Reader
	// Stdout and Stderr receive the output while the process runs, in
	// addition to the captured copy in Result. Nil sinks are skipped.
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line the way it appears in diagnostics.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs commands. Implementations must not retry.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecError is returned when a command exits unsuccessfully. It carries the
// command line and its output for diagnostics.
type ExecError struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	fmt.Fprintf(b, "command %q failed", e.Command)
	if e.ExitCode != 0 {
		fmt.Fprintf(b, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		b.WriteString(": ")
		b.WriteString(s)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// AsExecError unwraps err into an ExecError when possible.
func AsExecError(err error) (*ExecError, bool) {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// ProcessExecutor runs commands with os/exec.
type ProcessExecutor struct{}

// NewProcessExecutor creates an executor backed by real processes.
func NewProcessExecutor() *ProcessExecutor {
	return &ProcessExecutor{}
}

// Run starts the command and drains its output streams concurrently into the
// configured sinks until the process exits.
func (p *ProcessExecutor) Run(ctx context.Context, c Command) (Result, error) {
	if _, err := exec.LookPath(c.Name); err != nil {
		return Result{ExitCode: -1}, &ExecError{Command: c.String(), ExitCode: -1, Err: ErrBinaryNotFound}
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = EnvList(c.Env)
	cmd.Stdin = c.Stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, &ExecError{Command: c.String(), ExitCode: -1, Err: err}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		drain(stdout, &stdoutBuf, c.Stdout)
	}()
	go func() {
		defer wg.Done()
		drain(stderr, &stderrBuf, c.Stderr)
	}()
	// Pipes must be fully read before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	res := Result{Stdout: stdoutBuf.String(), Stderr: stderrBuf.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return res, &ExecError{
			Command:  c.String(),
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			ExitCode: res.ExitCode,
			Err:      waitErr,
		}
	}
	return res, nil
}

// drain copies r into the capture buffer and the optional sink in 32KB chunks.
func drain(r io.Reader, buf *bytes.Buffer, sink io.Writer) {
	copyBuf := make([]byte, 32*1024)
	for {
		n, err := r.Read(copyBuf)
		if n > 0 {
			buf.Write(copyBuf[:n])
			if sink != nil {
				// A failing sink must not stall the child process.
				_, _ = sink.Write(copyBuf[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

// EnvList converts an environment map into the KEY=value form os/exec
// expects, sorted for stable output.
func EnvList(env map[string]string) []string {
	if env == nil {
		return nil
	}
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

// EnvMap converts KEY=value pairs into a map. Later duplicates win.
func EnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env
}
