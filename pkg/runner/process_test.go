// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package runner_test

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("skipping: %s not available: %v", name, err)
	}
}

func TestProcessExecutorNotFound(t *testing.T) {
	p := runner.NewProcessExecutor()

	_, err := p.Run(context.Background(), runner.Command{Name: "nonexistent-binary-12345"})
	if !errors.Is(err, runner.ErrBinaryNotFound) {
		t.Errorf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestProcessExecutorStreamsOutput(t *testing.T) {
	requireBinary(t, "sh")
	p := runner.NewProcessExecutor()

	var sinkOut, sinkErr bytes.Buffer
	res, err := p.Run(context.Background(), runner.Command{
		Name:   "sh",
		Args:   []string{"-c", "echo hello; echo oops 1>&2"},
		Env:    map[string]string{"PATH": "/usr/bin:/bin"},
		Stdout: &sinkOut,
		Stderr: &sinkErr,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("captured stdout = %q, want hello", res.Stdout)
	}
	if sinkOut.String() != res.Stdout {
		t.Errorf("sink stdout = %q, want %q", sinkOut.String(), res.Stdout)
	}
	if strings.TrimSpace(sinkErr.String()) != "oops" {
		t.Errorf("sink stderr = %q, want oops", sinkErr.String())
	}
}

func TestProcessExecutorFailure(t *testing.T) {
	requireBinary(t, "sh")
	p := runner.NewProcessExecutor()

	_, err := p.Run(context.Background(), runner.Command{
		Name: "sh",
		Args: []string{"-c", "echo denied 1>&2; exit 3"},
		Env:  map[string]string{"PATH": "/usr/bin:/bin"},
	})
	ee, ok := runner.AsExecError(err)
	if !ok {
		t.Fatalf("expected ExecError, got %v", err)
	}
	if ee.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", ee.ExitCode)
	}
	if strings.TrimSpace(ee.Stderr) != "denied" {
		t.Errorf("Stderr = %q, want denied", ee.Stderr)
	}
	if ee.Command != `sh -c echo denied 1>&2; exit 3` {
		t.Errorf("Command = %q", ee.Command)
	}
}

func TestEnvConversion(t *testing.T) {
	env := runner.EnvMap([]string{"A=1", "B=x=y", "broken", "A=2"})
	if env["A"] != "2" || env["B"] != "x=y" {
		t.Errorf("EnvMap() = %v", env)
	}
	if _, ok := env["broken"]; ok {
		t.Error("EnvMap() kept entry without '='")
	}

	list := runner.EnvList(map[string]string{"B": "2", "A": "1"})
	if strings.Join(list, ",") != "A=1,B=2" {
		t.Errorf("EnvList() = %v", list)
	}
	if runner.EnvList(nil) != nil {
		t.Error("EnvList(nil) should be nil")
	}
}
