// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package hooks_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
	"github.com/cicd-ai-toolkit/npm-release/pkg/hooks"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner/runnertest"
)

func TestRegisterConfigSplitsCommands(t *testing.T) {
	reg := hooks.NewRegistry(runnertest.New())
	require.NoError(t, reg.RegisterConfig(config.HooksConfig{
		Fail:    []string{`notify --text "release failed"`},
		Success: []string{"announce"},
	}))

	assert.Len(t, reg.GetHooks(hooks.EventFail), 1)
	assert.Len(t, reg.GetHooks(hooks.EventSuccess), 1)

	err := reg.RegisterConfig(config.HooksConfig{Fail: []string{"   "}})
	assert.Error(t, err)
}

func TestTriggerCommandReceivesEvent(t *testing.T) {
	var stdin []byte
	fake := runnertest.New().On("notify --text release failed", runnertest.Response{
		Hook: func(cmd runner.Command) {
			stdin, _ = io.ReadAll(cmd.Stdin)
		},
	})
	reg := hooks.NewRegistry(fake).WithProcess("/work", map[string]string{"CI": "true"}, nil, nil)
	require.NoError(t, reg.Register(hooks.OnFailure("notify").WithCommand(`notify --text "release failed"`).Build()))

	event := hooks.NewFailEvent([]*errors.SemanticError{
		errors.AuthError("ENONPMTOKEN", "No npm token specified.").WithDetails("set NPM_TOKEN"),
	})
	require.NoError(t, reg.Trigger(context.Background(), event))

	require.Len(t, fake.Calls, 1)
	assert.Equal(t, "/work", fake.Calls[0].Dir)

	var got hooks.Event
	require.NoError(t, json.Unmarshal(stdin, &got))
	assert.Equal(t, hooks.EventFail, got.Type)
	assert.Equal(t, []hooks.ErrorInfo{{Code: "ENONPMTOKEN", Message: "No npm token specified.", Details: "set NPM_TOKEN"}}, got.Errors)
}

func TestTriggerCollectsFailures(t *testing.T) {
	fake := runnertest.New().On("broken", runnertest.Response{ExitCode: 2})
	reg := hooks.NewRegistry(fake)

	var called []string
	require.NoError(t, reg.Register(hooks.OnSuccess("first").WithHandler(func(_ context.Context, _ *hooks.Event) error {
		called = append(called, "first")
		return stderrors.New("boom")
	}).Build()))
	require.NoError(t, reg.Register(hooks.OnSuccess("broken").WithCommand("broken").Build()))
	require.NoError(t, reg.Register(hooks.OnSuccess("disabled").WithHandler(func(_ context.Context, _ *hooks.Event) error {
		called = append(called, "disabled")
		return nil
	}).Disabled().Build()))
	require.NoError(t, reg.Register(hooks.OnSuccess("last").WithHandler(func(_ context.Context, _ *hooks.Event) error {
		called = append(called, "last")
		return nil
	}).Build()))

	err := reg.Trigger(context.Background(), &hooks.Event{Type: hooks.EventSuccess})
	require.Error(t, err)
	assert.Len(t, errors.Extract(err), 2)
	assert.Equal(t, []string{"first", "last"}, called)

	assert.NoError(t, reg.Trigger(context.Background(), &hooks.Event{Type: hooks.EventFail}))
}
