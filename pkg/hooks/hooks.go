// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package hooks runs the integrations notified when a release run ends.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/shlex"

	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

// EventType represents the event that triggers a hook.
type EventType string

const (
	// EventFail is triggered with the semantic errors of a failed run.
	EventFail EventType = "fail"
	// EventSuccess is triggered with the releases of a successful run.
	EventSuccess EventType = "success"
)

// HandlerFunc is the function called when a hook is triggered.
type HandlerFunc func(ctx context.Context, event *Event) error

// Hook represents an integration hook.
type Hook struct {
	Name    string      `json:"name"`
	Event   EventType   `json:"event"`
	Command string      `json:"command,omitempty"`
	Handler HandlerFunc `json:"-"`
	Enabled bool        `json:"enabled"`

	args []string
}

// ErrorInfo is the serialized form of a semantic error.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Event represents a hook event. Command hooks receive it as JSON on stdin.
type Event struct {
	Type   EventType      `json:"type"`
	Errors []ErrorInfo    `json:"errors,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// NewFailEvent builds the event for a failed run from its semantic errors.
func NewFailEvent(errs []*errors.SemanticError) *Event {
	ev := &Event{Type: EventFail}
	for _, se := range errs {
		ev.Errors = append(ev.Errors, ErrorInfo{Code: se.Code, Message: se.Message, Details: se.Details})
	}
	return ev
}

// Registry manages integration hooks.
type Registry struct {
	mu    sync.RWMutex
	hooks map[EventType][]*Hook

	exec   runner.Executor
	dir    string
	env    map[string]string
	stdout io.Writer
	stderr io.Writer
}

// NewRegistry creates a registry running command hooks through exec.
func NewRegistry(exec runner.Executor) *Registry {
	return &Registry{
		hooks: make(map[EventType][]*Hook),
		exec:  exec,
	}
}

// WithProcess sets the directory, environment and output sinks of command
// hooks.
func (r *Registry) WithProcess(dir string, env map[string]string, stdout, stderr io.Writer) *Registry {
	r.dir, r.env, r.stdout, r.stderr = dir, env, stdout, stderr
	return r
}

// RegisterConfig registers the command hooks of cfg.
func (r *Registry) RegisterConfig(cfg config.HooksConfig) error {
	for i, cmd := range cfg.Fail {
		if err := r.Register(OnFailure(fmt.Sprintf("fail-%d", i)).WithCommand(cmd).Build()); err != nil {
			return err
		}
	}
	for i, cmd := range cfg.Success {
		if err := r.Register(OnSuccess(fmt.Sprintf("success-%d", i)).WithCommand(cmd).Build()); err != nil {
			return err
		}
	}
	return nil
}

// Register registers a new hook.
func (r *Registry) Register(hook *Hook) error {
	if hook.Handler == nil {
		args, err := shlex.Split(hook.Command)
		if err != nil {
			return fmt.Errorf("hook %s: parse command: %w", hook.Name, err)
		}
		if len(args) == 0 {
			return fmt.Errorf("hook %s: no handler or command specified", hook.Name)
		}
		hook.args = args
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[hook.Event] = append(r.hooks[hook.Event], hook)
	return nil
}

// GetHooks returns all hooks for an event type.
func (r *Registry) GetHooks(eventType EventType) []*Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hooks := r.hooks[eventType]
	result := make([]*Hook, len(hooks))
	copy(result, hooks)
	return result
}

// Trigger runs every enabled hook of the event in registration order. A
// failing hook does not stop the others; all failures are returned together.
func (r *Registry) Trigger(ctx context.Context, event *Event) error {
	var errs []error
	for _, hook := range r.GetHooks(event.Type) {
		if !hook.Enabled {
			continue
		}
		if err := r.executeHook(ctx, hook, event); err != nil {
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.Name, err))
		}
	}
	return errors.Aggregate(errs...)
}

// executeHook executes a single hook.
func (r *Registry) executeHook(ctx context.Context, hook *Hook, event *Event) error {
	if hook.Handler != nil {
		return hook.Handler(ctx, event)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = r.exec.Run(ctx, runner.Command{
		Name:   hook.args[0],
		Args:   hook.args[1:],
		Dir:    r.dir,
		Env:    r.env,
		Stdin:  bytes.NewReader(payload),
		Stdout: r.stdout,
		Stderr: r.stderr,
	})
	return err
}

// Builder helps build hooks.
type Builder struct {
	hook *Hook
}

// NewBuilder creates a new hook builder.
func NewBuilder(name string, eventType EventType) *Builder {
	return &Builder{
		hook: &Hook{
			Name:    name,
			Event:   eventType,
			Enabled: true,
		},
	}
}

// WithCommand sets the command to execute.
func (b *Builder) WithCommand(command string) *Builder {
	b.hook.Command = command
	return b
}

// WithHandler sets the handler function.
func (b *Builder) WithHandler(handler HandlerFunc) *Builder {
	b.hook.Handler = handler
	return b
}

// Disabled creates the hook as disabled.
func (b *Builder) Disabled() *Builder {
	b.hook.Enabled = false
	return b
}

// Build creates the hook.
func (b *Builder) Build() *Hook {
	return b.hook
}

// OnFailure creates a failure hook.
func OnFailure(name string) *Builder {
	return NewBuilder(name, EventFail)
}

// OnSuccess creates a success hook.
func OnSuccess(name string) *Builder {
	return NewBuilder(name, EventSuccess)
}
