// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package release holds the records a release run computes and threads
// through its phases.
package release

import (
	"errors"
	"io"

	"github.com/cicd-ai-toolkit/npm-release/pkg/branches"
	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/git"
	"github.com/cicd-ai-toolkit/npm-release/pkg/observability"
	"github.com/cicd-ai-toolkit/npm-release/pkg/platform"
)

var (
	// ErrAlreadySet is returned when a computed field would be replaced.
	ErrAlreadySet = errors.New("release: field already set")
	// ErrFrozen is returned when the last release is changed after prepare
	// started.
	ErrFrozen = errors.New("release: last release is frozen")
)

// Context is the run-scoped record every phase reads and appends to. Fields
// computed by the run are set once through their setters.
type Context struct {
	Cwd     string
	Env     map[string]string
	CI      platform.Env
	Options *config.Config
	Logger  observability.Logger
	Stdout  io.Writer
	Stderr  io.Writer

	Branches    []branches.Branch
	Commits     []git.Commit
	NextRelease *Release
	Releases    []Release

	branch      *branches.Branch
	lastRelease *LastRelease
}

// Branch returns the resolved branch, nil before resolution.
func (c *Context) Branch() *branches.Branch {
	return c.branch
}

// SetBranch records the resolved branch.
func (c *Context) SetBranch(b *branches.Branch) error {
	if c.branch != nil {
		return ErrAlreadySet
	}
	c.branch = b
	return nil
}

// LastRelease returns the last release, nil before resolution.
func (c *Context) LastRelease() *LastRelease {
	return c.lastRelease
}

// SetLastRelease records the last release.
func (c *Context) SetLastRelease(l *LastRelease) error {
	if c.lastRelease != nil {
		return ErrAlreadySet
	}
	c.lastRelease = l
	return nil
}

// AddRelease appends a produced release.
func (c *Context) AddRelease(r Release) {
	c.Releases = append(c.Releases, r)
}

// DryRun reports whether side effects are simulated.
func (c *Context) DryRun() bool {
	return c.Options != nil && c.Options.DryRun
}

// Result returns the record handed back to the caller.
func (c *Context) Result() *Result {
	res := &Result{Commits: c.Commits, Releases: c.Releases}
	if c.lastRelease != nil {
		res.LastRelease = *c.lastRelease
	}
	if res.Releases == nil {
		res.Releases = []Release{}
	}
	return res
}

// LastRelease is the most recent release reachable from the branch. The
// zero value, without a tag, means nothing was released yet.
type LastRelease struct {
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	// GitHead is the tag name until RewriteHead resolves it to a commit.
	GitHead  string    `json:"gitHead,omitempty" yaml:"gitHead,omitempty"`
	GitTag   string    `json:"gitTag,omitempty" yaml:"gitTag,omitempty"`
	Channel  *string   `json:"channel" yaml:"channel"`
	Channels []*string `json:"channels,omitempty" yaml:"channels,omitempty"`

	rewritten bool
	frozen    bool
}

// RewriteHead replaces GitHead with the commit the tag points to. It may be
// called once and never after Freeze.
func (l *LastRelease) RewriteHead(head string) error {
	if l.frozen {
		return ErrFrozen
	}
	if l.rewritten {
		return ErrAlreadySet
	}
	l.GitHead = head
	l.rewritten = true
	return nil
}

// SetChannel records the channel this release line continues on.
func (l *LastRelease) SetChannel(ch *string) error {
	if l.frozen {
		return ErrFrozen
	}
	l.Channel = ch
	return nil
}

// Freeze makes the record immutable.
func (l *LastRelease) Freeze() {
	l.frozen = true
}

// Release is a version produced by this run.
type Release struct {
	Version    string  `json:"version" yaml:"version"`
	Channel    *string `json:"channel" yaml:"channel"`
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"`
	URL        string  `json:"url,omitempty" yaml:"url,omitempty"`
	GitTag     string  `json:"gitTag,omitempty" yaml:"gitTag,omitempty"`
	GitHead    string  `json:"gitHead,omitempty" yaml:"gitHead,omitempty"`
	PluginName string  `json:"pluginName,omitempty" yaml:"pluginName,omitempty"`
}

// Result is returned to the caller when the run reached the publish phase.
type Result struct {
	LastRelease LastRelease  `json:"lastRelease" yaml:"lastRelease"`
	Commits     []git.Commit `json:"commits" yaml:"commits"`
	Releases    []Release    `json:"releases" yaml:"releases"`
}
