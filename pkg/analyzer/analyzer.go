// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package analyzer classifies commits into the kind of release they warrant.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/cicd-ai-toolkit/npm-release/pkg/git"
)

// ReleaseType is the version bump a set of commits warrants.
type ReleaseType int

const (
	// None means no commit is relevant for a release.
	None ReleaseType = iota
	Patch
	Minor
	Major
)

func (t ReleaseType) String() string {
	switch t {
	case None:
		return "none"
	case Patch:
		return "patch"
	case Minor:
		return "minor"
	case Major:
		return "major"
	default:
		return "unknown"
	}
}

// Analyzer classifies a commit range.
type Analyzer interface {
	Analyze(commits []git.Commit) (ReleaseType, error)
}

// headerPattern matches "type(scope)!: subject".
var headerPattern = regexp.MustCompile(`^(\w+)(?:\(([^)]*)\))?(!)?:\s`)

// Conventional classifies commits following the Conventional Commits rules.
type Conventional struct {
	// PatchTypes lists the commit types that warrant a patch release.
	PatchTypes []string
}

// NewConventional returns an analyzer releasing fix and perf as patches.
func NewConventional() *Conventional {
	return &Conventional{PatchTypes: []string{"fix", "perf"}}
}

// Analyze returns the highest release type of the commits.
func (c *Conventional) Analyze(commits []git.Commit) (ReleaseType, error) {
	result := None
	for _, commit := range commits {
		if t := c.classify(commit); t > result {
			result = t
		}
		if result == Major {
			break
		}
	}
	return result, nil
}

func (c *Conventional) classify(commit git.Commit) ReleaseType {
	if strings.HasPrefix(commit.Subject, "Revert ") {
		return None
	}
	m := headerPattern.FindStringSubmatch(commit.Subject)
	if m == nil {
		return None
	}
	if m[3] == "!" || hasBreakingNote(commit.Body) {
		return Major
	}
	kind := strings.ToLower(m[1])
	if kind == "feat" {
		return Minor
	}
	for _, p := range c.PatchTypes {
		if kind == p {
			return Patch
		}
	}
	return None
}

func hasBreakingNote(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "BREAKING CHANGE:") || strings.HasPrefix(line, "BREAKING-CHANGE:") {
			return true
		}
	}
	return false
}
