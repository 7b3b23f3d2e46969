// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package branches resolves the release line a CI run belongs to and the
// channel a release is distributed on.
package branches

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
)

// Branch is a release line after pattern expansion.
type Branch struct {
	Name string
	// Channel is nil for the default channel.
	Channel *string
	// Prerelease is the prerelease identifier, empty for release branches.
	Prerelease string
}

// IsPrerelease reports whether versions released from b carry a prerelease
// identifier.
func (b Branch) IsPrerelease() bool {
	return b.Prerelease != ""
}

// RemoteLister lists the branch names of a remote.
type RemoteLister interface {
	RemoteBranches(ctx context.Context, repositoryURL string) ([]string, error)
}

// Expand turns the configured release lines into concrete branches. Names
// containing glob metacharacters are matched against the remote heads, which
// are only listed when at least one pattern is configured.
func Expand(ctx context.Context, configs []config.BranchConfig, remote RemoteLister, repositoryURL string) ([]Branch, error) {
	var (
		heads  []string
		listed bool
		out    []Branch
	)

	for _, cfg := range configs {
		if !isPattern(cfg.Name) {
			b, err := newBranch(cfg.Name, cfg)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
			continue
		}

		if !listed {
			var err error
			heads, err = remote.RemoteBranches(ctx, repositoryURL)
			if err != nil {
				return nil, fmt.Errorf("list remote branches: %w", err)
			}
			sort.Strings(heads)
			listed = true
		}
		for _, head := range heads {
			ok, err := path.Match(cfg.Name, head)
			if err != nil {
				return nil, errors.ValidationError("EINVALIDBRANCH",
					fmt.Sprintf("The branch pattern %q is invalid.", cfg.Name)).WithCause(err)
			}
			if !ok {
				continue
			}
			b, err := newBranch(head, cfg)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
	}

	if dups := duplicates(out); len(dups) > 0 {
		return nil, errors.ValidationError("EDUPLICATEBRANCHES",
			"The `branches` option has duplicate branches.").
			WithDetails(fmt.Sprintf("Each branch in the `branches` option must be unique. Duplicate branches: %s.", strings.Join(dups, ", ")))
	}
	return out, nil
}

// Resolve returns the branch named exactly ciBranch. A nil branch without an
// error means the run is on a branch excluded from the release policy.
func Resolve(branches []Branch, ciBranch string) (*Branch, error) {
	var match *Branch
	for i := range branches {
		if branches[i].Name != ciBranch {
			continue
		}
		if match != nil {
			return nil, errors.ValidationError("EAMBIGUOUSBRANCH",
				fmt.Sprintf("The branch %s matches more than one release line.", ciBranch))
		}
		match = &branches[i]
	}
	return match, nil
}

// Names lists the branch names in order.
func Names(branches []Branch) []string {
	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	return names
}

// ReconcileChannel returns the channel of the release being made. A last
// release on the default channel graduates to the branch channel; otherwise
// the last release keeps its own channel.
func ReconcileChannel(last *string, branch Branch) *string {
	if last == nil && branch.Channel != nil {
		return branch.Channel
	}
	return last
}

// SameChannel compares two channels; nil is the default channel.
func SameChannel(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// DisplayChannel renders a channel for logs. It must not be used for
// comparison.
func DisplayChannel(ch *string) string {
	if ch == nil {
		return "null"
	}
	return *ch
}

func newBranch(name string, cfg config.BranchConfig) (Branch, error) {
	b := Branch{Name: name, Channel: cfg.Channel}

	switch p := cfg.Prerelease.(type) {
	case nil:
	case bool:
		if p {
			b.Prerelease = name
		}
	case string:
		b.Prerelease = strings.TrimSpace(p)
	default:
		return Branch{}, invalidPrerelease(name, fmt.Sprint(p))
	}

	if b.Prerelease != "" {
		if _, err := semver.StrictNewVersion("1.0.0-" + b.Prerelease); err != nil {
			return Branch{}, invalidPrerelease(name, b.Prerelease)
		}
	}
	return b, nil
}

func invalidPrerelease(name, value string) error {
	return errors.ValidationError("EINVALIDBRANCH",
		fmt.Sprintf("The branch %s has an invalid prerelease identifier.", name)).
		WithDetails(fmt.Sprintf("A prerelease identifier must be true or a valid semver prerelease string. Your configuration is `%s`.", value))
}

func isPattern(name string) bool {
	return strings.ContainsAny(name, "*?[")
}

func duplicates(branches []Branch) []string {
	seen := make(map[string]int, len(branches))
	var dups []string
	for _, b := range branches {
		seen[b.Name]++
		if seen[b.Name] == 2 {
			dups = append(dups, b.Name)
		}
	}
	return dups
}
