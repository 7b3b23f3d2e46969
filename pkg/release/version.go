// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package release

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cicd-ai-toolkit/npm-release/pkg/analyzer"
	"github.com/cicd-ai-toolkit/npm-release/pkg/branches"
)

// FirstVersion is released when no version tag exists yet.
const FirstVersion = "1.0.0"

// NextVersion computes the version following last for a bump of kind t.
// Prerelease branches continue their prerelease counter when last is on
// the same prerelease line.
func NextVersion(last *LastRelease, t analyzer.ReleaseType, branch branches.Branch) (string, error) {
	if last == nil || last.Version == "" {
		if branch.IsPrerelease() {
			return FirstVersion + "-" + branch.Prerelease + ".1", nil
		}
		return FirstVersion, nil
	}

	v, err := semver.StrictNewVersion(last.Version)
	if err != nil {
		return "", fmt.Errorf("parse last version %q: %w", last.Version, err)
	}

	if !branch.IsPrerelease() {
		return bump(*v, t).String(), nil
	}

	if v.Prerelease() != "" && prereleaseID(v) == branch.Prerelease {
		return continuePrerelease(v, branch.Prerelease)
	}
	base := bump(*v, t)
	next, err := base.SetPrerelease(branch.Prerelease + ".1")
	if err != nil {
		return "", fmt.Errorf("set prerelease %q: %w", branch.Prerelease, err)
	}
	return next.String(), nil
}

func bump(v semver.Version, t analyzer.ReleaseType) semver.Version {
	switch t {
	case analyzer.Major:
		return v.IncMajor()
	case analyzer.Minor:
		return v.IncMinor()
	default:
		return v.IncPatch()
	}
}

func continuePrerelease(v *semver.Version, id string) (string, error) {
	counter := 0
	if rest := strings.TrimPrefix(v.Prerelease(), id); strings.HasPrefix(rest, ".") {
		n, err := strconv.Atoi(rest[1:])
		if err == nil {
			counter = n
		}
	}
	next, err := v.SetPrerelease(fmt.Sprintf("%s.%d", id, counter+1))
	if err != nil {
		return "", fmt.Errorf("set prerelease %q: %w", id, err)
	}
	return next.String(), nil
}
