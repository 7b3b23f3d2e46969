// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

// DefaultTagFormat is the git tag template; ${version} is replaced by the
// released version.
const DefaultTagFormat = "v${version}"

// DefaultConfig returns the default configuration.
// These values are used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		Branches:  DefaultBranches(),
		TagFormat: DefaultTagFormat,
		LogLevel:  "info",
		Plugin:    map[string]any{},
	}
}

// DefaultBranches returns the default release lines.
func DefaultBranches() []BranchConfig {
	return []BranchConfig{
		{Name: "main"},
		{Name: "master"},
		{Name: "next", Channel: strPtr("next")},
		{Name: "next-major", Channel: strPtr("next-major")},
		{Name: "beta", Channel: strPtr("beta"), Prerelease: true},
		{Name: "alpha", Channel: strPtr("alpha"), Prerelease: true},
	}
}

// GetProjectConfigPaths returns the candidate project config files in
// lookup order.
func GetProjectConfigPaths() []string {
	return []string{".releaserc.yaml", ".releaserc.yml", ".releaserc.toml"}
}

func strPtr(s string) *string {
	return &s
}
