// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config provides configuration management for npm-release.
//
// Configuration Loading Order (later overrides earlier):
// 1. Defaults (hardcoded)
// 2. Project Config: ./.releaserc.yaml, ./.releaserc.yml or ./.releaserc.toml
// 3. Environment Variables: NPM_RELEASE_*
// 4. Command line flags (bound in cmd/npm-release)
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PluginName identifies this plugin in the publish step list.
const PluginName = "npm-release"

// Config represents the complete release configuration.
type Config struct {
	Branches      []BranchConfig `yaml:"branches" toml:"branches"`
	RepositoryURL string         `yaml:"repositoryUrl" toml:"repositoryUrl"`
	TagFormat     string         `yaml:"tagFormat" toml:"tagFormat"`
	DryRun        bool           `yaml:"dryRun" toml:"dryRun"`
	NoCI          bool           `yaml:"noCi" toml:"noCi"`
	LogLevel      string         `yaml:"logLevel" toml:"logLevel"`
	// Plugin holds the raw plugin options. They are validated with
	// ValidatePlugin before being decoded, so malformed values survive
	// loading and are reported together.
	Plugin  map[string]any `yaml:"plugin" toml:"plugin"`
	Publish []PublishStep  `yaml:"publish" toml:"publish"`
	Hooks   HooksConfig    `yaml:"hooks" toml:"hooks"`

	// OriginalRepositoryURL is the URL before credentials were added. It is
	// set at run time and only used for display.
	OriginalRepositoryURL string `yaml:"-" toml:"-"`
}

// BranchConfig is one configured release line.
type BranchConfig struct {
	// Name is an exact branch name or a glob pattern such as "release/*".
	Name string `yaml:"name" toml:"name"`
	// Channel is the distribution channel. Nil means the default channel.
	Channel *string `yaml:"channel" toml:"channel"`
	// Prerelease is false, true (use the branch name as identifier) or an
	// explicit prerelease identifier.
	Prerelease any `yaml:"prerelease" toml:"prerelease"`
}

// UnmarshalYAML accepts either a bare branch name or a mapping.
func (b *BranchConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		b.Name = node.Value
		return nil
	}
	type plain BranchConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("branch entry at line %d: %w", node.Line, err)
	}
	*b = BranchConfig(p)
	return nil
}

// PublishStep is one entry of the publish step list. Only entries whose
// "path" equals PluginName are read.
type PublishStep map[string]any

// UnmarshalYAML accepts either a bare plugin path or a mapping.
func (s *PublishStep) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = PublishStep{"path": node.Value}
		return nil
	}
	m := map[string]any{}
	if err := node.Decode(&m); err != nil {
		return err
	}
	*s = m
	return nil
}

// HooksConfig lists commands run after a release attempt. Each entry is a
// command line split with shell quoting rules.
type HooksConfig struct {
	Fail    []string `yaml:"fail" toml:"fail"`
	Success []string `yaml:"success" toml:"success"`
}

// PluginConfig is the decoded form of validated plugin options.
type PluginConfig struct {
	// NpmPublish is nil when unset. Only an explicit false disables publishing.
	NpmPublish    *bool
	TarballDir    string
	PkgRoot       string
	LocalPackages []string
}

// PublishEnabled reports whether the publish step should run.
func (p PluginConfig) PublishEnabled() bool {
	return p.NpmPublish == nil || *p.NpmPublish
}
