// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all environment variables.
const EnvPrefix = "NPM_RELEASE"

// Loader loads configuration from files and environment.
type Loader struct {
	projectRoot string
	env         map[string]string
}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// WithProjectRoot sets the project root directory.
func (l *Loader) WithProjectRoot(root string) *Loader {
	l.projectRoot = root
	return l
}

// WithEnv sets the environment used for overrides. Without it no
// environment overrides are applied.
func (l *Loader) WithEnv(env map[string]string) *Loader {
	l.env = env
	return l
}

// Load loads configuration with full precedence order:
// 1. Defaults
// 2. Project Config (first of .releaserc.yaml, .releaserc.yml, .releaserc.toml)
// 3. Environment Variables (NPM_RELEASE_*)
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := l.findProjectConfig(); path != "" {
		loaded, err := l.LoadFromPath(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if cfg.Plugin == nil {
		cfg.Plugin = map[string]any{}
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path on top of the
// defaults. The format follows the file extension.
func (l *Loader) LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills the fields a config file left unset.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if len(cfg.Branches) == 0 {
		cfg.Branches = def.Branches
	}
	if cfg.TagFormat == "" {
		cfg.TagFormat = def.TagFormat
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Plugin == nil {
		cfg.Plugin = def.Plugin
	}
}

func (l *Loader) findProjectConfig() string {
	root := l.projectRoot
	if root == "" {
		root = "."
	}
	for _, name := range GetProjectConfigPaths() {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// applyEnvOverrides applies environment variable overrides.
// Format: NPM_RELEASE_KEY=value
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	if v := l.env[EnvPrefix+"_DRY_RUN"]; v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: "dryRun", Err: err}
		}
		cfg.DryRun = b
	}
	if v := l.env[EnvPrefix+"_NO_CI"]; v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: "noCi", Err: err}
		}
		cfg.NoCI = b
	}
	if v := l.env[EnvPrefix+"_REPOSITORY_URL"]; v != "" {
		cfg.RepositoryURL = v
	}
	if v := l.env[EnvPrefix+"_TAG_FORMAT"]; v != "" {
		cfg.TagFormat = v
	}
	if v := l.env[EnvPrefix+"_LOG_LEVEL"]; v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// ConfigError represents a configuration loading error.
type ConfigError struct {
	Path  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return "config error in " + e.Path + ": " + e.Err.Error()
	}
	if e.Field != "" {
		return "config error for " + e.Field + ": " + e.Err.Error()
	}
	return "config error: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
