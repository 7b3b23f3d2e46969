// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"strings"

	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
)

// Plugin option keys.
const (
	OptNpmPublish    = "npmPublish"
	OptTarballDir    = "tarballDir"
	OptPkgRoot       = "pkgRoot"
	OptLocalPackages = "localPackages"
)

// ValidatePlugin checks the shape of the raw plugin options. It returns one
// error per malformed option and performs no I/O; an empty result does not
// mean the options are usable against the live package.
func ValidatePlugin(raw map[string]any) []error {
	var errs []error

	if v, ok := present(raw, OptNpmPublish); ok {
		if _, isBool := v.(bool); !isBool {
			errs = append(errs, invalidOption("EINVALIDNPMPUBLISH", OptNpmPublish, "a boolean", v))
		}
	}
	for _, key := range []string{OptTarballDir, OptPkgRoot} {
		v, ok := present(raw, key)
		if !ok {
			continue
		}
		if !isNonBlankString(v) {
			errs = append(errs, invalidOption("EINVALID"+strings.ToUpper(key), key, "a non-empty path", v))
		}
	}
	if v, ok := present(raw, OptLocalPackages); ok {
		if _, valid := toStringList(v); !valid {
			errs = append(errs, invalidOption("EINVALIDLOCALPACKAGES", OptLocalPackages, "a package name or a list of package names", v))
		}
	}
	return errs
}

// DecodePlugin converts validated raw options into a PluginConfig. Values
// that would fail ValidatePlugin are ignored.
func DecodePlugin(raw map[string]any) PluginConfig {
	var pc PluginConfig
	if v, ok := present(raw, OptNpmPublish); ok {
		if b, isBool := v.(bool); isBool {
			pc.NpmPublish = &b
		}
	}
	if v, ok := present(raw, OptTarballDir); ok && isNonBlankString(v) {
		pc.TarballDir = strings.TrimSpace(v.(string))
	}
	if v, ok := present(raw, OptPkgRoot); ok && isNonBlankString(v) {
		pc.PkgRoot = strings.TrimSpace(v.(string))
	}
	if v, ok := present(raw, OptLocalPackages); ok {
		if list, valid := toStringList(v); valid {
			pc.LocalPackages = list
		}
	}
	return pc
}

// MergePublishStep fills npmPublish, tarballDir and pkgRoot from this
// plugin's publish step when the plugin options leave them unset. raw is not
// modified.
func MergePublishStep(raw map[string]any, steps []PublishStep) map[string]any {
	merged := make(map[string]any, len(raw))
	for k, v := range raw {
		merged[k] = v
	}
	var step PublishStep
	for _, s := range steps {
		if path, _ := s["path"].(string); path == PluginName {
			step = s
			break
		}
	}
	if step == nil {
		return merged
	}
	for _, key := range []string{OptNpmPublish, OptTarballDir, OptPkgRoot} {
		if _, ok := present(merged, key); ok {
			continue
		}
		if v, ok := present(step, key); ok {
			merged[key] = v
		}
	}
	return merged
}

// Validator validates the release configuration.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the tag format and branch list. Every problem found is
// returned; the result is empty when the configuration is usable.
func (v *Validator) Validate(cfg *Config) []error {
	var errs []error
	if strings.Count(cfg.TagFormat, "${version}") != 1 {
		errs = append(errs, errors.ValidationError("EINVALIDTAGFORMAT",
			"Invalid `tagFormat` option.").
			WithDetails(fmt.Sprintf("The tagFormat must contain the variable `${version}` exactly once. Your configuration is %q.", cfg.TagFormat)))
	}
	if len(cfg.Branches) == 0 {
		errs = append(errs, errors.ValidationError("EINVALIDBRANCH", "No release branch configured."))
	}
	for i, b := range cfg.Branches {
		if strings.TrimSpace(b.Name) == "" {
			errs = append(errs, errors.ValidationError("EINVALIDBRANCH",
				fmt.Sprintf("The branch at index %d has no name.", i)))
		}
	}
	return errs
}

func present(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func isNonBlankString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

// toStringList accepts a non-blank string or a list of non-blank strings.
func toStringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false
		}
		return []string{strings.TrimSpace(t)}, true
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if strings.TrimSpace(s) == "" {
				return nil, false
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, false
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, true
	default:
		return nil, false
	}
}

func invalidOption(code, key, want string, got any) error {
	return errors.ConfigError(code, fmt.Sprintf("Invalid `%s` option.", key)).
		WithDetails(fmt.Sprintf("The `%s` option, if defined, must be %s. Your configuration for the `%s` option is `%v`.", key, want, key, got))
}
