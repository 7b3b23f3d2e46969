// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package output provides result formatting and reporting.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cicd-ai-toolkit/npm-release/pkg/branches"
	"github.com/cicd-ai-toolkit/npm-release/pkg/release"
)

// Supported formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formatter formats run results.
type Formatter struct {
	format string
}

// NewFormatter creates a formatter. Unknown formats are rejected by Format.
func NewFormatter(format string) *Formatter {
	if format == "" {
		format = FormatText
	}
	return &Formatter{format: strings.ToLower(format)}
}

// Format renders result. A nil result is the no-release outcome.
func (f *Formatter) Format(result *release.Result) (string, error) {
	switch f.format {
	case FormatJSON:
		if result == nil {
			return "false\n", nil
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return string(data) + "\n", nil
	case FormatYAML:
		if result == nil {
			return "false\n", nil
		}
		data, err := yaml.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return string(data), nil
	case FormatText:
		return formatText(result), nil
	default:
		return "", fmt.Errorf("unknown output format %q", f.format)
	}
}

func formatText(result *release.Result) string {
	if result == nil {
		return "No release published.\n"
	}
	var b strings.Builder
	if last := result.LastRelease; last.GitTag != "" {
		fmt.Fprintf(&b, "Last release: %s (%s) on channel %s\n", last.Version, last.GitTag, branches.DisplayChannel(last.Channel))
	} else {
		b.WriteString("Last release: none\n")
	}
	fmt.Fprintf(&b, "Commits analyzed: %d\n", len(result.Commits))
	if len(result.Releases) == 0 {
		b.WriteString("No release published.\n")
		return b.String()
	}
	for _, r := range result.Releases {
		fmt.Fprintf(&b, "Published %s on %s", r.Version, branches.DisplayChannel(r.Channel))
		if r.URL != "" {
			fmt.Fprintf(&b, ": %s", r.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}
