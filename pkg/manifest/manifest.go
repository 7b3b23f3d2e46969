// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package manifest reads and rewrites package.json files. Unknown fields,
// key order and indentation survive a rewrite.
package manifest

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
)

// FileName is the package descriptor file.
const FileName = "package.json"

// DependencyFields are the dependency maps local packages are pinned in.
var DependencyFields = []string{"dependencies", "peerDependencies", "devDependencies"}

// Manifest is a package descriptor.
type Manifest struct {
	Name          string
	Version       string
	Private       bool
	PublishConfig PublishConfig
	// Dependencies maps each field of DependencyFields that is present to
	// its entries.
	Dependencies map[string]map[string]string

	path   string
	indent string
	doc    *object
}

// PublishConfig holds the registry overrides of a package.
type PublishConfig struct {
	Registry string `json:"registry"`
}

// Path returns the file the manifest was read from.
func (m *Manifest) Path() string {
	return m.path
}

// Dir returns the directory holding the manifest.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.path)
}

// Read loads the package.json in dir.
func Read(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ManifestError("ENOPKG", "Missing `package.json` file.").
				WithDetails(fmt.Sprintf("A package.json file at the root of your project is required to release on npm. It was looked up in %s.", dir))
		}
		return nil, errors.ManifestError("EINVALIDPKG", "Unreadable `package.json` file.").WithCause(err)
	}
	return Parse(path, data)
}

// Parse decodes the content of the package.json at path.
func Parse(path string, data []byte) (*Manifest, error) {
	doc := &object{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.ManifestError("EINVALIDPKG", "Invalid `package.json` file.").
			WithDetails(fmt.Sprintf("The package.json file in %s must be a valid JSON object.", filepath.Dir(path))).
			WithCause(err)
	}

	m := &Manifest{
		path:         path,
		indent:       detectIndent(data),
		doc:          doc,
		Dependencies: make(map[string]map[string]string),
	}
	var head struct {
		Name          string        `json:"name"`
		Version       string        `json:"version"`
		Private       bool          `json:"private"`
		PublishConfig PublishConfig `json:"publishConfig"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.ManifestError("EINVALIDPKG", "Invalid `package.json` file.").WithCause(err)
	}
	m.Name, m.Version, m.Private, m.PublishConfig = head.Name, head.Version, head.Private, head.PublishConfig

	for _, field := range DependencyFields {
		raw, ok := doc.get(field)
		if !ok {
			continue
		}
		deps := map[string]string{}
		if err := json.Unmarshal(raw, &deps); err != nil {
			return nil, errors.ManifestError("EINVALIDPKG", fmt.Sprintf("Invalid `%s` in `package.json`.", field)).WithCause(err)
		}
		m.Dependencies[field] = deps
	}

	if strings.TrimSpace(m.Name) == "" {
		return nil, errors.ManifestError("ENOPKGNAME", "Missing `name` property in `package.json`.").
			WithDetails("The package.json's name property is required in order to publish a package to the npm registry.")
	}
	return m, nil
}

// SetVersion sets the version field.
func (m *Manifest) SetVersion(version string) {
	m.Version = version
	m.doc.set("version", marshalString(version))
}

// PinLocalPackages sets every listed package found in any dependency map to
// version. It returns the names that were updated, in order.
func (m *Manifest) PinLocalPackages(names []string, version string) []string {
	var updated []string
	seen := map[string]bool{}
	for _, field := range DependencyFields {
		deps, ok := m.Dependencies[field]
		if !ok {
			continue
		}
		raw, _ := m.doc.get(field)
		sub := &object{}
		if err := json.Unmarshal(raw, sub); err != nil {
			continue
		}
		changed := false
		for _, name := range names {
			if _, ok := deps[name]; !ok {
				continue
			}
			deps[name] = version
			sub.set(name, marshalString(version))
			changed = true
			if !seen[name] {
				seen[name] = true
				updated = append(updated, name)
			}
		}
		if changed {
			m.doc.set(field, sub.compact())
		}
	}
	return updated
}

// Write stores the manifest back to the file it was read from.
func (m *Manifest) Write() error {
	var out bytes.Buffer
	if err := json.Indent(&out, m.doc.compact(), "", m.indent); err != nil {
		return errors.ManifestError("EWRITEPKG", "Cannot write `package.json`.").WithCause(err)
	}
	out.WriteByte('\n')
	if err := os.WriteFile(m.path, out.Bytes(), 0o644); err != nil {
		return errors.ManifestError("EWRITEPKG", "Cannot write `package.json`.").
			WithDetails(fmt.Sprintf("The file %s could not be written.", m.path)).
			WithCause(err)
	}
	return nil
}

// detectIndent returns the indentation of the first indented line, two
// spaces when the file has none.
func detectIndent(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || len(trimmed) == len(line) {
			continue
		}
		return line[:len(line)-len(trimmed)]
	}
	return "  "
}

func marshalString(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}
