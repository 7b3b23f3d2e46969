// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
)

// decodeTOML decodes a TOML config file. Branch and publish entries may be
// bare strings or inline tables next to the usual array tables.
func decodeTOML(data []byte, cfg *Config) error {
	return toml.NewDecoder(bytes.NewReader(data)).EnableUnmarshalerInterface().Decode(cfg)
}

// UnmarshalTOML accepts either a bare branch name or an inline table.
func (b *BranchConfig) UnmarshalTOML(node *unstable.Node) error {
	v, err := nodeValue(node)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		*b = BranchConfig{Name: v}
		return nil
	case map[string]any:
		return b.fromMap(v)
	default:
		return fmt.Errorf("branch entry must be a string or a table, got %T", v)
	}
}

func (b *BranchConfig) fromMap(m map[string]any) error {
	var out BranchConfig
	for k, v := range m {
		switch k {
		case "name":
			name, ok := v.(string)
			if !ok {
				return fmt.Errorf("branch name must be a string, got %T", v)
			}
			out.Name = name
		case "channel":
			ch, ok := v.(string)
			if !ok {
				return fmt.Errorf("branch channel must be a string, got %T", v)
			}
			out.Channel = &ch
		case "prerelease":
			out.Prerelease = v
		}
	}
	*b = out
	return nil
}

// UnmarshalTOML accepts either a bare plugin path or an inline table.
func (s *PublishStep) UnmarshalTOML(node *unstable.Node) error {
	v, err := nodeValue(node)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		*s = PublishStep{"path": v}
		return nil
	case map[string]any:
		*s = v
		return nil
	default:
		return fmt.Errorf("publish entry must be a string or a table, got %T", v)
	}
}

// nodeValue converts a TOML value node into the Go value toml.Unmarshal would
// produce for an untyped target.
func nodeValue(n *unstable.Node) (any, error) {
	switch n.Kind {
	case unstable.String:
		return string(n.Data), nil
	case unstable.Bool:
		return string(n.Data) == "true", nil
	case unstable.Integer:
		return strconv.ParseInt(string(n.Data), 0, 64)
	case unstable.Float:
		return strconv.ParseFloat(strings.ReplaceAll(string(n.Data), "_", ""), 64)
	case unstable.Array:
		out := []any{}
		it := n.Children()
		for it.Next() {
			v, err := nodeValue(it.Node())
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case unstable.InlineTable:
		out := map[string]any{}
		it := n.Children()
		for it.Next() {
			kv := it.Node()
			v, err := nodeValue(kv.Value())
			if err != nil {
				return nil, err
			}
			setDotted(out, keyParts(kv), v)
		}
		return out, nil
	default:
		return string(n.Data), nil
	}
}

func keyParts(kv *unstable.Node) []string {
	var parts []string
	it := kv.Key()
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}

func setDotted(m map[string]any, parts []string, v any) {
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}
