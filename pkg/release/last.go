// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package release

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cicd-ai-toolkit/npm-release/pkg/branches"
	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
)

// TagReader is the part of the git client the resolver needs.
type TagReader interface {
	Tags(ctx context.Context, ref string) ([]string, error)
	Note(ctx context.Context, ref string) (string, error)
}

// LastReleaseResolver finds the highest version tag reachable from HEAD.
type LastReleaseResolver struct {
	git       TagReader
	tagFormat string
}

// NewLastReleaseResolver creates a resolver for tags named after tagFormat.
// An empty tagFormat means config.DefaultTagFormat.
func NewLastReleaseResolver(git TagReader, tagFormat string) *LastReleaseResolver {
	if tagFormat == "" {
		tagFormat = config.DefaultTagFormat
	}
	return &LastReleaseResolver{git: git, tagFormat: tagFormat}
}

type candidate struct {
	tag     string
	version *semver.Version
}

// Resolve returns the last release of branch. A zero LastRelease is returned
// when no tag qualifies.
func (r *LastReleaseResolver) Resolve(ctx context.Context, branch branches.Branch) (*LastRelease, error) {
	tags, err := r.git.Tags(ctx, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	pattern := tagPattern(r.tagFormat)
	var candidates []candidate
	for _, tag := range tags {
		m := pattern.FindStringSubmatch(strings.TrimSpace(tag))
		if m == nil {
			continue
		}
		v, err := semver.StrictNewVersion(m[1])
		if err != nil {
			continue
		}
		if !allowedOn(v, branch) {
			continue
		}
		candidates = append(candidates, candidate{tag: m[0], version: v})
	}
	if len(candidates) == 0 {
		return &LastRelease{}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].version.GreaterThan(candidates[j].version)
	})
	best := candidates[0]

	channels, err := r.channels(ctx, best.tag)
	if err != nil {
		return nil, err
	}
	last := &LastRelease{
		Version:  best.version.String(),
		GitTag:   best.tag,
		GitHead:  best.tag,
		Channels: channels,
	}
	if len(channels) > 0 {
		last.Channel = channels[len(channels)-1]
	}
	return last, nil
}

type note struct {
	Channels []*string `json:"channels"`
}

func (r *LastReleaseResolver) channels(ctx context.Context, tag string) ([]*string, error) {
	raw, err := r.git.Note(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("read note of %s: %w", tag, err)
	}
	if raw == "" {
		return nil, nil
	}
	var n note
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		// A foreign note carries no channel information.
		return nil, nil
	}
	return n.Channels, nil
}

// ChannelsNote renders the note recording the channels of a tag.
func ChannelsNote(channels []*string) string {
	data, _ := json.Marshal(note{Channels: channels})
	return string(data)
}

// FormatTag renders the tag of version.
func FormatTag(tagFormat, version string) string {
	if tagFormat == "" {
		tagFormat = config.DefaultTagFormat
	}
	return strings.Replace(tagFormat, "${version}", version, 1)
}

func tagPattern(tagFormat string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(tagFormat)
	placeholder := regexp.QuoteMeta("${version}")
	return regexp.MustCompile("^" + strings.Replace(quoted, placeholder, "(.+)", 1) + "$")
}

// allowedOn reports whether v may be the last release of branch. Release
// branches ignore prereleases; prerelease branches also accept their own
// prerelease line.
func allowedOn(v *semver.Version, branch branches.Branch) bool {
	if v.Prerelease() == "" {
		return true
	}
	if !branch.IsPrerelease() {
		return false
	}
	return prereleaseID(v) == branch.Prerelease
}

// prereleaseID returns the prerelease part without its trailing counter.
func prereleaseID(v *semver.Version) string {
	pre := v.Prerelease()
	if i := strings.LastIndex(pre, "."); i >= 0 {
		return pre[:i]
	}
	return pre
}
