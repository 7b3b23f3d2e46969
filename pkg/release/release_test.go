// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package release_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicd-ai-toolkit/npm-release/pkg/analyzer"
	"github.com/cicd-ai-toolkit/npm-release/pkg/branches"
	"github.com/cicd-ai-toolkit/npm-release/pkg/release"
)

type fakeTags struct {
	tags  []string
	notes map[string]string
}

func (f *fakeTags) Tags(_ context.Context, _ string) ([]string, error) {
	return f.tags, nil
}

func (f *fakeTags) Note(_ context.Context, ref string) (string, error) {
	return f.notes[ref], nil
}

func ptr(s string) *string { return &s }

func TestResolveHighestRelease(t *testing.T) {
	git := &fakeTags{
		tags: []string{"v1.2.0", "v1.10.0", "v1.9.3", "v2.0.0-beta.1", "latest", "v1.3"},
		notes: map[string]string{
			"v1.10.0": `{"channels":[null,"next"]}`,
		},
	}

	last, err := release.NewLastReleaseResolver(git, "").Resolve(context.Background(), branches.Branch{Name: "main"})
	require.NoError(t, err)

	assert.Equal(t, "1.10.0", last.Version)
	assert.Equal(t, "v1.10.0", last.GitTag)
	assert.Equal(t, "v1.10.0", last.GitHead)
	require.Len(t, last.Channels, 2)
	assert.Nil(t, last.Channels[0])
	assert.Equal(t, "next", *last.Channel)
}

func TestResolvePrereleaseBranch(t *testing.T) {
	git := &fakeTags{tags: []string{"v1.0.0", "v1.1.0-beta.2", "v1.1.0-alpha.7", "v1.1.0-beta.10"}}
	branch := branches.Branch{Name: "beta", Channel: ptr("beta"), Prerelease: "beta"}

	last, err := release.NewLastReleaseResolver(git, "v${version}").Resolve(context.Background(), branch)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0-beta.10", last.Version)
	assert.Nil(t, last.Channel)
}

func TestResolveCustomTagFormat(t *testing.T) {
	git := &fakeTags{tags: []string{"v9.0.0", "pkg@1.4.0", "pkg@1.3.9"}, notes: map[string]string{"pkg@1.4.0": "not json"}}

	last, err := release.NewLastReleaseResolver(git, "pkg@${version}").Resolve(context.Background(), branches.Branch{Name: "main"})
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", last.Version)
	assert.Empty(t, last.Channels)
}

func TestResolveNoTags(t *testing.T) {
	last, err := release.NewLastReleaseResolver(&fakeTags{}, "").Resolve(context.Background(), branches.Branch{Name: "main"})
	require.NoError(t, err)
	assert.Empty(t, last.GitTag)
	assert.Empty(t, last.GitHead)
}

func TestLastReleaseRewriteHead(t *testing.T) {
	last := &release.LastRelease{Version: "1.0.0", GitTag: "v1.0.0", GitHead: "v1.0.0"}

	require.NoError(t, last.RewriteHead("abc123"))
	assert.Equal(t, "abc123", last.GitHead)
	assert.ErrorIs(t, last.RewriteHead("def456"), release.ErrAlreadySet)

	last.Freeze()
	assert.ErrorIs(t, last.SetChannel(ptr("beta")), release.ErrFrozen)
	assert.Nil(t, last.Channel)
}

func TestContextSettersRefuseReplacement(t *testing.T) {
	rc := &release.Context{}

	require.NoError(t, rc.SetBranch(&branches.Branch{Name: "main"}))
	assert.ErrorIs(t, rc.SetBranch(&branches.Branch{Name: "next"}), release.ErrAlreadySet)
	assert.Equal(t, "main", rc.Branch().Name)

	require.NoError(t, rc.SetLastRelease(&release.LastRelease{Version: "1.0.0"}))
	assert.ErrorIs(t, rc.SetLastRelease(&release.LastRelease{}), release.ErrAlreadySet)

	rc.AddRelease(release.Release{Version: "1.1.0"})
	res := rc.Result()
	assert.Equal(t, "1.0.0", res.LastRelease.Version)
	assert.Len(t, res.Releases, 1)
}

func TestNextVersion(t *testing.T) {
	main := branches.Branch{Name: "main"}
	beta := branches.Branch{Name: "beta", Prerelease: "beta"}

	tests := []struct {
		name   string
		last   *release.LastRelease
		kind   analyzer.ReleaseType
		branch branches.Branch
		want   string
	}{
		{"first release", &release.LastRelease{}, analyzer.None, main, "1.0.0"},
		{"first prerelease", nil, analyzer.Minor, beta, "1.0.0-beta.1"},
		{"patch", &release.LastRelease{Version: "1.2.3"}, analyzer.Patch, main, "1.2.4"},
		{"minor", &release.LastRelease{Version: "1.2.3"}, analyzer.Minor, main, "1.3.0"},
		{"major", &release.LastRelease{Version: "1.2.3"}, analyzer.Major, main, "2.0.0"},
		{"start prerelease line", &release.LastRelease{Version: "1.2.3"}, analyzer.Minor, beta, "1.3.0-beta.1"},
		{"continue prerelease line", &release.LastRelease{Version: "1.3.0-beta.4"}, analyzer.Patch, beta, "1.3.0-beta.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := release.NextVersion(tt.last, tt.kind, tt.branch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTag(t *testing.T) {
	assert.Equal(t, "v1.0.0", release.FormatTag("", "1.0.0"))
	assert.Equal(t, "pkg@2.0.0", release.FormatTag("pkg@${version}", "2.0.0"))
	assert.Equal(t, `{"channels":[null,"beta"]}`, release.ChannelsNote([]*string{nil, ptr("beta")}))
}
