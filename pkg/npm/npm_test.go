// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package npm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
	"github.com/cicd-ai-toolkit/npm-release/pkg/manifest"
	"github.com/cicd-ai-toolkit/npm-release/pkg/npm"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner/runnertest"
)

func newClient(t *testing.T, fake *runnertest.Fake, env map[string]string) *npm.Client {
	t.Helper()
	npmrc := filepath.Join(t.TempDir(), "session", ".npmrc")
	return npm.NewClient(fake, npmrc, npm.Env{Cwd: t.TempDir(), Env: env})
}

func pkg(registry string) *manifest.Manifest {
	m := &manifest.Manifest{Name: "@acme/pkg"}
	m.PublishConfig.Registry = registry
	return m
}

func TestRegistry(t *testing.T) {
	c := newClient(t, runnertest.New(), map[string]string{"NPM_CONFIG_REGISTRY": "https://env.example/"})

	assert.Equal(t, "https://pkg.example/", c.Registry(pkg("https://pkg.example/")))
	assert.Equal(t, "https://env.example/", c.Registry(pkg("")))

	c = newClient(t, runnertest.New(), nil)
	assert.Equal(t, npm.DefaultRegistry, c.Registry(nil))
}

func TestVerifyAuth(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		fake := runnertest.New()
		err := newClient(t, fake, map[string]string{}).VerifyAuth(context.Background(), pkg(""))
		assert.True(t, errors.HasCode(err, "ENONPMTOKEN"))
		assert.Empty(t, fake.Calls)
	})

	t.Run("valid token", func(t *testing.T) {
		fake := runnertest.New().On("npm whoami", runnertest.Response{Stdout: "bot\n"})
		c := newClient(t, fake, map[string]string{"NPM_TOKEN": "secret-token"})

		require.NoError(t, c.VerifyAuth(context.Background(), pkg("https://npm.acme.dev/scoped/")))
		data, err := os.ReadFile(c.Npmrc())
		require.NoError(t, err)
		assert.Equal(t, "//npm.acme.dev/scoped/:_authToken=${NPM_TOKEN}\n", string(data))
		assert.Equal(t, 1, fake.Count("npm whoami --userconfig "+c.Npmrc()+" --registry https://npm.acme.dev/scoped/"))

		require.NoError(t, c.Close())
		_, err = os.Stat(c.Npmrc())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("rejected token", func(t *testing.T) {
		fake := runnertest.New().On("npm whoami", runnertest.Response{ExitCode: 1, Stderr: "E401"})
		err := newClient(t, fake, map[string]string{"NPM_TOKEN": "secret-token"}).VerifyAuth(context.Background(), pkg(""))
		assert.True(t, errors.HasCode(err, "EINVALIDNPMTOKEN"))
	})

	t.Run("invalid registry", func(t *testing.T) {
		err := newClient(t, runnertest.New(), map[string]string{"NPM_TOKEN": "secret-token"}).VerifyAuth(context.Background(), pkg("not a url"))
		assert.True(t, errors.HasCode(err, "EINVALIDREGISTRY"))
	})
}

func TestPackPublishAndDistTag(t *testing.T) {
	fake := runnertest.New().
		On("npm pack", runnertest.Response{Stdout: "npm notice\nacme-pkg-1.0.0.tgz\n"})
	c := newClient(t, fake, nil)
	ctx := context.Background()

	tarball, err := c.Pack(ctx, "/work")
	require.NoError(t, err)
	assert.Equal(t, "acme-pkg-1.0.0.tgz", tarball)

	require.NoError(t, c.Publish(ctx, "/work", "beta", npm.DefaultRegistry))
	assert.Equal(t, 1, fake.Count("npm publish /work --userconfig "+c.Npmrc()+" --tag beta --registry "+npm.DefaultRegistry))

	require.NoError(t, c.AddDistTag(ctx, "@acme/pkg", "1.0.0", "latest", npm.DefaultRegistry))
	assert.Equal(t, 1, fake.Count("npm dist-tag add @acme/pkg@1.0.0 latest"))
}

func TestCommandFailuresAreCoded(t *testing.T) {
	fake := runnertest.New().
		On("npm pack", runnertest.Response{ExitCode: 1}).
		On("npm publish", runnertest.Response{ExitCode: 1}).
		On("npm version", runnertest.Response{ExitCode: 1}).
		On("npm dist-tag", runnertest.Response{ExitCode: 1})
	c := newClient(t, fake, nil)
	ctx := context.Background()

	_, err := c.Pack(ctx, ".")
	assert.True(t, errors.HasCode(err, "ENPMPACK"))
	assert.True(t, errors.HasCode(c.Publish(ctx, ".", "latest", npm.DefaultRegistry), "ENPMPUBLISH"))
	assert.True(t, errors.HasCode(c.SyncLockfile(ctx, ".", "1.0.0"), "ENPMVERSION"))
	assert.True(t, errors.HasCode(c.AddDistTag(ctx, "a", "1.0.0", "b", npm.DefaultRegistry), "ENPMDISTTAG"))
}

func TestDistTagAndReleaseInfo(t *testing.T) {
	beta := "beta"
	assert.Equal(t, "latest", npm.DistTag(nil))
	assert.Equal(t, "beta", npm.DistTag(&beta))

	info := npm.ReleaseInfo(pkg(""), "1.2.3", "latest", "https://registry.npmjs.org")
	assert.Equal(t, "npm package (@latest dist-tag)", info.Name)
	assert.Equal(t, "https://www.npmjs.com/package/@acme/pkg/v/1.2.3", info.URL)

	assert.Empty(t, npm.ReleaseInfo(pkg(""), "1.2.3", "latest", "https://npm.acme.dev/").URL)
}

func TestNpmrcPath(t *testing.T) {
	p := npm.NpmrcPath("run-1")
	assert.Equal(t, ".npmrc", filepath.Base(p))
	assert.Equal(t, "npm-release-run-1", filepath.Base(filepath.Dir(p)))
	assert.Equal(t, filepath.Clean(os.TempDir()), filepath.Dir(filepath.Dir(p)))
}
