// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package npm drives the npm CLI for authentication checks, packing,
// publishing and dist-tags.
package npm

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
	"github.com/cicd-ai-toolkit/npm-release/pkg/manifest"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

const (
	// DefaultRegistry is used when neither the package nor the environment
	// configure one.
	DefaultRegistry = "https://registry.npmjs.org/"
	// DefaultDistTag is the dist-tag of the default channel.
	DefaultDistTag = "latest"
	// TokenEnv holds the registry token.
	TokenEnv = "NPM_TOKEN"
)

// Env is the process context npm runs in.
type Env struct {
	Cwd    string
	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer
}

// Client runs npm commands against a private userconfig file.
type Client struct {
	exec  runner.Executor
	npmrc string
	env   Env
}

// NpmrcPath returns the temporary userconfig path of the run id.
func NpmrcPath(id string) string {
	return filepath.Join(os.TempDir(), "npm-release-"+id, ".npmrc")
}

// NewClient creates a client writing its credentials to npmrc.
func NewClient(exec runner.Executor, npmrc string, env Env) *Client {
	return &Client{exec: exec, npmrc: npmrc, env: env}
}

// Npmrc returns the userconfig path the client uses.
func (c *Client) Npmrc() string {
	return c.npmrc
}

// Registry resolves the registry of pkg: publishConfig.registry, then
// NPM_CONFIG_REGISTRY, then the public registry.
func (c *Client) Registry(pkg *manifest.Manifest) string {
	if pkg != nil && pkg.PublishConfig.Registry != "" {
		return pkg.PublishConfig.Registry
	}
	for _, key := range []string{"NPM_CONFIG_REGISTRY", "npm_config_registry"} {
		if v := c.env.Env[key]; v != "" {
			return v
		}
	}
	return DefaultRegistry
}

// DistTag maps a channel to its dist-tag.
func DistTag(channel *string) string {
	if channel == nil || *channel == "" {
		return DefaultDistTag
	}
	return *channel
}

// VerifyAuth writes the userconfig and checks the token with npm whoami.
func (c *Client) VerifyAuth(ctx context.Context, pkg *manifest.Manifest) error {
	registry := c.Registry(pkg)
	if strings.TrimSpace(c.env.Env[TokenEnv]) == "" {
		return errors.AuthError("ENONPMTOKEN", "No npm token specified.").
			WithDetails(fmt.Sprintf("An npm token must be created and set in the `%s` environment variable on your CI environment.", TokenEnv))
	}
	if err := c.writeNpmrc(registry); err != nil {
		return err
	}
	if _, err := c.run(ctx, c.env.Cwd, "whoami", "--userconfig", c.npmrc, "--registry", registry); err != nil {
		return errors.AuthError("EINVALIDNPMTOKEN", "Invalid npm token.").
			WithDetails(fmt.Sprintf("The npm token configured in the `%s` environment variable must be a valid token allowing to publish to the registry %s.", TokenEnv, registry)).
			WithCause(err)
	}
	return nil
}

// SyncLockfile runs npm version so lockfiles follow the manifest version.
func (c *Client) SyncLockfile(ctx context.Context, dir, version string) error {
	if _, err := c.run(ctx, dir, "version", version, "--userconfig", c.npmrc, "--no-git-tag-version", "--allow-same-version"); err != nil {
		return errors.PublishError("ENPMVERSION", fmt.Sprintf("Cannot set version %s with npm.", version)).WithCause(err)
	}
	return nil
}

// Pack packs the package in dir and returns the tarball path relative to the
// client's working directory.
func (c *Client) Pack(ctx context.Context, dir string) (string, error) {
	res, err := c.run(ctx, c.env.Cwd, "pack", dir, "--userconfig", c.npmrc)
	if err != nil {
		return "", errors.PublishError("ENPMPACK", "Cannot pack the npm package.").WithCause(err)
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	tarball := strings.TrimSpace(lines[len(lines)-1])
	if tarball == "" {
		return "", errors.PublishError("ENPMPACK", "npm pack did not report a tarball.")
	}
	return tarball, nil
}

// Publish publishes the package in dir on distTag.
func (c *Client) Publish(ctx context.Context, dir, distTag, registry string) error {
	if _, err := c.run(ctx, c.env.Cwd, "publish", dir, "--userconfig", c.npmrc, "--tag", distTag, "--registry", registry); err != nil {
		return errors.PublishError("ENPMPUBLISH", fmt.Sprintf("Cannot publish to the npm registry %s.", registry)).WithCause(err)
	}
	return nil
}

// AddDistTag points distTag at version of the package.
func (c *Client) AddDistTag(ctx context.Context, name, version, distTag, registry string) error {
	ref := name + "@" + version
	if _, err := c.run(ctx, c.env.Cwd, "dist-tag", "add", ref, distTag, "--userconfig", c.npmrc, "--registry", registry); err != nil {
		return errors.PublishError("ENPMDISTTAG", fmt.Sprintf("Cannot add dist-tag %s to %s.", distTag, ref)).WithCause(err)
	}
	return nil
}

// Info describes a published version.
type Info struct {
	Name string
	URL  string
}

// ReleaseInfo describes version of pkg published on distTag. The URL is only
// known for the public registry.
func ReleaseInfo(pkg *manifest.Manifest, version, distTag, registry string) Info {
	info := Info{Name: fmt.Sprintf("npm package (@%s dist-tag)", distTag)}
	if normalizeRegistry(registry) == DefaultRegistry {
		info.URL = fmt.Sprintf("https://www.npmjs.com/package/%s/v/%s", pkg.Name, version)
	}
	return info
}

// Close removes the userconfig file and its directory when left empty.
func (c *Client) Close() error {
	if err := os.Remove(c.npmrc); err != nil && !os.IsNotExist(err) {
		return err
	}
	_ = os.Remove(filepath.Dir(c.npmrc))
	return nil
}

func (c *Client) writeNpmrc(registry string) error {
	u, err := url.Parse(normalizeRegistry(registry))
	if err != nil || u.Host == "" {
		return errors.ConfigError("EINVALIDREGISTRY", fmt.Sprintf("Invalid registry URL %q.", registry)).WithCause(err)
	}
	line := fmt.Sprintf("//%s%s:_authToken=${%s}\n", u.Host, u.Path, TokenEnv)
	if err := os.MkdirAll(filepath.Dir(c.npmrc), 0o700); err != nil {
		return fmt.Errorf("create userconfig dir: %w", err)
	}
	if err := os.WriteFile(c.npmrc, []byte(line), 0o600); err != nil {
		return fmt.Errorf("write userconfig: %w", err)
	}
	return nil
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (runner.Result, error) {
	return c.exec.Run(ctx, runner.Command{
		Name:   "npm",
		Args:   args,
		Dir:    dir,
		Env:    c.env.Env,
		Stdout: c.env.Stdout,
		Stderr: c.env.Stderr,
	})
}

func normalizeRegistry(registry string) string {
	return strings.TrimRight(registry, "/") + "/"
}
