// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package plugin implements the npm lifecycle steps: verifyConditions,
// prepare, publish and addChannel.
//
// The steps may be called independently by a host. A Session remembers
// what already ran so configuration and registry authentication are checked
// once per run, while the package descriptor is re-read by every step.
package plugin

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/otiai10/copy"

	"github.com/cicd-ai-toolkit/npm-release/pkg/branches"
	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
	"github.com/cicd-ai-toolkit/npm-release/pkg/manifest"
	"github.com/cicd-ai-toolkit/npm-release/pkg/npm"
	"github.com/cicd-ai-toolkit/npm-release/pkg/observability"
	"github.com/cicd-ai-toolkit/npm-release/pkg/release"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

// ErrNoNextRelease is returned by Prepare when the context carries no
// version to prepare.
var ErrNoNextRelease = stderrors.New("plugin: no next release")

// lockfiles are updated through npm when present next to the manifest.
var lockfiles = []string{"package-lock.json", "npm-shrinkwrap.json"}

// Registry is the npm side of the lifecycle.
type Registry interface {
	Registry(pkg *manifest.Manifest) string
	VerifyAuth(ctx context.Context, pkg *manifest.Manifest) error
	SyncLockfile(ctx context.Context, dir, version string) error
	Pack(ctx context.Context, dir string) (string, error)
	Publish(ctx context.Context, dir, distTag, registry string) error
	AddDistTag(ctx context.Context, name, version, distTag, registry string) error
}

// Session is the state of one logical run. It is not safe for concurrent
// use; a host calls the steps sequentially.
type Session struct {
	// ID tags the session's logs and temporary files.
	ID string

	exec     runner.Executor
	npmrc    string
	verified bool
	prepared bool
	phase    Phase
}

// NewSession creates a session running npm through exec.
func NewSession(exec runner.Executor) *Session {
	id := uuid.NewString()
	return &Session{
		ID:    id,
		exec:  exec,
		npmrc: npm.NpmrcPath(id),
	}
}

// Phase returns the furthest step completed.
func (s *Session) Phase() Phase {
	return s.phase
}

// Verified reports whether VerifyConditions succeeded.
func (s *Session) Verified() bool {
	return s.verified
}

// Close removes the temporary npm userconfig.
func (s *Session) Close() error {
	return npm.NewClient(s.exec, s.npmrc, npm.Env{}).Close()
}

func (s *Session) registry(rc *release.Context) Registry {
	return npm.NewClient(s.exec, s.npmrc, npm.Env{
		Cwd:    rc.Cwd,
		Env:    rc.Env,
		Stdout: rc.Stdout,
		Stderr: rc.Stderr,
	})
}

func (s *Session) logger(rc *release.Context) observability.Logger {
	if rc.Logger == nil {
		return observability.Discard()
	}
	return rc.Logger.With(observability.String("session", s.ID))
}

// rawOptions returns the plugin options completed from the publish step.
func rawOptions(rc *release.Context) map[string]any {
	if rc.Options == nil {
		return map[string]any{}
	}
	return config.MergePublishStep(rc.Options.Plugin, rc.Options.Publish)
}

func packageDir(rc *release.Context, pc config.PluginConfig) string {
	return resolveDir(rc.Cwd, pc.PkgRoot)
}

// resolveDir resolves dir against cwd. Absolute paths are kept.
func resolveDir(cwd, dir string) string {
	if dir == "" {
		return cwd
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(cwd, dir)
}

// VerifyConditions validates the plugin options, reads the package and
// checks the registry token unless publishing is disabled or the package is
// private. All problems are reported together.
func (s *Session) VerifyConditions(ctx context.Context, rc *release.Context) error {
	raw := rawOptions(rc)
	errs := config.ValidatePlugin(raw)
	pc := config.DecodePlugin(raw)

	pkg, err := manifest.Read(packageDir(rc, pc))
	if err != nil {
		errs = append(errs, err)
	} else if pc.PublishEnabled() && !pkg.Private {
		if err := s.registry(rc).VerifyAuth(ctx, pkg); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Aggregate(errs...); err != nil {
		return err
	}
	s.verified = true
	return s.advance(PhaseVerified)
}

// check re-reads the package and, when VerifyConditions has not succeeded in
// this session, repeats its validation.
func (s *Session) check(ctx context.Context, rc *release.Context, reg Registry) (*manifest.Manifest, config.PluginConfig, error) {
	raw := rawOptions(rc)
	var errs []error
	if !s.verified {
		errs = config.ValidatePlugin(raw)
	}
	pc := config.DecodePlugin(raw)

	pkg, err := manifest.Read(packageDir(rc, pc))
	if err != nil {
		errs = append(errs, err)
	} else if !s.verified && pc.PublishEnabled() && !pkg.Private {
		if err := reg.VerifyAuth(ctx, pkg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Aggregate(errs...); err != nil {
		return nil, pc, err
	}
	return pkg, pc, nil
}

// Prepare writes the next release version into the package, pins the
// configured local packages and packs the tarball when tarballDir is set.
func (s *Session) Prepare(ctx context.Context, rc *release.Context) error {
	reg := s.registry(rc)
	pkg, pc, err := s.check(ctx, rc, reg)
	if err != nil {
		return err
	}
	if err := s.prepare(ctx, rc, reg, pkg, pc); err != nil {
		return err
	}
	s.prepared = true
	return s.advance(PhasePrepared)
}

func (s *Session) prepare(ctx context.Context, rc *release.Context, reg Registry, pkg *manifest.Manifest, pc config.PluginConfig) error {
	if rc.NextRelease == nil {
		return ErrNoNextRelease
	}
	if last := rc.LastRelease(); last != nil {
		last.Freeze()
	}
	log := s.logger(rc)
	version := rc.NextRelease.Version
	dir := pkg.Dir()

	if rc.DryRun() {
		log.Warn(fmt.Sprintf("Skip writing version %s to package.json in %s in dry-run mode", version, dir))
		return nil
	}

	log.Info(fmt.Sprintf("Write version %s to package.json in %s", version, dir))
	pkg.SetVersion(version)

	if len(pc.LocalPackages) == 0 {
		log.Info("No local packages to update")
	} else if updated := pkg.PinLocalPackages(pc.LocalPackages, version); len(updated) > 0 {
		log.Info(fmt.Sprintf("Update local packages %s to version %s", strings.Join(updated, ", "), version))
	}
	if err := pkg.Write(); err != nil {
		return err
	}

	for _, name := range lockfiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			if err := reg.SyncLockfile(ctx, dir, version); err != nil {
				return err
			}
			break
		}
	}

	if pc.TarballDir == "" {
		return nil
	}
	log.Info(fmt.Sprintf("Creating npm package version %s", version))
	tarball, err := reg.Pack(ctx, dir)
	if err != nil {
		return err
	}
	src := filepath.Join(rc.Cwd, tarball)
	dst := filepath.Join(resolveDir(rc.Cwd, pc.TarballDir), filepath.Base(tarball))
	if src == dst {
		return nil
	}
	if err := copy.Copy(src, dst); err != nil {
		return fmt.Errorf("move tarball to %s: %w", pc.TarballDir, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove packed tarball: %w", err)
	}
	return nil
}

// Publish publishes the next release, running Prepare first when this
// session has not prepared yet. A nil release without error means nothing
// was published.
func (s *Session) Publish(ctx context.Context, rc *release.Context) (*release.Release, error) {
	reg := s.registry(rc)
	pkg, pc, err := s.check(ctx, rc, reg)
	if err != nil {
		return nil, err
	}
	log := s.logger(rc)

	next := rc.NextRelease
	if next == nil {
		log.Info("No release to publish")
		return nil, nil
	}
	if !s.prepared {
		if err := s.prepare(ctx, rc, reg, pkg, pc); err != nil {
			return nil, err
		}
		s.prepared = true
		if err := s.advance(PhasePrepared); err != nil {
			return nil, err
		}
	}

	if skip := skipReason(pc, pkg); skip != "" {
		log.Info("Skip publishing to npm registry as " + skip)
		return nil, nil
	}
	registry := reg.Registry(pkg)
	distTag := npm.DistTag(next.Channel)
	if rc.DryRun() {
		log.Warn(fmt.Sprintf("Skip publishing version %s to %s on dist-tag %s in dry-run mode", next.Version, registry, distTag))
		return nil, nil
	}

	log.Info(fmt.Sprintf("Publishing version %s to npm registry on dist-tag %s", next.Version, distTag))
	if err := reg.Publish(ctx, pkg.Dir(), distTag, registry); err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("Published %s@%s to dist-tag @%s on %s", pkg.Name, next.Version, distTag, registry))
	if err := s.advance(PhasePublished); err != nil {
		return nil, err
	}

	info := npm.ReleaseInfo(pkg, next.Version, distTag, registry)
	return &release.Release{
		Version:    next.Version,
		Channel:    next.Channel,
		Name:       info.Name,
		URL:        info.URL,
		GitTag:     next.GitTag,
		GitHead:    next.GitHead,
		PluginName: config.PluginName,
	}, nil
}

// AddChannel makes the next release available on the branch channel. A nil
// release without error means no dist-tag was added.
func (s *Session) AddChannel(ctx context.Context, rc *release.Context) (*release.Release, error) {
	reg := s.registry(rc)
	pkg, pc, err := s.check(ctx, rc, reg)
	if err != nil {
		return nil, err
	}
	log := s.logger(rc)

	next := rc.NextRelease
	if next == nil {
		log.Info("No release to add to a channel")
		return nil, nil
	}
	channel := next.Channel
	if b := rc.Branch(); b != nil {
		channel = b.Channel
	}

	if skip := skipReason(pc, pkg); skip != "" {
		log.Info("Skip adding to npm channel as " + skip)
		return nil, nil
	}
	registry := reg.Registry(pkg)
	distTag := npm.DistTag(channel)
	if rc.DryRun() {
		log.Warn(fmt.Sprintf("Skip adding version %s to dist-tag %s in dry-run mode", next.Version, distTag))
		return nil, nil
	}

	log.Info(fmt.Sprintf("Adding version %s to npm registry on dist-tag %s", next.Version, distTag))
	if err := reg.AddDistTag(ctx, pkg.Name, next.Version, distTag, registry); err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("Added %s@%s to dist-tag @%s on %s", pkg.Name, next.Version, distTag, registry))

	info := npm.ReleaseInfo(pkg, next.Version, distTag, registry)
	return &release.Release{
		Version:    next.Version,
		Channel:    channel,
		Name:       info.Name,
		URL:        info.URL,
		GitTag:     next.GitTag,
		GitHead:    next.GitHead,
		PluginName: config.PluginName,
	}, nil
}

func skipReason(pc config.PluginConfig, pkg *manifest.Manifest) string {
	if !pc.PublishEnabled() {
		return "npmPublish is false"
	}
	if pkg.Private {
		return "package.json's private property is true"
	}
	return ""
}

// NeedsChannel reports whether AddChannel has work after publishing r from
// branch.
func NeedsChannel(r *release.Release, branch *branches.Branch) bool {
	return r != nil && branch != nil && !branches.SameChannel(r.Channel, branch.Channel)
}
