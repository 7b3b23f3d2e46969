// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package engine_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cicd-ai-toolkit/npm-release/pkg/analyzer"
	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/engine"
	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
	"github.com/cicd-ai-toolkit/npm-release/pkg/git"
	"github.com/cicd-ai-toolkit/npm-release/pkg/hooks"
	"github.com/cicd-ai-toolkit/npm-release/pkg/manifest"
	"github.com/cicd-ai-toolkit/npm-release/pkg/observability"
	"github.com/cicd-ai-toolkit/npm-release/pkg/platform"
	"github.com/cicd-ai-toolkit/npm-release/pkg/release"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner/runnertest"
)

const (
	repoURL = "https://github.com/acme/app.git"
	pkgJSON = `{
  "name": "@acme/app",
  "version": "0.0.0-development"
}
`
)

func newContext(t *testing.T, branch string) (*release.Context, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(pkgJSON), 0o644))

	cfg := config.DefaultConfig()
	cfg.RepositoryURL = repoURL
	return &release.Context{
		Cwd:     dir,
		Env:     map[string]string{"NPM_TOKEN": "secret-npm-token"},
		CI:      platform.Env{Name: "github", IsCI: true, Branch: branch},
		Options: cfg,
		Logger:  observability.Discard(),
	}, dir
}

func newEngine(t *testing.T, fake *runnertest.Fake) *engine.Engine {
	t.Helper()
	e := engine.New(engine.Options{Executor: fake})
	t.Cleanup(func() { _ = e.Session().Close() })
	return e
}

func readVersion(t *testing.T, dir string) string {
	t.Helper()
	m, err := manifest.Read(dir)
	require.NoError(t, err)
	return m.Version
}

func commitLog(subjects ...string) string {
	var b bytes.Buffer
	for i, s := range subjects {
		b.WriteString("c")
		b.WriteByte(byte('0' + i))
		b.WriteString("\x1f" + s + "\x1f\x1e")
	}
	return b.String()
}

func TestFirstReleaseOnDefaultChannel(t *testing.T) {
	fake := runnertest.New().On("git rev-parse HEAD", runnertest.Response{Stdout: "abc123\n"})
	e := newEngine(t, fake)
	rc, dir := newContext(t, "main")

	res, err := e.Run(context.Background(), rc)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Releases, 1)

	rel := res.Releases[0]
	assert.Equal(t, "1.0.0", rel.Version)
	assert.Nil(t, rel.Channel)
	assert.Equal(t, "v1.0.0", rel.GitTag)
	assert.Equal(t, "abc123", rel.GitHead)
	assert.Equal(t, "1.0.0", readVersion(t, dir))

	assert.Equal(t, 1, fake.Count("git tag v1.0.0 abc123"))
	assert.Equal(t, 1, fake.Count(`git notes --ref semantic-release add -f -m {"channels":[null]} v1.0.0`))
	assert.Equal(t, 1, fake.Count("git push --tags "+repoURL))
	assert.Equal(t, 1, fake.Count("npm publish "+dir))
	assert.Equal(t, 1, fake.Count("npm whoami"))
	assert.Equal(t, "semantic-release-bot", fake.Calls[0].Env["GIT_AUTHOR_NAME"])

	assert.Equal(t, []engine.State{
		engine.StateStart,
		engine.StateCiModeDetect,
		engine.StateNormal,
		engine.StateVerify,
		engine.StateBranchResolve,
		engine.StateAuthCheck,
		engine.StateLastReleaseResolve,
		engine.StateCommitAnalyze,
		engine.StateChannelReconcile,
		engine.StatePrepare,
		engine.StatePublish,
		engine.StatePublished,
	}, e.Trace())
}

func TestForcedDryRunOutsideCI(t *testing.T) {
	fake := runnertest.New()
	e := newEngine(t, fake)
	rc, dir := newContext(t, "main")
	rc.CI = platform.Env{Name: platform.Local, Branch: "main"}

	res, err := e.Run(context.Background(), rc)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Releases)

	assert.True(t, rc.Options.DryRun)
	assert.Equal(t, engine.StateNoPublish, e.State())
	assert.Contains(t, e.Trace(), engine.StateDryRunForced)
	assert.Equal(t, "0.0.0-development", readVersion(t, dir))
	assert.Equal(t, 0, fake.Count("npm publish"))
	assert.Equal(t, 0, fake.Count("git tag v"))
	assert.Equal(t, 0, fake.Count("git push --tags"))
}

func TestPullRequestNeverReleases(t *testing.T) {
	fake := runnertest.New()
	e := newEngine(t, fake)
	rc, _ := newContext(t, "main")
	rc.CI = platform.Env{Name: "github", IsCI: true, IsPR: true, Branch: "main", PRBranch: "feature"}

	res, err := e.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, engine.StatePrAbort, e.State())
	assert.Equal(t, 0, fake.Count("git push"))
	assert.Empty(t, fake.Calls)
}

func TestBranchOutsidePolicy(t *testing.T) {
	fake := runnertest.New()
	e := newEngine(t, fake)
	rc, _ := newContext(t, "feature/login")

	res, err := e.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, engine.StateNoBranch, e.State())
	assert.Equal(t, 0, fake.Count("git push"))
}

func TestPushDenied(t *testing.T) {
	fake := runnertest.New().
		On("git push --dry-run", runnertest.Response{ExitCode: 128, Stderr: "remote: Permission denied"}).
		On("git ls-remote --heads", runnertest.Response{Stdout: ""})
	e := newEngine(t, fake)
	rc, _ := newContext(t, "main")

	res, err := e.Run(context.Background(), rc)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.HasCode(err, "EGITNOPERMISSION"))

	se := errors.Semantic(errors.Extract(err))
	require.Len(t, se, 1)
	assert.Contains(t, se[0].Details, "git push --dry-run --no-verify "+repoURL+" HEAD:main")
	assert.Contains(t, se[0].Details, "remote: Permission denied")

	ee, ok := runner.AsExecError(err)
	require.True(t, ok)
	assert.Equal(t, 128, ee.ExitCode)
	assert.Equal(t, engine.StateAuthFail, e.State())
	assert.Equal(t, 0, fake.Count("npm whoami"))
}

func TestStaleBranchStopsWithoutError(t *testing.T) {
	fake := runnertest.New().
		On("git push --dry-run", runnertest.Response{ExitCode: 1, Stderr: "rejected"}).
		On("git ls-remote --heads", runnertest.Response{Stdout: "deadbeef\trefs/heads/main\n"}).
		On("git merge-base --is-ancestor deadbeef HEAD", runnertest.Response{ExitCode: 1})
	e := newEngine(t, fake)
	rc, _ := newContext(t, "main")

	res, err := e.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, engine.StateStaleAbort, e.State())
	assert.Equal(t, 0, fake.Count("npm whoami"))
}

func TestNoRelevantCommits(t *testing.T) {
	fake := runnertest.New().
		On("git tag --merged HEAD", runnertest.Response{Stdout: "v1.0.0\n"}).
		On("git log", runnertest.Response{Stdout: commitLog("chore: tidy up", "docs: typo")})
	e := newEngine(t, fake)
	rc, dir := newContext(t, "main")

	res, err := e.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, engine.StateNoRelevantCommits, e.State())
	assert.Equal(t, "0.0.0-development", readVersion(t, dir))
	assert.Equal(t, 0, fake.Count("npm publish"))
	assert.Equal(t, 1, fake.Count("git log --format="))
}

func TestGraduatesOntoBranchChannel(t *testing.T) {
	fake := runnertest.New().
		On("git tag --merged HEAD", runnertest.Response{Stdout: "v1.0.0\n"}).
		On("git log", runnertest.Response{Stdout: commitLog("feat: add login")}).
		On("git rev-list -1 v1.0.0", runnertest.Response{Stdout: "c0ffee\n"}).
		On("git rev-parse HEAD", runnertest.Response{Stdout: "abc123\n"})
	e := newEngine(t, fake)
	rc, dir := newContext(t, "beta")

	res, err := e.Run(context.Background(), rc)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "c0ffee", res.LastRelease.GitHead)
	require.NotNil(t, res.LastRelease.Channel)
	assert.Equal(t, "beta", *res.LastRelease.Channel)

	require.Len(t, res.Releases, 1)
	rel := res.Releases[0]
	assert.Equal(t, "1.1.0-beta.1", rel.Version)
	require.NotNil(t, rel.Channel)
	assert.Equal(t, "beta", *rel.Channel)
	assert.Equal(t, "1.1.0-beta.1", readVersion(t, dir))
	assert.Equal(t, 1, fake.Count("git log --format=%H\x1f%s\x1f%b\x1e v1.0.0..HEAD"))
	assert.Equal(t, 1, fake.Count(`git notes --ref semantic-release add -f -m {"channels":["beta"]} v1.1.0-beta.1`))
	assert.Equal(t, 1, fake.Count("npm publish "+dir+" --userconfig"))
	assert.NotContains(t, e.Trace(), engine.StateAddChannel)
}

func TestFetchesTagsBeforeResolvingLastRelease(t *testing.T) {
	fake := runnertest.New()
	fake.
		On("git rev-parse --is-shallow-repository", runnertest.Response{Stdout: "true\n"}).
		On("git fetch --tags", runnertest.Response{Hook: func(runner.Command) {
			fake.On("git tag --merged HEAD", runnertest.Response{Stdout: "v1.0.0\n"})
		}}).
		On("git fetch "+repoURL+" +refs/notes/", runnertest.Response{ExitCode: 128, Stderr: "fatal: couldn't find remote ref"}).
		On("git log", runnertest.Response{Stdout: commitLog("fix: handle empty input")}).
		On("git rev-list -1 v1.0.0", runnertest.Response{Stdout: "c0ffee\n"}).
		On("git rev-parse HEAD", runnertest.Response{Stdout: "abc123\n"})
	e := newEngine(t, fake)
	rc, _ := newContext(t, "main")

	res, err := e.Run(context.Background(), rc)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Releases, 1)
	assert.Equal(t, "1.0.1", res.Releases[0].Version)
	assert.Equal(t, 1, fake.Count("git fetch --tags --unshallow "+repoURL))
}

func TestMissingRepositoryURL(t *testing.T) {
	fake := runnertest.New()
	e := newEngine(t, fake)
	rc, _ := newContext(t, "main")
	rc.Options.RepositoryURL = ""

	_, err := e.Run(context.Background(), rc)
	assert.True(t, errors.HasCode(err, "ENOREPOURL"))
	assert.Equal(t, engine.StateFailed, e.State())
}

func TestInvalidTagFormat(t *testing.T) {
	e := newEngine(t, runnertest.New())
	rc, _ := newContext(t, "main")
	rc.Options.TagFormat = "release"

	_, err := e.Run(context.Background(), rc)
	assert.True(t, errors.HasCode(err, "EINVALIDTAGFORMAT"))
}

func TestGitEnvKeepsCallerValues(t *testing.T) {
	env := engine.GitEnv(map[string]string{
		"GIT_AUTHOR_NAME":     "Release Team",
		"GIT_TERMINAL_PROMPT": "1",
	})
	assert.Equal(t, "Release Team", env["GIT_AUTHOR_NAME"])
	assert.Equal(t, engine.CommitEmail, env["GIT_AUTHOR_EMAIL"])
	assert.Equal(t, engine.CommitName, env["GIT_COMMITTER_NAME"])
	assert.Equal(t, "0", env["GIT_TERMINAL_PROMPT"])
	assert.Equal(t, "echo", env["GIT_ASKPASS"])
}

func writeReleaserc(t *testing.T, dir string) {
	t.Helper()
	rc := `repositoryUrl: ` + repoURL + `
hooks:
  fail:
    - notify --status failed
  success:
    - announce
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".releaserc.yaml"), []byte(rc), 0o644))
}

func githubEnv() map[string]string {
	return map[string]string{
		"GITHUB_ACTIONS":    "true",
		"GITHUB_EVENT_NAME": "push",
		"GITHUB_REF":        "refs/heads/main",
		"NPM_TOKEN":         "secret-npm-token",
	}
}

func TestExecuteReportsFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(pkgJSON), 0o644))
	writeReleaserc(t, dir)

	fake := runnertest.New().
		On("git push --dry-run", runnertest.Response{ExitCode: 128, Stderr: "denied for secret-npm-token"})
	var stdout, stderr bytes.Buffer

	res, err := engine.Execute(context.Background(), engine.Input{
		Cwd:    dir,
		Env:    githubEnv(),
		Stdout: &stdout,
		Stderr: &stderr,
	}, engine.Options{Executor: fake})
	require.Error(t, err)
	assert.Nil(t, res)

	assert.Equal(t, 1, fake.Count("notify --status failed"))
	assert.Equal(t, 0, fake.Count("announce"))
	assert.Contains(t, stderr.String(), "EGITNOPERMISSION")
	assert.Contains(t, stderr.String(), observability.Mask)
	assert.NotContains(t, stderr.String(), "secret-npm-token")
	assert.Contains(t, stdout.String(), "Running npm-release version")
}

func TestExecuteNotifiesSuccess(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(pkgJSON), 0o644))
	writeReleaserc(t, dir)

	fake := runnertest.New().On("git rev-parse HEAD", runnertest.Response{Stdout: "abc123\n"})
	res, err := engine.Execute(context.Background(), engine.Input{
		Cwd:    dir,
		Env:    githubEnv(),
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
		Overrides: func(cfg *config.Config) {
			cfg.TagFormat = "release-${version}"
		},
	}, engine.Options{Executor: fake})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Releases, 1)
	assert.Equal(t, "release-1.0.0", res.Releases[0].GitTag)

	assert.Equal(t, 1, fake.Count("announce"))
	assert.Equal(t, 0, fake.Count("notify"))
}

func TestExecuteKeepsErrorWhenFailHookFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(pkgJSON), 0o644))
	writeReleaserc(t, dir)

	fake := runnertest.New().
		On("git push --dry-run", runnertest.Response{ExitCode: 128, Stderr: "remote: Permission denied"}).
		On("notify", runnertest.Response{ExitCode: 3, Stderr: "notifier down"})
	var stderr bytes.Buffer

	_, err := engine.Execute(context.Background(), engine.Input{
		Cwd:    dir,
		Env:    githubEnv(),
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
	}, engine.Options{Executor: fake})
	require.Error(t, err)

	assert.True(t, errors.HasCode(err, "EGITNOPERMISSION"))
	assert.NotContains(t, err.Error(), "notifier down")
	assert.Equal(t, 1, fake.Count("notify --status failed"))
	assert.Contains(t, stderr.String(), "A fail hook failed")
	assert.Contains(t, stderr.String(), "EGITNOPERMISSION")
}

type analyzerFunc func(commits []git.Commit) (analyzer.ReleaseType, error)

func (f analyzerFunc) Analyze(commits []git.Commit) (analyzer.ReleaseType, error) {
	return f(commits)
}

func TestExecuteFailHookGetsOnlySemanticErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(pkgJSON), 0o644))
	writeReleaserc(t, dir)

	fake := runnertest.New().
		On("git tag --merged HEAD", runnertest.Response{Stdout: "v1.0.0\n"}).
		On("git log", runnertest.Response{Stdout: commitLog("feat: add login")})
	failing := analyzerFunc(func([]git.Commit) (analyzer.ReleaseType, error) {
		return analyzer.None, errors.Aggregate(
			errors.ConfigError("EINVALIDCOMMIT", "A commit message cannot be parsed."),
			stderrors.New("parser crashed"),
		)
	})

	var events []*hooks.Event
	reg := hooks.NewRegistry(fake)
	require.NoError(t, reg.Register(hooks.OnFailure("capture").WithHandler(func(_ context.Context, ev *hooks.Event) error {
		events = append(events, ev)
		return nil
	}).Build()))
	var stderr bytes.Buffer

	_, err := engine.Execute(context.Background(), engine.Input{
		Cwd:    dir,
		Env:    githubEnv(),
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
	}, engine.Options{Executor: fake, Analyzer: failing, Hooks: reg})
	require.Error(t, err)
	assert.Len(t, errors.Extract(err), 2)

	require.Len(t, events, 1)
	require.Len(t, events[0].Errors, 1)
	assert.Equal(t, "EINVALIDCOMMIT", events[0].Errors[0].Code)
	assert.Contains(t, stderr.String(), "EINVALIDCOMMIT")
	assert.Contains(t, stderr.String(), "An error occurred while running npm-release")
}
