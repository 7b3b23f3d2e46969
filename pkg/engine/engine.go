// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package engine drives a release run from CI detection to publication.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cicd-ai-toolkit/npm-release/pkg/analyzer"
	"github.com/cicd-ai-toolkit/npm-release/pkg/auth"
	"github.com/cicd-ai-toolkit/npm-release/pkg/branches"
	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/errors"
	"github.com/cicd-ai-toolkit/npm-release/pkg/git"
	"github.com/cicd-ai-toolkit/npm-release/pkg/hooks"
	"github.com/cicd-ai-toolkit/npm-release/pkg/observability"
	"github.com/cicd-ai-toolkit/npm-release/pkg/plugin"
	"github.com/cicd-ai-toolkit/npm-release/pkg/release"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

// Options configures an Engine. Zero fields get the production defaults.
type Options struct {
	Executor runner.Executor
	Analyzer analyzer.Analyzer
	Session  *plugin.Session
	Hooks    *hooks.Registry
}

// Engine runs releases. An Engine serves a single run.
type Engine struct {
	mu sync.RWMutex

	exec     runner.Executor
	analyzer analyzer.Analyzer
	session  *plugin.Session
	hooks    *hooks.Registry

	state State
	trace []State
}

// New creates an engine.
func New(opts Options) *Engine {
	if opts.Executor == nil {
		opts.Executor = runner.NewProcessExecutor()
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analyzer.NewConventional()
	}
	if opts.Session == nil {
		opts.Session = plugin.NewSession(opts.Executor)
	}
	if opts.Hooks == nil {
		opts.Hooks = hooks.NewRegistry(opts.Executor)
	}
	return &Engine{
		exec:     opts.Executor,
		analyzer: opts.Analyzer,
		session:  opts.Session,
		hooks:    opts.Hooks,
		state:    StateStart,
		trace:    []State{StateStart},
	}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Trace returns every state the run went through, in order.
func (e *Engine) Trace() []State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]State, len(e.trace))
	copy(out, e.trace)
	return out
}

// Session returns the plugin session shared by the lifecycle steps.
func (e *Engine) Session() *plugin.Session {
	return e.session
}

func (e *Engine) transition(s State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.CanTransition(s) {
		return &TransitionError{From: e.state, To: s}
	}
	e.state = s
	e.trace = append(e.trace, s)
	return nil
}

// Run performs the release. It returns nil without error when the run ends
// without a release: outside a release branch, on a pull request, on a stale
// checkout or without relevant commits.
func (e *Engine) Run(ctx context.Context, rc *release.Context) (*release.Result, error) {
	res, err := e.run(ctx, rc)
	if err != nil && !e.State().Terminal() {
		_ = e.transition(StateFailed)
	}
	return res, err
}

func (e *Engine) run(ctx context.Context, rc *release.Context) (*release.Result, error) {
	if rc.Options == nil {
		rc.Options = config.DefaultConfig()
	}
	if rc.Logger == nil {
		rc.Logger = observability.Discard()
	}
	opts, ci, log := rc.Options, rc.CI, rc.Logger
	ciBranch := ci.ReleaseBranch()

	if err := e.transition(StateCiModeDetect); err != nil {
		return nil, err
	}
	if !ci.IsCI && !opts.DryRun && !opts.NoCI {
		log.Warn("This run was not triggered in a known CI environment, running in dry-run mode.")
		opts.DryRun = true
		if err := e.transition(StateDryRunForced); err != nil {
			return nil, err
		}
	} else {
		rc.Env = GitEnv(rc.Env)
		if err := e.transition(StateNormal); err != nil {
			return nil, err
		}
	}

	if ci.IsCI && ci.IsPR && !opts.NoCI {
		log.Info("This run was triggered by a pull request and therefore a new version won't be published.")
		if err := e.transition(StatePrAbort); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := e.transition(StateVerify); err != nil {
		return nil, err
	}
	if errs := config.NewValidator().Validate(opts); len(errs) > 0 {
		return nil, errors.Aggregate(errs...)
	}
	g := git.NewClient(e.exec, rc.Cwd, rc.Env)
	if err := e.resolveRepositoryURL(ctx, g, rc); err != nil {
		return nil, err
	}

	if err := e.transition(StateBranchResolve); err != nil {
		return nil, err
	}
	list, err := branches.Expand(ctx, opts.Branches, g, opts.RepositoryURL)
	if err != nil {
		return nil, err
	}
	rc.Branches = list
	branch, err := branches.Resolve(list, ciBranch)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		log.Info(fmt.Sprintf("This run was triggered on the branch %s, while npm-release is configured to only publish from %s, therefore a new version won't be published.",
			ciBranch, strings.Join(branches.Names(list), ", ")))
		if err := e.transition(StateNoBranch); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := rc.SetBranch(branch); err != nil {
		return nil, err
	}
	if opts.DryRun {
		log.Warn(fmt.Sprintf("Run automated release from branch %s on repository %s in dry-run mode", ciBranch, opts.OriginalRepositoryURL))
	} else {
		log.Success(fmt.Sprintf("Run automated release from branch %s on repository %s", ciBranch, opts.OriginalRepositoryURL))
	}

	if err := e.transition(StateAuthCheck); err != nil {
		return nil, err
	}
	outcome, err := auth.NewChecker(g).CheckPush(ctx, opts.RepositoryURL, branch.Name)
	if err != nil {
		return nil, err
	}
	switch outcome.Decision {
	case auth.Stale:
		log.Info(fmt.Sprintf("The local branch %s is behind the remote one, therefore a new version won't be published.", branch.Name))
		if err := e.transition(StateStaleAbort); err != nil {
			return nil, err
		}
		return nil, nil
	case auth.Denied:
		log.Error(fmt.Sprintf("The command %q failed with the error message %s.", outcome.Command, outcome.Stderr))
		if err := e.transition(StateAuthFail); err != nil {
			return nil, err
		}
		return nil, outcome.Error()
	}
	log.Success("Allowed to push to the Git repository")

	if err := e.session.VerifyConditions(ctx, rc); err != nil {
		return nil, err
	}

	if err := e.transition(StateLastReleaseResolve); err != nil {
		return nil, err
	}
	if err := g.FetchTags(ctx, opts.RepositoryURL); err != nil {
		return nil, fmt.Errorf("fetch tags: %w", err)
	}
	if err := g.FetchNotes(ctx, opts.RepositoryURL); err != nil {
		// The remote has no notes before the first release.
		log.Debug("No release notes fetched", observability.Err(err))
	}
	last, err := release.NewLastReleaseResolver(g, opts.TagFormat).Resolve(ctx, *branch)
	if err != nil {
		return nil, err
	}
	if err := rc.SetLastRelease(last); err != nil {
		return nil, err
	}

	if err := e.transition(StateCommitAnalyze); err != nil {
		return nil, err
	}
	kind := analyzer.None
	if last.GitHead != "" {
		if rc.Commits, err = g.Commits(ctx, last.GitHead); err != nil {
			return nil, fmt.Errorf("load commits: %w", err)
		}
		// Analyzer errors may aggregate user-facing ones and are kept as is.
		if kind, err = e.analyzer.Analyze(rc.Commits); err != nil {
			return nil, err
		}
		if kind == analyzer.None {
			log.Info("There are no relevant changes, so no new version is released.")
			if err := e.transition(StateNoRelevantCommits); err != nil {
				return nil, err
			}
			return nil, nil
		}
		head, err := g.TagHead(ctx, last.GitHead)
		if err != nil {
			return nil, fmt.Errorf("resolve tag %s: %w", last.GitTag, err)
		}
		if err := last.RewriteHead(head); err != nil {
			return nil, err
		}
	}

	if err := e.transition(StateChannelReconcile); err != nil {
		return nil, err
	}
	channel := branches.ReconcileChannel(last.Channel, *branch)
	if last.GitTag != "" {
		log.Info(fmt.Sprintf("Found git tag %s @%s associated with version %s on branch %s, channel %s",
			last.GitTag, branches.DisplayChannel(last.Channel), last.Version, branch.Name, branches.DisplayChannel(branch.Channel)))
		if last.Channel == nil && branch.Channel != nil {
			log.Info(fmt.Sprintf("Use branch channel %s instead of last release channel", *branch.Channel))
			if err := last.SetChannel(channel); err != nil {
				return nil, err
			}
		}
	} else {
		log.Info(fmt.Sprintf("No git tag version found on branch %s", branch.Name))
	}

	next, err := e.nextRelease(ctx, g, rc, kind, channel)
	if err != nil {
		return nil, err
	}
	rc.NextRelease = next
	log.Info(fmt.Sprintf("The next release version is %s", next.Version))

	if err := e.transition(StatePrepare); err != nil {
		return nil, err
	}
	if err := e.session.Prepare(ctx, rc); err != nil {
		return nil, err
	}

	if err := e.transition(StatePublish); err != nil {
		return nil, err
	}
	if err := e.tag(ctx, g, rc); err != nil {
		return nil, err
	}
	rel, err := e.session.Publish(ctx, rc)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		log.Info("No release published")
		if err := e.transition(StateNoPublish); err != nil {
			return nil, err
		}
		return rc.Result(), nil
	}
	rc.AddRelease(*rel)
	log.Success(fmt.Sprintf("Published release %s on %s channel", rel.Version, defaultName(rel.Channel)))

	if plugin.NeedsChannel(rel, branch) {
		if err := e.transition(StateAddChannel); err != nil {
			return nil, err
		}
		added, err := e.session.AddChannel(ctx, rc)
		if err != nil {
			return nil, err
		}
		if added != nil {
			rc.AddRelease(*added)
			log.Success(fmt.Sprintf("Added release %s to %s channel", added.Version, defaultName(added.Channel)))
		}
	}

	if err := e.transition(StatePublished); err != nil {
		return nil, err
	}
	return rc.Result(), nil
}

// resolveRepositoryURL fills the repository URL from origin when unset and
// replaces it with the credentialed URL used by git.
func (e *Engine) resolveRepositoryURL(ctx context.Context, g *git.Client, rc *release.Context) error {
	opts := rc.Options
	repoURL := opts.RepositoryURL
	if repoURL == "" {
		// A clone without origin has no URL; that is reported below.
		repoURL, _ = g.RepositoryURL(ctx)
	}
	if repoURL == "" {
		return errors.ConfigError("ENOREPOURL", "The `repositoryUrl` option is required.").
			WithDetails("The repository URL could not be determined from the npm-release configuration or the git origin remote.")
	}
	if opts.OriginalRepositoryURL == "" {
		opts.OriginalRepositoryURL = repoURL
	}
	opts.RepositoryURL = git.AuthURL(repoURL, rc.Env)
	return nil
}

func (e *Engine) nextRelease(ctx context.Context, g *git.Client, rc *release.Context, kind analyzer.ReleaseType, channel *string) (*release.Release, error) {
	version, err := release.NextVersion(rc.LastRelease(), kind, *rc.Branch())
	if err != nil {
		return nil, err
	}
	head, err := g.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	tag := release.FormatTag(rc.Options.TagFormat, version)
	return &release.Release{
		Version: version,
		Channel: channel,
		Name:    tag,
		GitTag:  tag,
		GitHead: head,
	}, nil
}

// tag creates and pushes the release tag with a note listing its channels.
func (e *Engine) tag(ctx context.Context, g *git.Client, rc *release.Context) error {
	next := rc.NextRelease
	if rc.DryRun() {
		rc.Logger.Warn(fmt.Sprintf("Skip %s tag creation in dry-run mode", next.GitTag))
		return nil
	}
	channels := []*string{next.Channel}
	if b := rc.Branch(); !branches.SameChannel(next.Channel, b.Channel) {
		channels = append(channels, b.Channel)
	}
	if err := g.Tag(ctx, next.GitTag, next.GitHead); err != nil {
		return fmt.Errorf("create tag %s: %w", next.GitTag, err)
	}
	if err := g.AddNote(ctx, release.ChannelsNote(channels), next.GitTag); err != nil {
		return fmt.Errorf("add note to %s: %w", next.GitTag, err)
	}
	if err := g.Push(ctx, rc.Options.RepositoryURL); err != nil {
		return fmt.Errorf("push tag %s: %w", next.GitTag, err)
	}
	rc.Logger.Success(fmt.Sprintf("Created tag %s", next.GitTag))
	return nil
}

func defaultName(ch *string) string {
	if ch == nil {
		return "default"
	}
	return *ch
}
