package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cicd-ai-toolkit/npm-release/pkg/branches"
	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/engine"
	"github.com/cicd-ai-toolkit/npm-release/pkg/git"
	"github.com/cicd-ai-toolkit/npm-release/pkg/observability"
	"github.com/cicd-ai-toolkit/npm-release/pkg/platform"
	"github.com/cicd-ai-toolkit/npm-release/pkg/plugin"
	"github.com/cicd-ai-toolkit/npm-release/pkg/release"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

// stepFlags describes the release a single lifecycle step works on.
type stepFlags struct {
	version string
	channel string
	gitHead string
}

// stepFunc runs one lifecycle step. A nil release means the step produced
// nothing to report.
type stepFunc func(ctx context.Context, s *plugin.Session, rc *release.Context) (*release.Release, error)

// stepEnv is what a step runs against.
type stepEnv struct {
	cwd    string
	env    map[string]string
	exec   runner.Executor
	stdout io.Writer
	stderr io.Writer
}

func newStepCmd(use, short string, needsRelease bool, step stepFunc) *cobra.Command {
	var sf stepFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if needsRelease && sf.version == "" {
				return fmt.Errorf("--release-version is required for %s", use)
			}
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			rel, err := runStep(cmd.Context(), stepEnv{
				cwd:    cwd,
				env:    runner.EnvMap(os.Environ()),
				exec:   runner.NewProcessExecutor(),
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
			}, sf, step)
			if err != nil {
				return exitError(err)
			}
			if rel == nil {
				return nil
			}
			return report(cmd, flags, &release.Result{Releases: []release.Release{*rel}})
		},
	}
	cmd.Flags().StringVar(&sf.version, "release-version", "", "Version of the release")
	cmd.Flags().StringVar(&sf.channel, "channel", "", "Channel of the release (default channel when empty)")
	cmd.Flags().StringVar(&sf.gitHead, "git-head", "", "Commit the release is made from")
	return cmd
}

// runStep builds the context of a single step and runs it on a fresh
// session. Errors are reported before they are returned.
func runStep(ctx context.Context, se stepEnv, sf stepFlags, step stepFunc) (*release.Release, error) {
	stdout := observability.NewRedactor(se.stdout, se.env)
	stderr := observability.NewRedactor(se.stderr, se.env)
	defer func() {
		_ = stdout.Flush()
		_ = stderr.Flush()
	}()

	cfg, err := config.NewLoader().WithProjectRoot(se.cwd).WithEnv(se.env).Load()
	if err != nil {
		engine.LogErrors(observability.NewLoggerWithWriters(stdout, stderr, "info"), stderr, err)
		return nil, err
	}
	applyFlags(flags, cfg)
	log := observability.NewLoggerWithWriters(stdout, stderr, cfg.LogLevel)

	rc := &release.Context{
		Cwd:     se.cwd,
		Env:     se.env,
		CI:      platform.Detect(se.env),
		Options: cfg,
		Logger:  log,
		Stdout:  stdout,
		Stderr:  stderr,
	}
	if sf.version != "" {
		rc.NextRelease = &release.Release{
			Version: sf.version,
			Channel: channelFlag(sf.channel),
			GitTag:  release.FormatTag(cfg.TagFormat, sf.version),
			GitHead: sf.gitHead,
		}
		rc.NextRelease.Name = rc.NextRelease.GitTag
	}
	if err := resolveBranch(ctx, rc, se.exec); err != nil {
		engine.LogErrors(log, stderr, err)
		return nil, err
	}

	s := plugin.NewSession(se.exec)
	defer func() {
		if err := s.Close(); err != nil {
			log.Debug("Failed to remove temporary npm config", observability.Err(err))
		}
	}()
	rel, err := step(ctx, s, rc)
	if err != nil {
		engine.LogErrors(log, stderr, err)
		return nil, err
	}
	return rel, nil
}

// resolveBranch records the release branch of the CI run, if it is one.
func resolveBranch(ctx context.Context, rc *release.Context, exec runner.Executor) error {
	name := rc.CI.ReleaseBranch()
	if name == "" {
		return nil
	}
	g := git.NewClient(exec, rc.Cwd, rc.Env)
	list, err := branches.Expand(ctx, rc.Options.Branches, g, git.AuthURL(rc.Options.RepositoryURL, rc.Env))
	if err != nil {
		return err
	}
	b, err := branches.Resolve(list, name)
	if err != nil || b == nil {
		return err
	}
	return rc.SetBranch(b)
}

func channelFlag(ch string) *string {
	if ch == "" {
		return nil
	}
	return &ch
}

func verifyStep(ctx context.Context, s *plugin.Session, rc *release.Context) (*release.Release, error) {
	return nil, s.VerifyConditions(ctx, rc)
}

// The steps below run on a fresh session, so each repeats the checks of
// verify-conditions itself.

func prepareStep(ctx context.Context, s *plugin.Session, rc *release.Context) (*release.Release, error) {
	return nil, s.Prepare(ctx, rc)
}

func publishStep(ctx context.Context, s *plugin.Session, rc *release.Context) (*release.Release, error) {
	return s.Publish(ctx, rc)
}

func addChannelStep(ctx context.Context, s *plugin.Session, rc *release.Context) (*release.Release, error) {
	return s.AddChannel(ctx, rc)
}

func init() {
	rootCmd.AddCommand(
		newStepCmd("verify-conditions", "Validate the plugin options, the package and the npm token", false, verifyStep),
		newStepCmd("prepare", "Write the release version into package.json", true, prepareStep),
		newStepCmd("publish", "Publish the release to the npm registry", true, publishStep),
		newStepCmd("add-channel", "Add the release to the dist-tag of the branch channel", true, addChannelStep),
	)
}
