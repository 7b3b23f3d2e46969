// Package main provides the npm-release CLI application.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/output"
	"github.com/cicd-ai-toolkit/npm-release/pkg/release"
	"github.com/cicd-ai-toolkit/npm-release/pkg/version"
)

// Flag names bound into viper.
const (
	flagDryRun        = "dry-run"
	flagNoCI          = "no-ci"
	flagRepositoryURL = "repository-url"
	flagTagFormat     = "tag-format"
	flagLogLevel      = "log-level"
	flagOutput        = "output"
)

// flags holds the command line values of the persistent flags.
var flags = viper.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "npm-release",
	Short: "Automated npm package releases",
	Long: `npm-release decides from the CI environment, the git history and the
release branch configuration whether a new version of an npm package is due,
then prepares, publishes and tags it.

Configuration is read from .releaserc.yaml, .releaserc.yml or .releaserc.toml
in the working directory, NPM_RELEASE_* environment variables and flags.`,
	Version:       version.FullString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	bindFlags(rootCmd, flags)
}

// bindFlags defines the persistent flags of cmd and binds them into v.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	pf := cmd.PersistentFlags()
	pf.Bool(flagDryRun, false, "Skip publishing, tagging and manifest changes")
	pf.Bool(flagNoCI, false, "Run outside a CI environment without forcing dry-run")
	pf.String(flagRepositoryURL, "", "Git repository URL to push tags to (default: origin)")
	pf.String(flagTagFormat, "", "Git tag format, must contain ${version} once")
	pf.String(flagLogLevel, "", "Log level: debug, info, warn or error")
	pf.StringP(flagOutput, "o", "", "Print the result as text, json or yaml")

	for _, name := range []string{flagDryRun, flagNoCI, flagRepositoryURL, flagTagFormat, flagLogLevel, flagOutput} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}
}

// applyFlags copies the flags given on the command line over cfg. Flags left
// at their defaults do not override the configuration.
func applyFlags(v *viper.Viper, cfg *config.Config) {
	if v.IsSet(flagDryRun) {
		cfg.DryRun = v.GetBool(flagDryRun)
	}
	if v.IsSet(flagNoCI) {
		cfg.NoCI = v.GetBool(flagNoCI)
	}
	if v.IsSet(flagRepositoryURL) {
		cfg.RepositoryURL = v.GetString(flagRepositoryURL)
	}
	if v.IsSet(flagTagFormat) {
		cfg.TagFormat = v.GetString(flagTagFormat)
	}
	if v.IsSet(flagLogLevel) {
		cfg.LogLevel = v.GetString(flagLogLevel)
	}
}

// report prints result when an output format was requested.
func report(cmd *cobra.Command, v *viper.Viper, result *release.Result) error {
	format := v.GetString(flagOutput)
	if format == "" {
		return nil
	}
	return output.NewReporter(cmd.OutOrStdout(), format).Report(result)
}
