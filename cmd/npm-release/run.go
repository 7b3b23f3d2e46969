package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cicd-ai-toolkit/npm-release/pkg/config"
	"github.com/cicd-ai-toolkit/npm-release/pkg/engine"
	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a release",
	Long: `Run the complete release: resolve the release branch, check push
permission, find the last release, analyze the new commits and, when they
warrant it, prepare, publish and tag the next version.

Outside a recognized CI environment the run is a dry-run unless --no-ci is
given. Exit status is 0 when the run succeeds or ends without a release,
1 for release errors and 2 for unexpected errors.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		res, err := engine.Execute(cmd.Context(), engine.Input{
			Cwd:    cwd,
			Env:    runner.EnvMap(os.Environ()),
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
			Overrides: func(cfg *config.Config) {
				applyFlags(flags, cfg)
			},
		}, engine.Options{})
		if err != nil {
			return exitError(err)
		}
		return report(cmd, flags, res)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
