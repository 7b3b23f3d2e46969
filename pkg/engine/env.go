// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package engine

// Identity of the commits and tags created by a release run.
const (
	CommitName  = "semantic-release-bot"
	CommitEmail = "semantic-release-bot@martynus.net"
)

// GitEnv returns a copy of env prepared for non-interactive git. The commit
// identity defaults are only used when env does not set them; credential
// prompts are always disabled.
func GitEnv(env map[string]string) map[string]string {
	out := map[string]string{
		"GIT_AUTHOR_NAME":     CommitName,
		"GIT_AUTHOR_EMAIL":    CommitEmail,
		"GIT_COMMITTER_NAME":  CommitName,
		"GIT_COMMITTER_EMAIL": CommitEmail,
	}
	for k, v := range env {
		out[k] = v
	}
	out["GIT_ASKPASS"] = "echo"
	out["GIT_TERMINAL_PROMPT"] = "0"
	return out
}
