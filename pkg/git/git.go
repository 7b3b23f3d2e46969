// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package git runs the git commands a release decision depends on.
package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/cicd-ai-toolkit/npm-release/pkg/runner"
)

// NotesRef is the notes ref holding the channels a tag was released on.
const NotesRef = "semantic-release"

// Client runs git in a working directory with a fixed environment.
type Client struct {
	exec runner.Executor
	// Dir is the directory the commands are run in.
	Dir string
	Env map[string]string
}

// NewClient returns a Client running git through exec.
func NewClient(exec runner.Executor, dir string, env map[string]string) *Client {
	return &Client{exec: exec, Dir: dir, Env: env}
}

// Run runs a git command. Omit the 'git' part of the command.
func (c *Client) Run(ctx context.Context, args ...string) (runner.Result, error) {
	return c.exec.Run(ctx, runner.Command{
		Name: "git",
		Args: args,
		Dir:  c.Dir,
		Env:  c.Env,
	})
}

func (c *Client) output(ctx context.Context, args ...string) (string, error) {
	res, err := c.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// VerifyAuth probes push permission with a dry-run push of HEAD to branch.
func (c *Client) VerifyAuth(ctx context.Context, repositoryURL, branch string) error {
	_, err := c.Run(ctx, "push", "--dry-run", "--no-verify", repositoryURL, "HEAD:"+branch)
	return err
}

// RemoteHead returns the commit the remote branch points to, or "" when the
// branch does not exist on the remote.
func (c *Client) RemoteHead(ctx context.Context, repositoryURL, branch string) (string, error) {
	out, err := c.output(ctx, "ls-remote", "--heads", repositoryURL, branch)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "refs/heads/"+branch {
			return fields[0], nil
		}
	}
	return "", nil
}

// RemoteBranches lists the branch names of the remote.
func (c *Client) RemoteBranches(ctx context.Context, repositoryURL string) ([]string, error) {
	out, err := c.output(ctx, "ls-remote", "--heads", repositoryURL)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 {
			names = append(names, strings.TrimPrefix(fields[1], "refs/heads/"))
		}
	}
	return names, nil
}

// IsRefInHistory reports whether ref is an ancestor of HEAD. A ref unknown to
// the local clone is not in history.
func (c *Client) IsRefInHistory(ctx context.Context, ref string) (bool, error) {
	_, err := c.Run(ctx, "merge-base", "--is-ancestor", ref, "HEAD")
	if err == nil {
		return true, nil
	}
	if ee, ok := runner.AsExecError(err); ok {
		if ee.ExitCode == 1 {
			return false, nil
		}
		if ee.ExitCode == 128 && strings.Contains(strings.ToLower(ee.Stderr), "not a valid") {
			return false, nil
		}
	}
	return false, err
}

// IsBranchUpToDate reports whether the remote tip of branch is contained in
// the local history. A branch missing on the remote counts as up to date.
func (c *Client) IsBranchUpToDate(ctx context.Context, repositoryURL, branch string) (bool, error) {
	head, err := c.RemoteHead(ctx, repositoryURL, branch)
	if err != nil {
		return false, err
	}
	if head == "" {
		return true, nil
	}
	return c.IsRefInHistory(ctx, head)
}

// Tags lists the tags reachable from ref.
func (c *Client) Tags(ctx context.Context, ref string) ([]string, error) {
	out, err := c.output(ctx, "tag", "--merged", ref)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// IsShallow reports whether the clone has truncated history.
func (c *Client) IsShallow(ctx context.Context) (bool, error) {
	out, err := c.output(ctx, "rev-parse", "--is-shallow-repository")
	if err != nil {
		return false, err
	}
	return out == "true", nil
}

// FetchTags fetches the tags of the remote. A shallow clone is deepened so
// the tags become reachable from HEAD.
func (c *Client) FetchTags(ctx context.Context, repositoryURL string) error {
	shallow, err := c.IsShallow(ctx)
	if err != nil {
		return err
	}
	args := []string{"fetch", "--tags"}
	if shallow {
		args = append(args, "--unshallow")
	}
	_, err = c.Run(ctx, append(args, repositoryURL)...)
	return err
}

// FetchNotes fetches the release notes ref of the remote.
func (c *Client) FetchNotes(ctx context.Context, repositoryURL string) error {
	ref := "refs/notes/" + NotesRef
	_, err := c.Run(ctx, "fetch", repositoryURL, "+"+ref+":"+ref)
	return err
}

// TagHead resolves a tag to the commit it points to, following annotated tags.
func (c *Client) TagHead(ctx context.Context, tag string) (string, error) {
	return c.output(ctx, "rev-list", "-1", tag)
}

// Note returns the release note attached to ref, or "" when there is none.
func (c *Client) Note(ctx context.Context, ref string) (string, error) {
	out, err := c.output(ctx, "notes", "--ref", NotesRef, "show", ref)
	if err != nil {
		if ee, ok := runner.AsExecError(err); ok && ee.ExitCode == 1 {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// Tag creates a lightweight tag at ref.
func (c *Client) Tag(ctx context.Context, name, ref string) error {
	_, err := c.Run(ctx, "tag", name, ref)
	return err
}

// AddNote attaches note to ref, replacing an existing one.
func (c *Client) AddNote(ctx context.Context, note, ref string) error {
	_, err := c.Run(ctx, "notes", "--ref", NotesRef, "add", "-f", "-m", note, ref)
	return err
}

// Push pushes the tags and the release notes to the remote.
func (c *Client) Push(ctx context.Context, repositoryURL string) error {
	if _, err := c.Run(ctx, "push", "--tags", repositoryURL); err != nil {
		return err
	}
	_, err := c.Run(ctx, "push", repositoryURL, "refs/notes/"+NotesRef)
	return err
}

// RepositoryURL returns the fetch URL of origin.
func (c *Client) RepositoryURL(ctx context.Context) (string, error) {
	return c.output(ctx, "config", "--get", "remote.origin.url")
}

// CurrentBranch returns the checked out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	return c.output(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// Head returns the commit HEAD points to.
func (c *Client) Head(ctx context.Context) (string, error) {
	return c.output(ctx, "rev-parse", "HEAD")
}

// Commit is a single entry of the history.
type Commit struct {
	Hash    string `json:"hash" yaml:"hash"`
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body,omitempty" yaml:"body,omitempty"`
}

// Message returns subject and body the way commit analyzers read them.
func (c Commit) Message() string {
	if c.Body == "" {
		return c.Subject
	}
	return c.Subject + "\n\n" + c.Body
}

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// Commits lists the commits in from..HEAD, newest first. An empty from lists
// the whole history.
func (c *Client) Commits(ctx context.Context, from string) ([]Commit, error) {
	rng := "HEAD"
	if from != "" {
		rng = from + "..HEAD"
	}
	format := fmt.Sprintf("--format=%%H%s%%s%s%%b%s", fieldSep, fieldSep, recordSep)
	res, err := c.Run(ctx, "log", format, rng)
	if err != nil {
		return nil, err
	}
	return parseCommits(res.Stdout), nil
}

func parseCommits(out string) []Commit {
	var commits []Commit
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		parts := strings.SplitN(record, fieldSep, 3)
		commit := Commit{Hash: parts[0]}
		if len(parts) > 1 {
			commit.Subject = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			commit.Body = strings.TrimSpace(parts[2])
		}
		commits = append(commits, commit)
	}
	return commits
}
