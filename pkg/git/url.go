// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package git

import (
	"net/url"
	"regexp"
	"strings"
)

// credentialVars lists the env vars checked for push credentials, in order,
// with the user prefix each token needs.
var credentialVars = []struct {
	key    string
	prefix string
}{
	{"GIT_CREDENTIALS", ""},
	{"GH_TOKEN", ""},
	{"GITHUB_TOKEN", ""},
	{"GL_TOKEN", "gitlab-ci-token:"},
	{"GITLAB_TOKEN", "gitlab-ci-token:"},
	{"BB_TOKEN", "x-token-auth:"},
	{"BITBUCKET_TOKEN", "x-token-auth:"},
	{"BB_TOKEN_BASIC_AUTH", ""},
	{"BITBUCKET_TOKEN_BASIC_AUTH", ""},
}

var scpLike = regexp.MustCompile(`^(?:[\w.-]+@)?([\w.-]+):(?:\d+/)?([^/].*)$`)

// AuthURL returns repositoryURL with push credentials from env embedded.
// SSH and scp-like URLs are rewritten to https when credentials exist; the
// URL is returned unchanged otherwise.
func AuthURL(repositoryURL string, env map[string]string) string {
	creds := ""
	for _, v := range credentialVars {
		if token := env[v.key]; token != "" {
			creds = v.prefix + token
			break
		}
	}
	if creds == "" || repositoryURL == "" {
		return repositoryURL
	}

	raw := strings.TrimPrefix(repositoryURL, "git+")
	if !strings.Contains(raw, "://") {
		m := scpLike.FindStringSubmatch(raw)
		if m == nil {
			return repositoryURL
		}
		raw = "https://" + m[1] + "/" + m[2]
	}

	u, err := url.Parse(raw)
	if err != nil {
		return repositoryURL
	}
	switch u.Scheme {
	case "ssh", "git":
		u.Scheme = "https"
		u.Host = u.Hostname()
	case "http", "https":
	default:
		return repositoryURL
	}

	user, pass, hasPass := strings.Cut(creds, ":")
	if hasPass {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}
