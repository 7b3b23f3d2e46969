// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package platform detects the CI environment a release runs in.
package platform

import (
	"strings"
)

// Local is the platform name reported outside any recognized CI.
const Local = "local"

// Env describes the CI run as seen through environment variables.
type Env struct {
	// Name is the detected platform, or Local.
	Name string
	IsCI bool
	// Branch is the branch being built. For pull requests it is the target
	// branch.
	Branch string
	// PRBranch is the source branch of a pull request.
	PRBranch string
	IsPR     bool
	// VarName is the environment variable that identified the platform.
	VarName string
}

// ReleaseBranch returns the branch a release decision is made for: the
// source branch for pull requests, the built branch otherwise.
func (e Env) ReleaseBranch() string {
	if e.IsPR {
		return e.PRBranch
	}
	return e.Branch
}

type detector struct {
	name    string
	varName string
	match   func(env map[string]string) bool
	fill    func(env map[string]string, info *Env)
}

var detectors = []detector{
	{"github", "GITHUB_ACTIONS", isTrue("GITHUB_ACTIONS"), func(env map[string]string, info *Env) {
		event := env["GITHUB_EVENT_NAME"]
		info.IsPR = event == "pull_request" || event == "pull_request_target"
		if info.IsPR {
			info.Branch = env["GITHUB_BASE_REF"]
			info.PRBranch = env["GITHUB_HEAD_REF"]
			return
		}
		info.Branch = trimRef(env["GITHUB_REF"])
	}},
	{"gitlab", "GITLAB_CI", isTrue("GITLAB_CI"), func(env map[string]string, info *Env) {
		info.IsPR = env["CI_MERGE_REQUEST_ID"] != ""
		if info.IsPR {
			info.Branch = env["CI_MERGE_REQUEST_TARGET_BRANCH_NAME"]
			info.PRBranch = env["CI_MERGE_REQUEST_SOURCE_BRANCH_NAME"]
			return
		}
		info.Branch = env["CI_COMMIT_REF_NAME"]
	}},
	{"gitee", "GITEE_CI", func(env map[string]string) bool {
		return isTrue("GITEE_CI")(env) || env["GITEE_SERVER_URL"] != ""
	}, func(env map[string]string, info *Env) {
		info.IsPR = env["GITEE_PULL_REQUEST_ID"] != ""
		info.Branch = env["GITEE_BRANCH"]
		if info.IsPR {
			info.Branch = env["GITEE_TARGET_BRANCH"]
			info.PRBranch = env["GITEE_SOURCE_BRANCH"]
		}
	}},
	{"jenkins", "JENKINS_URL", func(env map[string]string) bool {
		return env["JENKINS_URL"] != "" || env["JENKINS_HOME"] != ""
	}, func(env map[string]string, info *Env) {
		info.IsPR = env["CHANGE_ID"] != ""
		if info.IsPR {
			info.Branch = env["CHANGE_TARGET"]
			info.PRBranch = env["CHANGE_BRANCH"]
			return
		}
		info.Branch = firstNonEmpty(env["BRANCH_NAME"], env["GIT_LOCAL_BRANCH"],
			strings.TrimPrefix(env["GIT_BRANCH"], "origin/"))
	}},
	{"azure", "TF_BUILD", isTrue("TF_BUILD"), func(env map[string]string, info *Env) {
		info.IsPR = env["SYSTEM_PULLREQUEST_PULLREQUESTID"] != ""
		if info.IsPR {
			info.Branch = trimRef(env["SYSTEM_PULLREQUEST_TARGETBRANCH"])
			info.PRBranch = trimRef(env["SYSTEM_PULLREQUEST_SOURCEBRANCH"])
			return
		}
		info.Branch = trimRef(env["BUILD_SOURCEBRANCH"])
	}},
	{"bitbucket", "BITBUCKET_BUILD_NUMBER", isSet("BITBUCKET_BUILD_NUMBER"), func(env map[string]string, info *Env) {
		info.IsPR = env["BITBUCKET_PR_ID"] != ""
		info.Branch = env["BITBUCKET_BRANCH"]
		if info.IsPR {
			info.Branch = env["BITBUCKET_PR_DESTINATION_BRANCH"]
			info.PRBranch = env["BITBUCKET_BRANCH"]
		}
	}},
	{"circleci", "CIRCLECI", isTrue("CIRCLECI"), func(env map[string]string, info *Env) {
		info.IsPR = env["CIRCLE_PULL_REQUEST"] != "" || env["CIRCLE_PR_NUMBER"] != ""
		info.Branch = env["CIRCLE_BRANCH"]
		if info.IsPR {
			info.PRBranch = env["CIRCLE_BRANCH"]
		}
	}},
	{"travis", "TRAVIS", isTrue("TRAVIS"), func(env map[string]string, info *Env) {
		pr := env["TRAVIS_PULL_REQUEST"]
		info.IsPR = pr != "" && pr != "false"
		info.Branch = env["TRAVIS_BRANCH"]
		if info.IsPR {
			info.PRBranch = env["TRAVIS_PULL_REQUEST_BRANCH"]
		}
	}},
	{"drone", "DRONE", isTrue("DRONE"), func(env map[string]string, info *Env) {
		info.IsPR = env["DRONE_BUILD_EVENT"] == "pull_request"
		info.Branch = env["DRONE_BRANCH"]
		if info.IsPR {
			info.Branch = firstNonEmpty(env["DRONE_TARGET_BRANCH"], env["DRONE_BRANCH"])
			info.PRBranch = env["DRONE_SOURCE_BRANCH"]
		}
	}},
}

// Detect inspects env and returns the CI run description. A bare CI=true
// counts as an unnamed CI with no branch information.
func Detect(env map[string]string) Env {
	for _, d := range detectors {
		if !d.match(env) {
			continue
		}
		info := Env{Name: d.name, IsCI: true, VarName: d.varName}
		d.fill(env, &info)
		return info
	}
	if isTrue("CI")(env) {
		return Env{Name: "generic", IsCI: true, VarName: "CI"}
	}
	return Env{Name: Local}
}

// GetSupportedPlatforms returns list of supported platform names
func GetSupportedPlatforms() []string {
	names := make([]string, 0, len(detectors)+1)
	for _, d := range detectors {
		names = append(names, d.name)
	}
	return append(names, Local)
}

func isTrue(key string) func(map[string]string) bool {
	return func(env map[string]string) bool {
		return strings.EqualFold(env[key], "true")
	}
}

func isSet(key string) func(map[string]string) bool {
	return func(env map[string]string) bool {
		return env[key] != ""
	}
}

func trimRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
