// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package engine

import "fmt"

// State represents a step of the release run.
type State int

const (
	StateStart State = iota
	StateCiModeDetect
	StateDryRunForced
	StateNormal
	StatePrAbort
	StateVerify
	StateBranchResolve
	StateNoBranch
	StateAuthCheck
	StateAuthFail
	StateStaleAbort
	StateLastReleaseResolve
	StateCommitAnalyze
	StateNoRelevantCommits
	StateChannelReconcile
	StatePrepare
	StatePublish
	StateNoPublish
	StateAddChannel
	StatePublished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateCiModeDetect:
		return "ci_mode_detect"
	case StateDryRunForced:
		return "dry_run_forced"
	case StateNormal:
		return "normal"
	case StatePrAbort:
		return "pr_abort"
	case StateVerify:
		return "verify"
	case StateBranchResolve:
		return "branch_resolve"
	case StateNoBranch:
		return "no_branch"
	case StateAuthCheck:
		return "auth_check"
	case StateAuthFail:
		return "auth_fail"
	case StateStaleAbort:
		return "stale_abort"
	case StateLastReleaseResolve:
		return "last_release_resolve"
	case StateCommitAnalyze:
		return "commit_analyze"
	case StateNoRelevantCommits:
		return "no_relevant_commits"
	case StateChannelReconcile:
		return "channel_reconcile"
	case StatePrepare:
		return "prepare"
	case StatePublish:
		return "publish"
	case StateNoPublish:
		return "no_publish"
	case StateAddChannel:
		return "add_channel"
	case StatePublished:
		return "published"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run ends in s.
func (s State) Terminal() bool {
	switch s {
	case StatePrAbort, StateNoBranch, StateAuthFail, StateStaleAbort,
		StateNoRelevantCommits, StateNoPublish, StatePublished, StateFailed:
		return true
	default:
		return false
	}
}

// successors lists the states reachable from each non-terminal state.
// StateFailed is reachable from every non-terminal state.
var successors = map[State][]State{
	StateStart:              {StateCiModeDetect},
	StateCiModeDetect:       {StateDryRunForced, StateNormal},
	StateDryRunForced:       {StateVerify},
	StateNormal:             {StatePrAbort, StateVerify},
	StateVerify:             {StateBranchResolve},
	StateBranchResolve:      {StateNoBranch, StateAuthCheck},
	StateAuthCheck:          {StateAuthFail, StateStaleAbort, StateLastReleaseResolve},
	StateLastReleaseResolve: {StateCommitAnalyze},
	StateCommitAnalyze:      {StateNoRelevantCommits, StateChannelReconcile},
	StateChannelReconcile:   {StatePrepare},
	StatePrepare:            {StatePublish},
	StatePublish:            {StateNoPublish, StateAddChannel, StatePublished},
	StateAddChannel:         {StatePublished},
}

// CanTransition reports whether a run in s may move to next.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, n := range successors[s] {
		if n == next {
			return true
		}
	}
	return false
}

// TransitionError is returned when a run attempts a move its current state
// does not allow.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("engine: invalid transition from %s to %s", e.From, e.To)
}
