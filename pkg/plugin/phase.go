// Copyright 2026 CICD AI Toolkit. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package plugin

import "fmt"

// Phase is the furthest lifecycle step a session completed.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseVerified
	PhasePrepared
	PhasePublished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseVerified:
		return "verified"
	case PhasePrepared:
		return "prepared"
	case PhasePublished:
		return "published"
	default:
		return "unknown"
	}
}

// forward lists the phases a session may move to from each phase. Prepare
// may run on an unverified session since it repeats the checks itself.
var forward = map[Phase][]Phase{
	PhaseIdle:     {PhaseVerified, PhasePrepared},
	PhaseVerified: {PhasePrepared},
	PhasePrepared: {PhasePublished},
}

// PhaseError is returned when a step would skip a required phase.
type PhaseError struct {
	From Phase
	To   Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("plugin: cannot move from %s to %s", e.From, e.To)
}

// advance moves the session forward. Reaching an earlier or the same phase
// again is a no-op since a host may repeat entry points.
func (s *Session) advance(p Phase) error {
	if p <= s.phase {
		return nil
	}
	for _, n := range forward[s.phase] {
		if n == p {
			s.phase = p
			return nil
		}
	}
	return &PhaseError{From: s.phase, To: p}
}
