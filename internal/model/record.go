package model

import "time"

// LaunchFailureExitCode is recorded for a script that could not be started at
// all (missing executable, permission denied). It is not distinctive on its
// own: a launched process killed by a signal reports -1 too, so
// classification goes through ExecutionRecord.LaunchFailure.
const LaunchFailureExitCode = -1

// ExecutionRecord is the outcome of a single script invocation. Created once
// per run, never mutated afterwards.
type ExecutionRecord struct {
	Script        string
	Args          []string
	ExitCode      int
	Output        string // stdout and stderr merged, or a diagnostic on launch failure
	LaunchFailure bool   // the command never started, Output holds a diagnostic
	StartedAt     time.Time
	Duration      time.Duration
}

// LaunchFailed reports whether the command never started.
func (r ExecutionRecord) LaunchFailed() bool {
	return r.LaunchFailure
}

// ExtractedFields is derived from an ExecutionRecord's output and a pattern
// set. Field names of rules that did not match are absent from Matches, they
// are never set to an empty string.
type ExtractedFields struct {
	Matches       map[string]string
	ErrorDetected bool
	ErrorNames    []string
}
