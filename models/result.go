package models

import "time"

type Result struct {
	Triggers int
	Failed   []FailedRun
	Duration time.Duration
}

type FailedRun struct {
	Command  string
	Error    error
	ExitCode int
}

type RunResult struct {
	Command  string
	Output   string
	ExitCode int
	Duration time.Duration
}

func (r *RunResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}
