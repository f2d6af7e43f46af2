package pipeline

import "time"

// Status is the terminal state of a stage or run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// FailureKind classifies why a stage failed.
type FailureKind string

const (
	// KindNone marks outcomes that did not fail.
	KindNone FailureKind = ""
	// KindWorkFailed marks a stage whose unit of work returned an error.
	KindWorkFailed FailureKind = "work-failed"
	// KindTimeout marks a stage that exceeded its timeout budget.
	KindTimeout FailureKind = "timeout"
	// KindAborted marks a stage terminated by cancellation or a crash.
	KindAborted FailureKind = "aborted"
)

// StageOutcome records the result of one stage execution. Output has already
// been passed through secret redaction when the outcome is appended to the
// run log.
type StageOutcome struct {
	Stage    string
	Status   Status
	Kind     FailureKind
	Output   string
	Error    string
	Duration time.Duration
}

// RunOutcome records a whole pipeline run: per-stage outcomes in declaration
// order, which hooks ran, and warnings raised by post actions.
type RunOutcome struct {
	Success  bool
	Stages   []StageOutcome
	HooksRun []string
	Warnings []string
	Duration time.Duration
}

// ExitCode maps the run outcome onto a process exit code.
func (o *RunOutcome) ExitCode() int {
	if o.Success {
		return 0
	}
	return 1
}

// FailedStage returns the first failed stage outcome, or nil when the run
// succeeded.
func (o *RunOutcome) FailedStage() *StageOutcome {
	for i := range o.Stages {
		if o.Stages[i].Status == StatusFailed {
			return &o.Stages[i]
		}
	}
	return nil
}
