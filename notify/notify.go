// Package notify builds, renders and dispatches run notifications. Payload
// construction is pure, rendering is template-only, and dispatch is the only
// part that does I/O, so each can be tested in isolation.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/initializ/convey/container"
	"github.com/initializ/convey/pipeline"
)

// ErrDispatchFailed indicates the notification could not be delivered. It is
// surfaced as a run warning, never as a run failure.
var ErrDispatchFailed = errors.New("notification dispatch failed")

// Outcome classifies a run for notification purposes.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// StageLine is one row of the per-stage outcome table in the message body.
type StageLine struct {
	Name     string
	Status   string
	Duration time.Duration
}

// Event is the structured notification payload. Every field is populated by
// BuildEvent before dispatch.
type Event struct {
	Outcome    Outcome
	Project    string
	Branch     string
	Revision   string
	RunID      string
	RunNumber  int64
	Image      string
	TargetURL  string
	BuildURL   string
	Timestamp  time.Time
	Stages     []StageLine
	Recipients []string

	// FailureDetail carries redacted output from the failed stage so the
	// recipient can diagnose without re-running.
	FailureDetail string
}

func (o Outcome) verb() string {
	if o == OutcomeSuccess {
		return "succeeded"
	}
	return "failed"
}

// BuildEvent assembles an Event from the run context and outcome. It is
// pure: no I/O, so tests can assert on payload contents directly.
func BuildEvent(rc *pipeline.RunContext, out *pipeline.RunOutcome, recipients []string) Event {
	outcome := OutcomeSuccess
	if !out.Success {
		outcome = OutcomeFailure
	}

	ev := Event{
		Outcome:    outcome,
		Project:    rc.Project,
		Branch:     rc.Branch,
		Revision:   rc.Revision,
		RunID:      rc.RunID,
		RunNumber:  rc.RunNumber,
		TargetURL:  rc.TargetURL,
		BuildURL:   rc.BuildURL,
		Timestamp:  time.Now().UTC(),
		Recipients: recipients,
	}

	if ref, ok := rc.Image.(container.ImageReference); ok {
		ev.Image = ref.PrimaryName()
	}

	for _, so := range out.Stages {
		ev.Stages = append(ev.Stages, StageLine{
			Name:     so.Stage,
			Status:   string(so.Status),
			Duration: so.Duration,
		})
	}

	if failed := out.FailedStage(); failed != nil {
		detail := failed.Error
		if failed.Output != "" {
			detail = fmt.Sprintf("%s\n\n%s", failed.Error, failed.Output)
		}
		ev.FailureDetail = detail
	}

	return ev
}

// Dispatcher delivers a rendered notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}
