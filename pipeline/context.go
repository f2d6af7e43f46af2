package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"
)

// Redactor removes known secret values from captured output. The credential
// store implements it; a run without credentials can use NopRedactor.
type Redactor interface {
	RedactAll(s string) string
}

// NopRedactor passes output through unchanged.
type NopRedactor struct{}

func (NopRedactor) RedactAll(s string) string { return s }

// ReleaseFunc releases one acquired external resource. It must be safe to
// call more than once.
type ReleaseFunc func(ctx context.Context) error

type acquisition struct {
	name     string
	release  ReleaseFunc
	released bool
}

// RunContext carries all mutable state through one pipeline run. It is owned
// exclusively by that run; stages execute sequentially, so no locking is
// required.
type RunContext struct {
	RunID     string
	RunNumber int64
	Project   string
	Branch    string
	Revision  string
	StartedAt time.Time

	// Env holds resolved environment variables passed to command stages.
	Env map[string]string

	// Secrets redacts resolved credential values from any captured output.
	Secrets Redactor

	// Image is the *container.ImageReference produced by the build stage
	// (typed as any to avoid an import cycle).
	Image any

	// TargetURL is set by the deploy stage once the staging instance is up.
	TargetURL string

	// BuildURL points at this run in whatever scheduler embeds the pipeline.
	BuildURL string

	outcomes     []StageOutcome
	acquisitions []*acquisition
	output       bytes.Buffer
}

// NewRunContext creates a RunContext with initialized maps and a no-op
// redactor. Callers seed metadata explicitly; nothing is read from the
// ambient environment.
func NewRunContext(runID string, runNumber int64) *RunContext {
	return &RunContext{
		RunID:     runID,
		RunNumber: runNumber,
		StartedAt: time.Now(),
		Env:       make(map[string]string),
		Secrets:   NopRedactor{},
	}
}

// Output is the sink for the currently executing stage. Command stages pipe
// their combined stdout/stderr here.
func (rc *RunContext) Output() io.Writer {
	return &rc.output
}

// Printf writes a formatted line to the current stage output.
func (rc *RunContext) Printf(format string, args ...any) {
	fmt.Fprintf(&rc.output, format+"\n", args...)
}

// ResetOutput clears the stage output sink. The stage runner calls it before
// each stage.
func (rc *RunContext) ResetOutput() {
	rc.output.Reset()
}

// TakeOutput returns the captured stage output after redaction and clears
// the sink.
func (rc *RunContext) TakeOutput() string {
	s := rc.Secrets.RedactAll(rc.output.String())
	rc.output.Reset()
	return s
}

// AppendOutcome records a completed stage outcome in the run log.
func (rc *RunContext) AppendOutcome(so StageOutcome) {
	rc.outcomes = append(rc.outcomes, so)
}

// Outcomes returns the ordered log of completed stage outcomes.
func (rc *RunContext) Outcomes() []StageOutcome {
	return rc.outcomes
}

// Acquire registers an external resource with its release function. The
// owning component should release eagerly (usually via defer); ReleaseAll is
// the backstop that reclaims anything still outstanding after the run.
func (rc *RunContext) Acquire(name string, release ReleaseFunc) {
	rc.acquisitions = append(rc.acquisitions, &acquisition{name: name, release: release})
}

// Release releases the named resource now and marks it done.
func (rc *RunContext) Release(ctx context.Context, name string) error {
	for _, a := range rc.acquisitions {
		if a.name == name && !a.released {
			a.released = true
			return a.release(ctx)
		}
	}
	return nil
}

// ReleaseAll releases every resource not yet released, in reverse
// acquisition order. It returns the names that failed to release.
func (rc *RunContext) ReleaseAll(ctx context.Context) []string {
	var failed []string
	for i := len(rc.acquisitions) - 1; i >= 0; i-- {
		a := rc.acquisitions[i]
		if a.released {
			continue
		}
		a.released = true
		if err := a.release(ctx); err != nil {
			failed = append(failed, a.name)
		}
	}
	return failed
}
