// Package runner executes single pipeline stages: it enforces per-stage
// timeouts, maps errors and panics onto failure kinds, and captures stage
// output with secrets redacted.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/initializ/convey/pipeline"
)

// Runner is the standard pipeline.StageExecutor.
type Runner struct {
	logger *slog.Logger

	// DefaultTimeout applies to stages that do not declare their own.
	// Zero means no default.
	DefaultTimeout time.Duration
}

// New creates a Runner.
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Execute runs one stage to a terminal outcome. The stage's unit of work is
// waited on synchronously; a timeout or cancellation terminates the wait and
// the stage is expected to honor its context so that any cleanup it
// registered still executes.
func (r *Runner) Execute(ctx context.Context, s pipeline.Stage, rc *pipeline.RunContext) pipeline.StageOutcome {
	timeout := r.DefaultTimeout
	if ts, ok := s.(pipeline.TimedStage); ok && ts.Timeout() > 0 {
		timeout = ts.Timeout()
	}

	stageCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.logger.Debug("running stage", "stage", s.Name(), "timeout", timeout)
	rc.ResetOutput()
	start := time.Now()

	done := make(chan error, 1)
	go func() {
		done <- r.safeExecute(stageCtx, s, rc)
	}()

	var err error
	select {
	case err = <-done:
	case <-stageCtx.Done():
		// The stage is signalled through its context; give it a grace
		// period to unwind before the outcome is sealed.
		select {
		case err = <-done:
		case <-time.After(5 * time.Second):
			err = stageCtx.Err()
		}
	}

	so := pipeline.StageOutcome{
		Stage:    s.Name(),
		Duration: time.Since(start),
		Output:   rc.TakeOutput(),
	}
	if err == nil {
		so.Status = pipeline.StatusSucceeded
		return so
	}

	so.Status = pipeline.StatusFailed
	so.Kind = classify(ctx, stageCtx, err)
	so.Error = rc.Secrets.RedactAll(err.Error())
	return so
}

func (r *Runner) safeExecute(ctx context.Context, s pipeline.Stage, rc *pipeline.RunContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError{fmt.Errorf("stage panicked: %v", p)}
		}
	}()
	return s.Execute(ctx, rc)
}

// panicError marks errors produced by a recovered panic so that they map to
// the aborted kind rather than a plain work failure.
type panicError struct{ error }

func classify(parent, stage context.Context, err error) pipeline.FailureKind {
	var pe panicError
	switch {
	case errors.As(err, &pe):
		return pipeline.KindAborted
	case parent.Err() != nil && errors.Is(parent.Err(), context.Canceled):
		return pipeline.KindAborted
	case errors.Is(err, context.DeadlineExceeded):
		return pipeline.KindTimeout
	case errors.Is(stage.Err(), context.DeadlineExceeded):
		return pipeline.KindTimeout
	case errors.Is(err, context.Canceled):
		return pipeline.KindAborted
	default:
		return pipeline.KindWorkFailed
	}
}
