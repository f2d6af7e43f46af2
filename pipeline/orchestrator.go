package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StageExecutor runs one stage to a terminal outcome. The runner package
// provides the standard implementation with timeout enforcement and output
// capture.
type StageExecutor interface {
	Execute(ctx context.Context, s Stage, rc *RunContext) StageOutcome
}

// Orchestrator drives a pipeline run: stages strictly in declaration order,
// halt on first failure, exactly one terminal hook class, always-hooks
// unconditionally last.
type Orchestrator struct {
	exec   StageExecutor
	logger *slog.Logger
	tracer trace.Tracer
}

// NewOrchestrator creates an Orchestrator using the given stage executor.
func NewOrchestrator(exec StageExecutor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		exec:   exec,
		logger: logger,
		tracer: otel.Tracer("convey/pipeline"),
	}
}

// Run executes the pipeline against the run context and returns the run
// outcome. The pipeline definition is never mutated; the run context's
// outcome log is.
func (o *Orchestrator) Run(ctx context.Context, p *Pipeline, rc *RunContext) *RunOutcome {
	start := time.Now()
	out := &RunOutcome{Success: true}

	halted := false
	for _, s := range p.Stages() {
		// Cancellation is honored at stage boundaries; an in-flight stage
		// is terminated through the runner's own abort path.
		if halted || ctx.Err() != nil {
			if ctx.Err() != nil && !halted {
				out.Success = false
				halted = true
			}
			so := StageOutcome{Stage: s.Name(), Status: StatusSkipped}
			rc.AppendOutcome(so)
			out.Stages = append(out.Stages, so)
			continue
		}

		stageCtx, span := o.tracer.Start(ctx, "stage "+s.Name(),
			trace.WithAttributes(attribute.String("stage.name", s.Name())))
		so := o.exec.Execute(stageCtx, s, rc)
		span.SetAttributes(attribute.String("stage.status", string(so.Status)))
		span.End()

		rc.AppendOutcome(so)
		out.Stages = append(out.Stages, so)

		if so.Status != StatusSucceeded {
			o.logger.Error("stage failed",
				"stage", s.Name(), "kind", string(so.Kind), "error", so.Error)
			out.Success = false
			halted = true
			continue
		}
		o.logger.Info("stage succeeded", "stage", s.Name(), "duration", so.Duration)
	}

	terminal := p.post.OnSuccess
	if !out.Success {
		terminal = p.post.OnFailure
	}
	o.runHooks(ctx, terminal, rc, out)

	// Always-hooks must run even after cancellation or a terminal hook
	// failure, so they get a context detached from the parent's cancel.
	o.runHooks(context.WithoutCancel(ctx), p.post.Always, rc, out)

	out.Duration = time.Since(start)
	return out
}

func (o *Orchestrator) runHooks(ctx context.Context, hooks []Hook, rc *RunContext, out *RunOutcome) {
	for _, h := range hooks {
		out.HooksRun = append(out.HooksRun, h.Name)
		if err := o.safeHook(ctx, h, rc, out); err != nil {
			warning := fmt.Sprintf("hook %s: %v", h.Name, err)
			out.Warnings = append(out.Warnings, warning)
			o.logger.Warn("post action failed", "hook", h.Name, "error", err)
		}
	}
}

func (o *Orchestrator) safeHook(ctx context.Context, h Hook, rc *RunContext, out *RunOutcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Run(ctx, rc, out)
}
