// Package pipeline provides a sequential stage-based deployment pipeline.
//
// A Pipeline is plain data: an ordered list of stages plus post-run hooks.
// The Orchestrator interprets it, failing fast on the first broken stage and
// always finishing with exactly one terminal hook followed by the
// unconditional always-hooks.
package pipeline

import (
	"context"
	"time"
)

// Stage is a single named unit of pipeline work with a pass/fail outcome.
type Stage interface {
	Name() string
	Execute(ctx context.Context, rc *RunContext) error
}

// TimedStage is implemented by stages that carry their own timeout budget.
// A zero duration means no per-stage timeout.
type TimedStage interface {
	Stage
	Timeout() time.Duration
}

// Hook is a post-run action. Hook errors are recorded as run warnings and
// never escalate to a run failure.
type Hook struct {
	Name string
	Run  func(ctx context.Context, rc *RunContext, out *RunOutcome) error
}

// PostActions holds the hooks selected by the overall run outcome plus the
// hooks that run unconditionally after the selected ones.
type PostActions struct {
	OnSuccess []Hook
	OnFailure []Hook
	Always    []Hook
}

// Pipeline is an ordered stage sequence plus post actions. The stage order is
// fixed at construction and never mutated by a run.
type Pipeline struct {
	stages []Stage
	post   PostActions
}

// New creates a Pipeline from the given stages.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// OnSuccess appends a hook that runs only when every stage succeeded.
func (p *Pipeline) OnSuccess(h Hook) *Pipeline {
	p.post.OnSuccess = append(p.post.OnSuccess, h)
	return p
}

// OnFailure appends a hook that runs only when a stage failed.
func (p *Pipeline) OnFailure(h Hook) *Pipeline {
	p.post.OnFailure = append(p.post.OnFailure, h)
	return p
}

// Always appends a hook that runs after the terminal hooks on every run.
func (p *Pipeline) Always(h Hook) *Pipeline {
	p.post.Always = append(p.post.Always, h)
	return p
}

// Stages returns the stage sequence in declaration order.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}
