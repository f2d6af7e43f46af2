package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/initializ/convey/notify"
	"github.com/initializ/convey/pipeline"
)

// NotifyHook builds and dispatches a run notification. It is attached as
// both the success and the failure hook; the payload reflects whichever
// outcome actually happened.
func NotifyHook(d notify.Dispatcher, recipients []string) pipeline.Hook {
	return pipeline.Hook{
		Name: "notify",
		Run: func(ctx context.Context, rc *pipeline.RunContext, out *pipeline.RunOutcome) error {
			if d == nil || len(recipients) == 0 {
				return nil
			}
			ev := notify.BuildEvent(rc, out, recipients)
			return d.Dispatch(ctx, ev)
		},
	}
}

// CleanupHook releases every resource still registered on the run context.
// It runs unconditionally after the terminal hooks.
func CleanupHook() pipeline.Hook {
	return pipeline.Hook{
		Name: "cleanup",
		Run: func(ctx context.Context, rc *pipeline.RunContext, out *pipeline.RunOutcome) error {
			if failed := rc.ReleaseAll(ctx); len(failed) > 0 {
				return fmt.Errorf("failed to release: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}
