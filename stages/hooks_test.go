package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/initializ/convey/notify"
	"github.com/initializ/convey/pipeline"
)

type captureDispatcher struct {
	events []notify.Event
	err    error
}

func (d *captureDispatcher) Dispatch(_ context.Context, ev notify.Event) error {
	d.events = append(d.events, ev)
	return d.err
}

func TestNotifyHook_DispatchesOutcome(t *testing.T) {
	d := &captureDispatcher{}
	hook := NotifyHook(d, []string{"team@example.com"})

	rc := pipeline.NewRunContext("run-1", 7)
	rc.Project = "app"
	out := &pipeline.RunOutcome{Success: true}

	if err := hook.Run(context.Background(), rc, out); err != nil {
		t.Fatalf("hook: %v", err)
	}
	if len(d.events) != 1 {
		t.Fatalf("expected one event, got %d", len(d.events))
	}
	ev := d.events[0]
	if ev.Outcome != notify.OutcomeSuccess || ev.RunNumber != 7 || ev.Project != "app" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestNotifyHook_NilDispatcherIsNoop(t *testing.T) {
	hook := NotifyHook(nil, []string{"team@example.com"})
	if err := hook.Run(context.Background(), pipeline.NewRunContext("run-1", 1), &pipeline.RunOutcome{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNotifyHook_NoRecipientsIsNoop(t *testing.T) {
	d := &captureDispatcher{}
	hook := NotifyHook(d, nil)
	if err := hook.Run(context.Background(), pipeline.NewRunContext("run-1", 1), &pipeline.RunOutcome{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(d.events) != 0 {
		t.Errorf("expected no dispatch, got %d", len(d.events))
	}
}

func TestCleanupHook_ReleasesResources(t *testing.T) {
	rc := pipeline.NewRunContext("run-1", 1)
	released := false
	rc.Acquire("instance", func(context.Context) error {
		released = true
		return nil
	})

	if err := CleanupHook().Run(context.Background(), rc, &pipeline.RunOutcome{}); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if !released {
		t.Error("expected the acquired resource to be released")
	}
}

func TestCleanupHook_ReportsFailures(t *testing.T) {
	rc := pipeline.NewRunContext("run-1", 1)
	rc.Acquire("instance", func(context.Context) error {
		return errors.New("engine gone")
	})

	err := CleanupHook().Run(context.Background(), rc, &pipeline.RunOutcome{})
	if err == nil {
		t.Fatal("expected an error naming the failed release")
	}
}
