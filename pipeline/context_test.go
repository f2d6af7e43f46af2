package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type mapRedactor map[string]string

func (m mapRedactor) RedactAll(s string) string {
	for from, to := range m {
		s = strings.ReplaceAll(s, from, to)
	}
	return s
}

func TestRunContext_TakeOutputRedacts(t *testing.T) {
	rc := NewRunContext("run-1", 1)
	rc.Secrets = mapRedactor{"hunter2": "[redacted]"}

	rc.Printf("logging in with hunter2")
	got := rc.TakeOutput()

	if strings.Contains(got, "hunter2") {
		t.Fatalf("secret leaked into output: %q", got)
	}
	if !strings.Contains(got, "[redacted]") {
		t.Errorf("expected placeholder in output, got %q", got)
	}
	if rc.TakeOutput() != "" {
		t.Error("TakeOutput must clear the sink")
	}
}

func TestRunContext_ReleaseAllReverseOrder(t *testing.T) {
	rc := NewRunContext("run-1", 1)

	var released []string
	release := func(name string) ReleaseFunc {
		return func(context.Context) error {
			released = append(released, name)
			return nil
		}
	}
	rc.Acquire("login", release("login"))
	rc.Acquire("instance", release("instance"))

	failed := rc.ReleaseAll(context.Background())

	if len(failed) != 0 {
		t.Fatalf("expected no failures, got %v", failed)
	}
	if len(released) != 2 || released[0] != "instance" || released[1] != "login" {
		t.Errorf("expected reverse acquisition order, got %v", released)
	}
}

func TestRunContext_ReleaseAllSkipsAlreadyReleased(t *testing.T) {
	rc := NewRunContext("run-1", 1)

	count := 0
	rc.Acquire("instance", func(context.Context) error {
		count++
		return nil
	})

	if err := rc.Release(context.Background(), "instance"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	rc.ReleaseAll(context.Background())

	if count != 1 {
		t.Errorf("release function ran %d times, expected once", count)
	}
}

func TestRunContext_ReleaseAllReportsFailures(t *testing.T) {
	rc := NewRunContext("run-1", 1)
	rc.Acquire("broken", func(context.Context) error {
		return errors.New("engine gone")
	})

	failed := rc.ReleaseAll(context.Background())

	if len(failed) != 1 || failed[0] != "broken" {
		t.Errorf("expected [broken], got %v", failed)
	}
}
