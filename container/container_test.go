package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// fakeEngine records every call so tests can assert on ordering and
// arguments without a container runtime installed.
type fakeEngine struct {
	mu      sync.Mutex
	calls   []string
	running map[string]bool

	buildErr error
	pushFail string
	runErr   error
	stopErr  error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{running: make(map[string]bool)}
}

func (e *fakeEngine) record(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, fmt.Sprintf(format, args...))
}

func (e *fakeEngine) callLog() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fakeEngine) Name() string    { return "fake" }
func (e *fakeEngine) Available() bool { return true }

func (e *fakeEngine) Build(_ context.Context, opts BuildOptions) error {
	e.record("build %s", opts.Tag)
	return e.buildErr
}

func (e *fakeEngine) Tag(_ context.Context, src, dst string) error {
	e.record("tag %s %s", src, dst)
	return nil
}

func (e *fakeEngine) Push(_ context.Context, image string) error {
	e.record("push %s", image)
	if e.pushFail != "" && image == e.pushFail {
		return errors.New("connection reset")
	}
	return nil
}

func (e *fakeEngine) Login(_ context.Context, registry, username, _ string) error {
	e.record("login %s %s", registry, username)
	return nil
}

func (e *fakeEngine) Logout(_ context.Context, registry string) error {
	e.record("logout %s", registry)
	return nil
}

func (e *fakeEngine) Run(_ context.Context, opts RunOptions) error {
	e.record("run %s %s", opts.Name, opts.Image)
	if e.runErr != nil {
		return e.runErr
	}
	e.mu.Lock()
	e.running[opts.Name] = true
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Stop(_ context.Context, name string) error {
	e.record("stop %s", name)
	if e.stopErr != nil {
		return e.stopErr
	}
	e.mu.Lock()
	e.running[name] = false
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Remove(_ context.Context, name string) error {
	e.record("remove %s", name)
	return nil
}

func (e *fakeEngine) Running(_ context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running[name], nil
}

func hasCall(t *testing.T, calls []string, want string) bool {
	t.Helper()
	for _, c := range calls {
		if strings.HasPrefix(c, want) {
			return true
		}
	}
	return false
}

func TestImageReference_Names(t *testing.T) {
	ref := ImageReference{Registry: "docker.io", Repository: "acme/app", Tags: []string{"42", "latest"}}

	if got := ref.PrimaryName(); got != "docker.io/acme/app:42" {
		t.Errorf("PrimaryName: got %q", got)
	}
	names := ref.Names()
	if len(names) != 2 || names[0] != "docker.io/acme/app:42" || names[1] != "docker.io/acme/app:latest" {
		t.Errorf("Names: got %v", names)
	}
}

func TestImageReference_NoRegistry(t *testing.T) {
	ref := ImageReference{Repository: "app", Tags: []string{"1"}}
	if got := ref.PrimaryName(); got != "app:1" {
		t.Errorf("PrimaryName: got %q", got)
	}
}
