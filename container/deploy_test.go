package container

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func healthyServer(t *testing.T) (*httptest.Server, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Listener.Addr().(*net.TCPAddr).Port
}

func newTestDeployer(engine Engine) *Deployer {
	d := NewDeployer(engine, NewHealthGate(engine, nil), nil)
	d.Settle = time.Millisecond
	return d
}

func TestDeployer_FreshDeploy(t *testing.T) {
	_, port := healthyServer(t)
	engine := newFakeEngine()
	ref := ImageReference{Repository: "app", Tags: []string{"42"}}

	target, err := newTestDeployer(engine).Deploy(context.Background(),
		"app-staging", ref, port, 5000, "/health", time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if target.URL == "" || !strings.Contains(target.URL, "localhost") {
		t.Errorf("unexpected target URL %q", target.URL)
	}
	if target.Image != "app:42" {
		t.Errorf("unexpected target image %q", target.Image)
	}
	if hasCall(t, engine.callLog(), "stop") {
		t.Errorf("fresh deploy must not stop anything: %v", engine.callLog())
	}
}

func TestDeployer_ReplacesExistingInstance(t *testing.T) {
	_, port := healthyServer(t)
	engine := newFakeEngine()
	engine.running["app-staging"] = true
	ref := ImageReference{Repository: "app", Tags: []string{"43"}}

	if _, err := newTestDeployer(engine).Deploy(context.Background(),
		"app-staging", ref, port, 5000, "/health", time.Second, 10*time.Millisecond); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	calls := engine.callLog()
	var sequence []string
	for _, c := range calls {
		if strings.HasPrefix(c, "stop") || strings.HasPrefix(c, "remove") || strings.HasPrefix(c, "run") {
			sequence = append(sequence, strings.Fields(c)[0])
		}
	}
	want := []string{"stop", "remove", "run"}
	if len(sequence) != len(want) {
		t.Fatalf("expected %v, got %v", want, calls)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Errorf("step %d: expected %s, got %v", i, want[i], calls)
		}
	}
}

func TestDeployer_UnhealthyInstanceLeftRunning(t *testing.T) {
	engine := newFakeEngine()
	d := newTestDeployer(engine)
	ref := ImageReference{Repository: "app", Tags: []string{"42"}}

	// Nothing listens on the chosen port, so the health gate fails.
	port, err := freePort()
	if err != nil {
		t.Fatalf("freePort: %v", err)
	}
	_, err = d.Deploy(context.Background(), "app-staging", ref, port, 5000,
		"/health", 30*time.Millisecond, 10*time.Millisecond)
	if !errors.Is(err, ErrDeployFailed) {
		t.Fatalf("expected ErrDeployFailed, got %v", err)
	}

	running, _ := engine.Running(context.Background(), "app-staging")
	if !running {
		t.Error("failed instance must stay up for inspection")
	}
}
