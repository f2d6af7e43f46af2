package container

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HealthGate decides whether an instance is ready by polling its liveness
// endpoint with bounded retries.
type HealthGate struct {
	engine Engine
	client *http.Client
	logger *slog.Logger
}

// NewHealthGate creates a HealthGate on the given engine.
func NewHealthGate(engine Engine, logger *slog.Logger) *HealthGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthGate{
		engine: engine,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Check polls baseURL+path every interval until a 2xx response or until
// budget elapses. Budget expiry returns an error wrapping both ErrUnhealthy
// and context.DeadlineExceeded so the stage runner classifies it as a
// timeout.
func (g *HealthGate) Check(ctx context.Context, baseURL, path string, budget, interval time.Duration) error {
	url := baseURL + path
	deadline := time.Now().Add(budget)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("health check of %s interrupted: %w", url, err)
		}
		resp, err := g.client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			g.logger.Debug("liveness probe not ready", "url", url, "status", resp.StatusCode)
		} else {
			g.logger.Debug("liveness probe unreachable", "url", url, "error", err)
		}
		if time.Now().Add(interval).After(deadline) {
			return fmt.Errorf("%w: %s gave no success response within %s: %w",
				ErrUnhealthy, url, budget, context.DeadlineExceeded)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("health check of %s interrupted: %w", url, ctx.Err())
		case <-time.After(interval):
		}
	}
}

// CheckImage smoke-tests a built image: it starts a disposable instance
// under an ephemeral name, polls its liveness endpoint, and always stops and
// removes the instance afterwards, pass or fail.
func (g *HealthGate) CheckImage(ctx context.Context, image string, containerPort int, path string, budget, interval time.Duration) error {
	hostPort, err := freePort()
	if err != nil {
		return fmt.Errorf("finding free port: %w", err)
	}
	name := fmt.Sprintf("convey-test-%d", hostPort)

	if err := g.engine.Run(ctx, RunOptions{
		Name:          name,
		Image:         image,
		HostPort:      hostPort,
		ContainerPort: containerPort,
	}); err != nil {
		return fmt.Errorf("starting test instance %s: %w", name, err)
	}
	defer func() {
		// Release on every exit path, including cancellation.
		cleanupCtx := context.WithoutCancel(ctx)
		if err := g.engine.Stop(cleanupCtx, name); err != nil {
			g.logger.Warn("stopping test instance failed", "name", name, "error", err)
		}
		if err := g.engine.Remove(cleanupCtx, name); err != nil {
			g.logger.Warn("removing test instance failed", "name", name, "error", err)
		}
	}()

	baseURL := fmt.Sprintf("http://localhost:%d", hostPort)
	return g.Check(ctx, baseURL, path, budget, interval)
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port, nil
}
