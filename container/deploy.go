package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Deployer replaces a named running instance with a new one backed by a
// freshly built image.
type Deployer struct {
	engine Engine
	gate   *HealthGate
	logger *slog.Logger

	// Settle is how long to wait after the start before health checking.
	Settle time.Duration
}

// NewDeployer creates a Deployer on the given engine and health gate.
func NewDeployer(engine Engine, gate *HealthGate, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		engine: engine,
		gate:   gate,
		logger: logger,
		Settle: 10 * time.Second,
	}
}

// Deploy is idempotent: an existing instance named name is stopped and
// removed first, and its absence is not an error. The new instance is
// started on hostPort, given a settle interval, then health checked within
// budget. On a failed health check the instance is deliberately left running
// so an operator can inspect it; there is no rollback to the previous
// instance.
func (d *Deployer) Deploy(ctx context.Context, name string, ref ImageReference, hostPort, containerPort int, healthPath string, budget, interval time.Duration) (DeploymentTarget, error) {
	running, err := d.engine.Running(ctx, name)
	if err != nil {
		return DeploymentTarget{}, fmt.Errorf("%w: checking for previous instance: %v", ErrDeployFailed, err)
	}
	if running {
		d.logger.Info("replacing previous instance", "name", name)
		if err := d.engine.Stop(ctx, name); err != nil {
			return DeploymentTarget{}, fmt.Errorf("%w: stopping previous instance: %v", ErrDeployFailed, err)
		}
	}
	// Remove also reclaims stopped leftovers from aborted runs; a missing
	// container is fine.
	_ = d.engine.Remove(ctx, name)

	if err := d.engine.Run(ctx, RunOptions{
		Name:          name,
		Image:         ref.PrimaryName(),
		HostPort:      hostPort,
		ContainerPort: containerPort,
	}); err != nil {
		return DeploymentTarget{}, fmt.Errorf("%w: starting %s: %v", ErrDeployFailed, name, err)
	}

	select {
	case <-ctx.Done():
		return DeploymentTarget{}, fmt.Errorf("%w: %v", ErrDeployFailed, ctx.Err())
	case <-time.After(d.Settle):
	}

	url := fmt.Sprintf("http://localhost:%d", hostPort)
	if err := d.gate.Check(ctx, url, healthPath, budget, interval); err != nil {
		return DeploymentTarget{}, fmt.Errorf("%w: %s did not become healthy (left running for inspection): %v",
			ErrDeployFailed, name, err)
	}

	d.logger.Info("deployed", "name", name, "image", ref.PrimaryName(), "url", url)
	return DeploymentTarget{
		Name:  name,
		Image: ref.PrimaryName(),
		Port:  hostPort,
		URL:   url,
	}, nil
}
