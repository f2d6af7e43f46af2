package stages

import (
	"fmt"

	"github.com/initializ/convey/config"
	"github.com/initializ/convey/container"
	"github.com/initializ/convey/credentials"
	"github.com/initializ/convey/pipeline"
)

// DefaultCredential is the registry credential used by publish stages that
// do not name their own.
const DefaultCredential = "docker-hub-credentials"

// Deps carries the shared components the concrete stages are built on.
type Deps struct {
	Builder   *container.Builder
	Publisher *container.Publisher
	Gate      *container.HealthGate
	Deployer  *container.Deployer
	Creds     *credentials.Store
}

// FromSpecs turns an ordered list of stage descriptors into concrete stages.
// Every descriptor is checked up front so a malformed pipeline fails before
// any stage runs.
func FromSpecs(cfg *config.Config, deps Deps) ([]pipeline.Stage, error) {
	seen := make(map[string]bool, len(cfg.Stages))
	out := make([]pipeline.Stage, 0, len(cfg.Stages))

	for _, spec := range cfg.Stages {
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate stage name %q", spec.Name)
		}
		seen[spec.Name] = true

		timeout, err := spec.TimeoutDuration()
		if err != nil {
			return nil, err
		}

		switch spec.Type {
		case "command":
			if len(spec.Command) == 0 {
				return nil, fmt.Errorf("stage %s: command stages need a command", spec.Name)
			}
			out = append(out, NewCommand(spec.Name, timeout, spec.Dir, spec.Command))

		case "build-image":
			contextDir := spec.Context
			if contextDir == "" {
				contextDir = cfg.Image.Context
			}
			dockerfile := spec.Dockerfile
			if dockerfile == "" {
				dockerfile = cfg.Image.Dockerfile
			}
			out = append(out, NewBuildImage(spec.Name, timeout, deps.Builder,
				cfg.Image.Registry, cfg.Image.Repository, contextDir, dockerfile))

		case "container-test":
			port := spec.Port
			if port == 0 {
				port = cfg.Deploy.ContainerPort
			}
			if port == 0 {
				return nil, fmt.Errorf("stage %s: no container port configured", spec.Name)
			}
			out = append(out, NewContainerTest(spec.Name, timeout, deps.Gate,
				port, cfg.Health.Path, cfg.HealthBudget(), cfg.HealthInterval()))

		case "publish":
			credential := spec.Credential
			if credential == "" {
				credential = DefaultCredential
			}
			out = append(out, NewPublish(spec.Name, timeout, deps.Publisher, deps.Creds, credential))

		case "deploy":
			target := spec.Target
			if target == "" {
				target = cfg.Deploy.Target
			}
			if target == "" {
				return nil, fmt.Errorf("stage %s: no deploy target configured", spec.Name)
			}
			hostPort := spec.Port
			if hostPort == 0 {
				hostPort = cfg.Deploy.Port
			}
			if hostPort == 0 {
				return nil, fmt.Errorf("stage %s: no deploy port configured", spec.Name)
			}
			out = append(out, NewDeploy(spec.Name, timeout, deps.Deployer, target,
				hostPort, cfg.Deploy.ContainerPort, cfg.Health.Path,
				cfg.HealthBudget(), cfg.HealthInterval()))

		default:
			return nil, fmt.Errorf("stage %s: unknown stage type %q", spec.Name, spec.Type)
		}
	}

	return out, nil
}
