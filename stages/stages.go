// Package stages provides the concrete pipeline stages convey knows how to
// run, plus the factory that builds them from stage descriptors.
package stages

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/initializ/convey/container"
	"github.com/initializ/convey/credentials"
	"github.com/initializ/convey/pipeline"
	"github.com/initializ/convey/runner"
)

// CommandStage runs one external command in the project workspace. Its
// combined output is captured through the run context so secrets are
// scrubbed before anyone sees it.
type CommandStage struct {
	name    string
	timeout time.Duration
	dir     string
	command []string
}

// NewCommand creates a CommandStage. The first command element is the
// program, the rest are its arguments.
func NewCommand(name string, timeout time.Duration, dir string, command []string) *CommandStage {
	return &CommandStage{name: name, timeout: timeout, dir: dir, command: command}
}

func (s *CommandStage) Name() string           { return s.name }
func (s *CommandStage) Timeout() time.Duration { return s.timeout }

func (s *CommandStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	if len(s.command) == 0 {
		return fmt.Errorf("stage %s: empty command", s.name)
	}
	_, err := runner.RunCommand(ctx, runner.Command{
		Dir:     s.dir,
		Program: s.command[0],
		Args:    s.command[1:],
		Env:     rc.Env,
	}, rc.Output())
	return err
}

// BuildImageStage builds the project image and tags it with the run number
// and "latest". The resulting reference is stored on the run context for the
// downstream stages.
type BuildImageStage struct {
	name       string
	timeout    time.Duration
	builder    *container.Builder
	registry   string
	repository string
	contextDir string
	dockerfile string
}

// NewBuildImage creates a BuildImageStage.
func NewBuildImage(name string, timeout time.Duration, builder *container.Builder, registry, repository, contextDir, dockerfile string) *BuildImageStage {
	return &BuildImageStage{
		name:       name,
		timeout:    timeout,
		builder:    builder,
		registry:   registry,
		repository: repository,
		contextDir: contextDir,
		dockerfile: dockerfile,
	}
}

func (s *BuildImageStage) Name() string           { return s.name }
func (s *BuildImageStage) Timeout() time.Duration { return s.timeout }

func (s *BuildImageStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	ref := container.ImageReference{
		Registry:   s.registry,
		Repository: s.repository,
		Tags:       []string{strconv.FormatInt(rc.RunNumber, 10), "latest"},
	}
	built, err := s.builder.Build(ctx, s.contextDir, s.dockerfile, ref)
	if err != nil {
		return err
	}
	rc.Image = built
	rc.Printf("built %s", built.PrimaryName())
	return nil
}

// ContainerTestStage smoke-tests the built image by starting a disposable
// instance and polling its liveness endpoint.
type ContainerTestStage struct {
	name          string
	timeout       time.Duration
	gate          *container.HealthGate
	containerPort int
	healthPath    string
	budget        time.Duration
	interval      time.Duration
}

// NewContainerTest creates a ContainerTestStage.
func NewContainerTest(name string, timeout time.Duration, gate *container.HealthGate, containerPort int, healthPath string, budget, interval time.Duration) *ContainerTestStage {
	return &ContainerTestStage{
		name:          name,
		timeout:       timeout,
		gate:          gate,
		containerPort: containerPort,
		healthPath:    healthPath,
		budget:        budget,
		interval:      interval,
	}
}

func (s *ContainerTestStage) Name() string           { return s.name }
func (s *ContainerTestStage) Timeout() time.Duration { return s.timeout }

func (s *ContainerTestStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	ref, err := imageFromContext(rc, s.name)
	if err != nil {
		return err
	}
	return s.gate.CheckImage(ctx, ref.PrimaryName(), s.containerPort, s.healthPath, s.budget, s.interval)
}

// PublishStage pushes every tag of the built image to the registry using a
// named credential.
type PublishStage struct {
	name       string
	timeout    time.Duration
	publisher  *container.Publisher
	creds      *credentials.Store
	credential string
}

// NewPublish creates a PublishStage.
func NewPublish(name string, timeout time.Duration, publisher *container.Publisher, creds *credentials.Store, credential string) *PublishStage {
	return &PublishStage{
		name:       name,
		timeout:    timeout,
		publisher:  publisher,
		creds:      creds,
		credential: credential,
	}
}

func (s *PublishStage) Name() string           { return s.name }
func (s *PublishStage) Timeout() time.Duration { return s.timeout }

func (s *PublishStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	ref, err := imageFromContext(rc, s.name)
	if err != nil {
		return err
	}
	cred, err := s.creds.Resolve(ctx, s.credential)
	if err != nil {
		return fmt.Errorf("stage %s: %w", s.name, err)
	}
	rc.Printf("publishing %s as %s", ref.PrimaryName(), cred.Username)
	return s.publisher.Publish(ctx, ref, cred)
}

// DeployStage replaces the persistent staging instance with the freshly
// built image and records its URL on the run context.
type DeployStage struct {
	name          string
	timeout       time.Duration
	deployer      *container.Deployer
	target        string
	hostPort      int
	containerPort int
	healthPath    string
	budget        time.Duration
	interval      time.Duration
}

// NewDeploy creates a DeployStage.
func NewDeploy(name string, timeout time.Duration, deployer *container.Deployer, target string, hostPort, containerPort int, healthPath string, budget, interval time.Duration) *DeployStage {
	return &DeployStage{
		name:          name,
		timeout:       timeout,
		deployer:      deployer,
		target:        target,
		hostPort:      hostPort,
		containerPort: containerPort,
		healthPath:    healthPath,
		budget:        budget,
		interval:      interval,
	}
}

func (s *DeployStage) Name() string           { return s.name }
func (s *DeployStage) Timeout() time.Duration { return s.timeout }

func (s *DeployStage) Execute(ctx context.Context, rc *pipeline.RunContext) error {
	ref, err := imageFromContext(rc, s.name)
	if err != nil {
		return err
	}
	target, err := s.deployer.Deploy(ctx, s.target, ref, s.hostPort, s.containerPort, s.healthPath, s.budget, s.interval)
	if err != nil {
		return err
	}
	rc.TargetURL = target.URL
	rc.Printf("deployed %s at %s", target.Name, target.URL)
	return nil
}

func imageFromContext(rc *pipeline.RunContext, stage string) (container.ImageReference, error) {
	ref, ok := rc.Image.(container.ImageReference)
	if !ok || len(ref.Tags) == 0 {
		return container.ImageReference{}, fmt.Errorf("stage %s: no image built yet", stage)
	}
	return ref, nil
}
