// Package container provides image building, registry publishing, deployment
// and health gating on top of the docker or podman CLI.
package container

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Engine is the container CLI surface the pipeline needs. DockerEngine and
// PodmanEngine implement it; tests use a fake.
type Engine interface {
	Name() string
	Available() bool
	Build(ctx context.Context, opts BuildOptions) error
	Tag(ctx context.Context, src, dst string) error
	Push(ctx context.Context, image string) error
	Login(ctx context.Context, registry, username, password string) error
	Logout(ctx context.Context, registry string) error
	Run(ctx context.Context, opts RunOptions) error
	Stop(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
	Running(ctx context.Context, name string) (bool, error)
}

// BuildOptions configures a container image build.
type BuildOptions struct {
	ContextDir string
	Dockerfile string
	Tag        string
	BuildArgs  map[string]string
}

// RunOptions configures a detached container start.
type RunOptions struct {
	Name          string
	Image         string
	HostPort      int
	ContainerPort int
	Env           map[string]string
}

// Detect returns the first available engine in order: docker, podman.
// Returns nil if neither is installed.
func Detect() Engine {
	engines := []Engine{NewDocker(), NewPodman()}
	for _, e := range engines {
		if e.Available() {
			return e
		}
	}
	return nil
}

// Get returns an engine by name, or nil if the name is unknown.
func Get(name string) Engine {
	switch name {
	case "docker":
		return NewDocker()
	case "podman":
		return NewPodman()
	default:
		return nil
	}
}

// cliEngine drives a docker-compatible CLI. Podman keeps the same argument
// surface, so both engines share it.
type cliEngine struct {
	bin string
}

func (e *cliEngine) Name() string { return e.bin }

func (e *cliEngine) Available() bool {
	return exec.Command(e.bin, "info").Run() == nil
}

func (e *cliEngine) Build(ctx context.Context, opts BuildOptions) error {
	args := []string{"build"}
	if opts.Tag != "" {
		args = append(args, "-t", opts.Tag)
	}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	for k, v := range opts.BuildArgs {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, v))
	}
	contextDir := opts.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	args = append(args, contextDir)
	return e.exec(ctx, nil, args...)
}

func (e *cliEngine) Tag(ctx context.Context, src, dst string) error {
	return e.exec(ctx, nil, "tag", src, dst)
}

func (e *cliEngine) Push(ctx context.Context, image string) error {
	return e.exec(ctx, nil, "push", image)
}

func (e *cliEngine) Login(ctx context.Context, registry, username, password string) error {
	args := []string{"login", "-u", username, "--password-stdin"}
	if registry != "" {
		args = append(args, registry)
	}
	// The password goes through stdin only; it must never appear in argv,
	// which is visible to every process on the host.
	return e.exec(ctx, strings.NewReader(password), args...)
}

func (e *cliEngine) Logout(ctx context.Context, registry string) error {
	args := []string{"logout"}
	if registry != "" {
		args = append(args, registry)
	}
	return e.exec(ctx, nil, args...)
}

func (e *cliEngine) Run(ctx context.Context, opts RunOptions) error {
	args := []string{"run", "-d", "--name", opts.Name}
	if opts.HostPort > 0 {
		args = append(args, "-p", fmt.Sprintf("%d:%d", opts.HostPort, opts.ContainerPort))
	}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, opts.Image)
	return e.exec(ctx, nil, args...)
}

func (e *cliEngine) Stop(ctx context.Context, name string) error {
	return e.exec(ctx, nil, "stop", name)
}

func (e *cliEngine) Remove(ctx context.Context, name string) error {
	return e.exec(ctx, nil, "rm", "-f", name)
}

func (e *cliEngine) Running(ctx context.Context, name string) (bool, error) {
	cmd := exec.CommandContext(ctx, e.bin, "ps", "--format", "{{.Names}}",
		"--filter", "name="+name)
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("%s ps: %w", e.bin, err)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

func (e *cliEngine) exec(ctx context.Context, stdin *strings.Reader, args ...string) error {
	cmd := exec.CommandContext(ctx, e.bin, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %s: %w", e.bin, args[0], strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// DockerEngine drives the docker CLI.
type DockerEngine struct{ cliEngine }

// NewDocker creates a DockerEngine.
func NewDocker() *DockerEngine { return &DockerEngine{cliEngine{bin: "docker"}} }

// PodmanEngine drives the podman CLI.
type PodmanEngine struct{ cliEngine }

// NewPodman creates a PodmanEngine.
func NewPodman() *PodmanEngine { return &PodmanEngine{cliEngine{bin: "podman"}} }
