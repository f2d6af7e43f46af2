// Package config loads and validates the convey.yaml pipeline definition.
// File values can be overridden through CONVEY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full convey.yaml document: engine settings plus the ordered
// stage descriptors the orchestrator interprets.
type Config struct {
	Version string `koanf:"version"`
	Project string `koanf:"project"`
	// Engine forces docker or podman; empty means auto-detect.
	Engine string `koanf:"engine"`

	Image       ImageConfig       `koanf:"image"`
	Deploy      DeployConfig      `koanf:"deploy"`
	Health      HealthConfig      `koanf:"health"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Notify      NotifyConfig      `koanf:"notify"`
	History     HistoryConfig     `koanf:"history"`

	// BuildURL points at this run in an embedding scheduler; optional.
	BuildURL string `koanf:"build_url"`

	Stages []StageSpec `koanf:"stages"`
}

// ImageConfig names the image this pipeline produces.
type ImageConfig struct {
	Registry   string `koanf:"registry"`
	Repository string `koanf:"repository"`
	Context    string `koanf:"context"`
	Dockerfile string `koanf:"dockerfile"`
}

// DeployConfig names the persistent staging instance.
type DeployConfig struct {
	Target        string `koanf:"target"`
	Port          int    `koanf:"port"`
	ContainerPort int    `koanf:"container_port"`
	Settle        string `koanf:"settle"`
}

// HealthConfig bounds the liveness polling.
type HealthConfig struct {
	Path     string `koanf:"path"`
	Budget   string `koanf:"budget"`
	Interval string `koanf:"interval"`
}

// CredentialsConfig selects credential providers.
type CredentialsConfig struct {
	// Sources are consulted in order; supported: "env", "aws".
	Sources   []string `koanf:"sources"`
	AWSRegion string   `koanf:"aws_region"`
	AWSPrefix string   `koanf:"aws_prefix"`
}

// NotifyConfig configures run notifications.
type NotifyConfig struct {
	Recipients []string   `koanf:"recipients"`
	SMTP       SMTPConfig `koanf:"smtp"`
}

// SMTPConfig points at the mail relay. Credential names the relay login in
// the credential store; empty means unauthenticated.
type SMTPConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	From       string `koanf:"from"`
	Credential string `koanf:"credential"`
}

// HistoryConfig locates the run history database.
type HistoryConfig struct {
	Path string `koanf:"path"`
}

// StageSpec is one stage descriptor. Which fields apply depends on Type;
// the schema enforces the shape, the stage factory enforces the semantics.
type StageSpec struct {
	Name       string   `koanf:"name"`
	Type       string   `koanf:"type"`
	Timeout    string   `koanf:"timeout"`
	Command    []string `koanf:"command"`
	Dir        string   `koanf:"dir"`
	Context    string   `koanf:"context"`
	Dockerfile string   `koanf:"dockerfile"`
	Port       int      `koanf:"port"`
	Target     string   `koanf:"target"`
	Credential string   `koanf:"credential"`
}

// Load reads the pipeline definition from path, applies CONVEY_* environment
// overrides and defaults, and schema-validates the file contents.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline definition %s: %w", path, err)
	}
	if errs, err := ValidatePipeline(raw); err != nil {
		return nil, err
	} else if len(errs) > 0 {
		return nil, fmt.Errorf("pipeline definition %s invalid: %s", path, strings.Join(errs, "; "))
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing pipeline definition %s: %w", path, err)
	}

	// Environment overrides: CONVEY_DEPLOY_PORT=5001 sets deploy.port.
	if err := k.Load(env.Provider("CONVEY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CONVEY_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding pipeline definition: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Image.Context == "" {
		c.Image.Context = "."
	}
	if c.Image.Repository == "" {
		c.Image.Repository = c.Project
	}
	if c.Deploy.ContainerPort == 0 {
		c.Deploy.ContainerPort = c.Deploy.Port
	}
	if c.Health.Path == "" {
		c.Health.Path = "/health"
	}
	if len(c.Credentials.Sources) == 0 {
		c.Credentials.Sources = []string{"env"}
	}
	if c.History.Path == "" {
		c.History.Path = ".convey/history.db"
	}
}

// SettleDuration returns the post-start settle interval.
func (c *Config) SettleDuration() time.Duration {
	return parseDuration(c.Deploy.Settle, 10*time.Second)
}

// HealthBudget returns the liveness polling budget.
func (c *Config) HealthBudget() time.Duration {
	return parseDuration(c.Health.Budget, 30*time.Second)
}

// HealthInterval returns the liveness polling interval.
func (c *Config) HealthInterval() time.Duration {
	return parseDuration(c.Health.Interval, 2*time.Second)
}

// TimeoutDuration returns the stage timeout, zero when unset.
func (s StageSpec) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("stage %s: invalid timeout %q: %w", s.Name, s.Timeout, err)
	}
	return d, nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
