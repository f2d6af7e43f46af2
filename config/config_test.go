package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPipeline = `version: "1"
project: telco-churn

image:
  registry: docker.io
  repository: acme/telco-churn

deploy:
  target: telco-churn-staging
  port: 5000

health:
  budget: 45s

stages:
  - name: tests
    type: command
    timeout: 10m
    command: [make, test]
  - name: build
    type: build-image
  - name: deploy
    type: deploy
`

func writePipeline(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "convey.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writePipeline(t, validPipeline))
	require.NoError(t, err)

	assert.Equal(t, "telco-churn", cfg.Project)
	assert.Equal(t, "docker.io", cfg.Image.Registry)
	assert.Equal(t, 5000, cfg.Deploy.Port)
	require.Len(t, cfg.Stages, 3)
	assert.Equal(t, "tests", cfg.Stages[0].Name)

	timeout, err := cfg.Stages[0].TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, timeout)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writePipeline(t, validPipeline))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Image.Context)
	assert.Equal(t, 5000, cfg.Deploy.ContainerPort)
	assert.Equal(t, "/health", cfg.Health.Path)
	assert.Equal(t, []string{"env"}, cfg.Credentials.Sources)
	assert.Equal(t, ".convey/history.db", cfg.History.Path)
	assert.Equal(t, 45*time.Second, cfg.HealthBudget())
	assert.Equal(t, 2*time.Second, cfg.HealthInterval())
	assert.Equal(t, 10*time.Second, cfg.SettleDuration())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CONVEY_DEPLOY_PORT", "6000")

	cfg, err := Load(writePipeline(t, validPipeline))
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Deploy.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_SchemaViolation(t *testing.T) {
	_, err := Load(writePipeline(t, `version: "1"
project: app
stages:
  - name: weird
    type: teleport
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestValidatePipeline_ReportsErrors(t *testing.T) {
	errs, err := ValidatePipeline([]byte(`version: "2"
project: ""
stages: []
`))
	require.NoError(t, err)
	assert.NotEmpty(t, errs)
}

func TestValidatePipeline_RejectsUnknownStageField(t *testing.T) {
	errs, err := ValidatePipeline([]byte(`version: "1"
project: app
stages:
  - name: build
    type: build-image
    retries: 3
`))
	require.NoError(t, err)
	assert.NotEmpty(t, errs)
}

func TestValidatePipeline_Valid(t *testing.T) {
	errs, err := ValidatePipeline([]byte(validPipeline))
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidatePipeline_Unparseable(t *testing.T) {
	_, err := ValidatePipeline([]byte("version: [unclosed"))
	assert.Error(t, err)
}

func TestStageSpec_InvalidTimeout(t *testing.T) {
	spec := StageSpec{Name: "build", Timeout: "soon"}
	_, err := spec.TimeoutDuration()
	assert.Error(t, err)
}
