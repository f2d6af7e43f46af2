package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// StaticProvider serves credentials from a fixed map, typically seeded from
// configuration at startup. Useful for tests and local runs.
type StaticProvider struct {
	creds map[string]Credential
}

// NewStatic creates a StaticProvider over a copy of the given map.
func NewStatic(creds map[string]Credential) *StaticProvider {
	m := make(map[string]Credential, len(creds))
	for name, c := range creds {
		c.Name = name
		m[name] = c
	}
	return &StaticProvider{creds: m}
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) Resolve(_ context.Context, name string) (Credential, error) {
	c, ok := p.creds[name]
	if !ok {
		return Credential{}, fmt.Errorf("static: %q: %w", name, ErrCredentialNotFound)
	}
	return c, nil
}

// EnvProvider resolves credentials from the process environment. A credential
// named "docker-hub-credentials" maps to CONVEY_CRED_DOCKER_HUB_CREDENTIALS_USERNAME
// and ..._PASSWORD.
type EnvProvider struct {
	prefix string
}

// NewEnv creates an EnvProvider with the default CONVEY_CRED_ prefix.
func NewEnv() *EnvProvider {
	return &EnvProvider{prefix: "CONVEY_CRED_"}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Resolve(_ context.Context, name string) (Credential, error) {
	key := p.prefix + envKey(name)
	password, ok := os.LookupEnv(key + "_PASSWORD")
	if !ok {
		return Credential{}, fmt.Errorf("env: %q: %w", name, ErrCredentialNotFound)
	}
	return Credential{
		Name:     name,
		Username: os.Getenv(key + "_USERNAME"),
		Secret:   password,
	}, nil
}

func envKey(name string) string {
	s := strings.ToUpper(name)
	s = strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(s)
	return s
}
