// Package awssm provides an AWS Secrets Manager credential provider.
//
// Secrets are expected to hold a JSON object with "username" and "password"
// fields; a plain string secret is treated as a password-only credential.
package awssm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/initializ/convey/credentials"
)

// SecretsManagerAPI is the subset of the AWS Secrets Manager client the
// provider uses. Declared as an interface so unit tests can substitute a
// fake without network access.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Provider resolves credentials from AWS Secrets Manager.
type Provider struct {
	client SecretsManagerAPI
	prefix string
}

// Option configures the provider.
type Option func(*options)

type options struct {
	region   string
	endpoint string
	prefix   string
	client   SecretsManagerAPI
}

// WithRegion overrides the AWS region.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint overrides the service endpoint (LocalStack testing).
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithPrefix prepends a path prefix to every secret name, e.g. "ci/".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithClient injects a pre-built client; used by tests.
func WithClient(client SecretsManagerAPI) Option {
	return func(o *options) { o.client = client }
}

// New creates a Provider using the default AWS configuration chain.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	client := o.client
	if client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(o.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		client = secretsmanager.NewFromConfig(cfg, func(smo *secretsmanager.Options) {
			if o.endpoint != "" {
				smo.BaseEndpoint = aws.String(o.endpoint)
			}
		})
	}

	return &Provider{client: client, prefix: o.prefix}, nil
}

func (p *Provider) Name() string { return "aws-secrets-manager" }

// Resolve fetches the named secret and decodes it into a credential.
func (p *Provider) Resolve(ctx context.Context, name string) (credentials.Credential, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.prefix + name),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return credentials.Credential{}, fmt.Errorf("aws-secrets-manager: %q: %w",
				name, credentials.ErrCredentialNotFound)
		}
		return credentials.Credential{}, fmt.Errorf("aws-secrets-manager: fetching %q: %w", name, err)
	}

	var raw string
	switch {
	case out.SecretString != nil:
		raw = *out.SecretString
	case out.SecretBinary != nil:
		raw = string(out.SecretBinary)
	default:
		return credentials.Credential{}, fmt.Errorf("aws-secrets-manager: %q has no value", name)
	}

	return decode(name, raw), nil
}

func decode(name, raw string) credentials.Credential {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err == nil && payload.Password != "" {
		return credentials.Credential{Name: name, Username: payload.Username, Secret: payload.Password}
	}
	return credentials.Credential{Name: name, Secret: raw}
}
