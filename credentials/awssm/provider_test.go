package awssm

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/initializ/convey/credentials"
)

type fakeSecretsManager struct {
	secrets map[string]string
	lastID  string
}

func (f *fakeSecretsManager) GetSecretValue(
	_ context.Context,
	params *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	f.lastID = aws.ToString(params.SecretId)
	value, ok := f.secrets[f.lastID]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func newProvider(t *testing.T, fake *fakeSecretsManager, opts ...Option) *Provider {
	t.Helper()
	p, err := New(context.Background(), append(opts, WithClient(fake))...)
	require.NoError(t, err)
	return p
}

func TestResolve_JSONSecret(t *testing.T) {
	fake := &fakeSecretsManager{secrets: map[string]string{
		"docker-hub-credentials": `{"username":"acme","password":"hunter2"}`,
	}}
	p := newProvider(t, fake)

	cred, err := p.Resolve(context.Background(), "docker-hub-credentials")
	require.NoError(t, err)
	assert.Equal(t, "acme", cred.Username)
	assert.Equal(t, "hunter2", cred.Secret)
}

func TestResolve_PlainStringSecret(t *testing.T) {
	fake := &fakeSecretsManager{secrets: map[string]string{
		"api-token": "tok-123",
	}}
	p := newProvider(t, fake)

	cred, err := p.Resolve(context.Background(), "api-token")
	require.NoError(t, err)
	assert.Empty(t, cred.Username)
	assert.Equal(t, "tok-123", cred.Secret)
}

func TestResolve_NotFound(t *testing.T) {
	p := newProvider(t, &fakeSecretsManager{})

	_, err := p.Resolve(context.Background(), "absent")
	assert.ErrorIs(t, err, credentials.ErrCredentialNotFound)
}

func TestResolve_PrefixApplied(t *testing.T) {
	fake := &fakeSecretsManager{secrets: map[string]string{
		"ci/docker-hub-credentials": `{"username":"acme","password":"pw"}`,
	}}
	p := newProvider(t, fake, WithPrefix("ci/"))

	_, err := p.Resolve(context.Background(), "docker-hub-credentials")
	require.NoError(t, err)
	assert.Equal(t, "ci/docker-hub-credentials", fake.lastID)
}
