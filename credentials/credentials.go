// Package credentials provides a named credential store with pluggable
// providers and log redaction of every resolved secret value.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrCredentialNotFound indicates that no provider knows the requested name.
var ErrCredentialNotFound = errors.New("credential not found")

// Credential is a resolved secret: a display-safe name plus opaque fields.
// Its formatted representations never include the secret values.
type Credential struct {
	Name     string
	Username string
	Secret   string
}

// String returns a display-safe identifier; the secret is masked.
func (c Credential) String() string {
	return fmt.Sprintf("%s (user=%s, secret=****)", c.Name, c.Username)
}

// GoString mirrors String so %#v cannot leak the secret either.
func (c Credential) GoString() string {
	return c.String()
}

// Provider resolves credential names to values. Implementations return an
// error wrapping ErrCredentialNotFound for unknown names.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, name string) (Credential, error)
}

// Store resolves credentials through an ordered provider chain and remembers
// every secret value it has handed out so that captured output can be
// scrubbed afterwards.
type Store struct {
	providers []Provider

	mu     sync.RWMutex
	secret []string
}

// NewStore creates a Store over the given providers, consulted in order.
func NewStore(providers ...Provider) *Store {
	return &Store{providers: providers}
}

// Resolve returns the named credential from the first provider that has it.
// It fails with ErrCredentialNotFound when no provider does.
func (s *Store) Resolve(ctx context.Context, name string) (Credential, error) {
	if name == "" {
		return Credential{}, fmt.Errorf("resolve: %w: empty name", ErrCredentialNotFound)
	}
	for _, p := range s.providers {
		cred, err := p.Resolve(ctx, name)
		if err == nil {
			s.remember(cred.Secret)
			return cred, nil
		}
		if !errors.Is(err, ErrCredentialNotFound) {
			return Credential{}, fmt.Errorf("provider %s resolving %q: %w", p.Name(), name, err)
		}
	}
	return Credential{}, fmt.Errorf("resolving %q: %w", name, ErrCredentialNotFound)
}

// RedactAll replaces every known secret value in s with a placeholder.
// Matching is by substring so secrets embedded in command output are caught.
func (s *Store) RedactAll(in string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.secret {
		if v == "" {
			continue
		}
		in = strings.ReplaceAll(in, v, "[redacted]")
	}
	return in
}

func (s *Store) remember(value string) {
	if value == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.secret {
		if v == value {
			return
		}
	}
	s.secret = append(s.secret, value)
}
