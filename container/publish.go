package container

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/initializ/convey/credentials"
)

// Publisher pushes every tag of an image reference to its registry inside a
// scoped login session.
type Publisher struct {
	engine Engine
	logger *slog.Logger
}

// NewPublisher creates a Publisher on the given engine.
func NewPublisher(engine Engine, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{engine: engine, logger: logger}
}

// Publish authenticates with cred, pushes each tag in order, and revokes the
// session regardless of push outcome. If a push fails the call fails as a
// whole; tags already pushed stay in the registry — there is no remote
// rollback, and the error says how far the push got.
func (p *Publisher) Publish(ctx context.Context, ref ImageReference, cred credentials.Credential) error {
	if err := p.engine.Login(ctx, ref.Registry, cred.Username, cred.Secret); err != nil {
		return fmt.Errorf("%w: login as %s: %v", ErrPublishFailed, cred.Username, err)
	}
	defer func() {
		// The authenticated session must not outlive this call.
		if err := p.engine.Logout(context.WithoutCancel(ctx), ref.Registry); err != nil {
			p.logger.Warn("registry logout failed", "registry", ref.Registry, "error", err)
		}
	}()

	var pushed []string
	for _, name := range ref.Names() {
		p.logger.Info("pushing image", "image", name)
		if err := p.engine.Push(ctx, name); err != nil {
			return fmt.Errorf("%w: pushing %s (already pushed: %s): %v",
				ErrPublishFailed, name, pushedList(pushed), err)
		}
		pushed = append(pushed, name)
	}
	return nil
}

func pushedList(pushed []string) string {
	if len(pushed) == 0 {
		return "none"
	}
	return strings.Join(pushed, ", ")
}
