package container

import (
	"context"
	"fmt"
	"log/slog"
)

// Builder builds an image once and applies every requested tag to it.
type Builder struct {
	engine Engine
	logger *slog.Logger
}

// NewBuilder creates a Builder on the given engine.
func NewBuilder(engine Engine, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{engine: engine, logger: logger}
}

// Build builds the image from contextDir and tags it with every tag in ref.
// The build runs once against the primary tag; the remaining tags are applied
// from it afterwards, so a failed build never moves any tag. Returns the
// reference unchanged on success.
func (b *Builder) Build(ctx context.Context, contextDir, dockerfile string, ref ImageReference) (ImageReference, error) {
	if len(ref.Tags) == 0 {
		return ImageReference{}, fmt.Errorf("%w: no tags requested", ErrBuildFailed)
	}

	primary := ref.PrimaryName()
	b.logger.Info("building image", "image", primary, "context", contextDir)

	err := b.engine.Build(ctx, BuildOptions{
		ContextDir: contextDir,
		Dockerfile: dockerfile,
		Tag:        primary,
	})
	if err != nil {
		return ImageReference{}, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	for _, tag := range ref.Tags[1:] {
		if err := b.engine.Tag(ctx, primary, ref.Name(tag)); err != nil {
			return ImageReference{}, fmt.Errorf("%w: tagging %s: %v", ErrBuildFailed, ref.Name(tag), err)
		}
	}

	return ref, nil
}
