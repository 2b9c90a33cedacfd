package content

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"inkframe/internal/artifact"
	"inkframe/internal/codec"
	"inkframe/internal/logging"
)

// Target is the canvas a source image is produced for. Width and Height are
// already oriented for the mounted panel.
type Target struct {
	Width  int
	Height int
}

// Generator produces a source image for a target.
type Generator interface {
	Name() string
	Generate(ctx context.Context, target Target) (image.Image, error)
}

// Refresh renders with gen and publishes the result as PNG.
func Refresh(ctx context.Context, gen Generator, store *artifact.Store, target Target, logger *slog.Logger) (artifact.Info, error) {
	logger = logging.NewComponentLogger(logger, "content")
	img, err := gen.Generate(ctx, target)
	if err != nil {
		return artifact.Info{}, fmt.Errorf("content: generate %s: %w", gen.Name(), err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return artifact.Info{}, fmt.Errorf("content: encode png: %w", err)
	}
	info, err := store.Publish(ctx, &buf)
	if err != nil {
		return artifact.Info{}, err
	}

	b := img.Bounds()
	logger.Info("source image published",
		logging.String(logging.FieldEventType, "content_published"),
		logging.String("generator", gen.Name()),
		logging.Int("width", b.Dx()),
		logging.Int("height", b.Dy()),
		logging.Int64("bytes", info.Size),
		logging.String("path", info.Path),
	)
	return info, nil
}

// FileGenerator loads an existing image file.
type FileGenerator struct {
	Path string
	// MaxPixels bounds the declared canvas; zero means codec.DefaultMaxPixels.
	MaxPixels int
}

// Name implements Generator.
func (g FileGenerator) Name() string { return "file" }

// Generate implements Generator. The image is published as-is; fitting to the
// target happens at delivery time.
func (g FileGenerator) Generate(ctx context.Context, _ Target) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(g.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", g.Path, err)
	}
	img, _, err := codec.DecodeLimit(data, g.MaxPixels)
	if err != nil {
		return nil, err
	}
	return img, nil
}
