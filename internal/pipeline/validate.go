package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"photoq/internal/models"
)

// validate inspects the source file without opening a write handle.
// Only JPEG sources large enough on their long edge are accepted.
func (p *submissionPipeline) validate(ctx context.Context, job *models.Job) error {
	if err := ctx.Err(); err != nil {
		return models.ProcessingError{Operation: "validate", Reason: err.Error()}
	}

	f, err := os.Open(job.Source)
	if err != nil {
		return models.ProcessingError{Operation: "validate", Reason: err.Error()}
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return models.ValidationError{Field: "format", Message: "unrecognized image format"}
		}
		return models.ProcessingError{Operation: "validate", Reason: err.Error()}
	}

	if format != "jpeg" {
		return models.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q, only jpeg is accepted", format)}
	}

	longEdge := cfg.Width
	if cfg.Height > longEdge {
		longEdge = cfg.Height
	}
	if longEdge < p.cfg.MinimumDimension {
		return models.ValidationError{
			Field:   "size",
			Message: fmt.Sprintf("image is %dx%d, long edge must be at least %d", cfg.Width, cfg.Height, p.cfg.MinimumDimension),
		}
	}

	return nil
}
