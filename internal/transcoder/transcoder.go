package transcoder

import (
	"context"
	"image"
	"path/filepath"

	"photoq/internal/geometry"
	"photoq/internal/models"
	"photoq/pkg/logger"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Config holds the variant chain parameters
type Config struct {
	LargeSize        int
	MediumSize       int
	SmallSize        int
	ThumbnailSize    int
	JPEGQuality      int
	ThumbnailSharpen float64
	GenerateSmall    bool
}

// Transcoder derives the variant chain from one source image, writing every
// rendition into the job's scratch directory
type Transcoder struct {
	config Config
}

// New creates a new transcoder
func New(config Config) *Transcoder {
	return &Transcoder{config: config}
}

// Produce writes the full variant chain for sourcePath into scratchDir and
// returns the variants in production order. Every failure is a retryable
// processing error: validation has already accepted the source, so a broken
// decode here is an I/O problem, not a rejection.
func (t *Transcoder) Produce(ctx context.Context, sourcePath, scratchDir string) ([]models.Variant, error) {
	// Apply embedded rotation metadata before anything measures the image
	src, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, models.ProcessingError{Operation: "orient_source", Reason: err.Error()}
	}

	fullPath := filepath.Join(scratchDir, models.VariantFull.LocalFilename())
	if err := t.save(src, fullPath); err != nil {
		return nil, err
	}

	// Reopen full.jpg: its dimensions are the authoritative post-orientation
	// size every later plan is computed from
	full, err := imaging.Open(fullPath)
	if err != nil {
		return nil, models.ProcessingError{Operation: "reopen_full", Reason: err.Error()}
	}

	orig := boundsOf(full)
	portrait := geometry.IsPortrait(orig)

	logger.DebugWithContext(ctx, "Source oriented",
		zap.Int("width", orig.Width),
		zap.Int("height", orig.Height),
		zap.Bool("portrait", portrait))

	variants := []models.Variant{{
		Kind:      models.VariantFull,
		Width:     orig.Width,
		Height:    orig.Height,
		LocalPath: fullPath,
	}}

	if err := ctx.Err(); err != nil {
		return nil, models.ProcessingError{Operation: "transcode", Reason: err.Error()}
	}

	largeSize := geometry.PlanLarge(orig, t.config.LargeSize)
	large := imaging.Resize(full, largeSize.Width, largeSize.Height, imaging.Lanczos)
	largePath := filepath.Join(scratchDir, models.VariantLarge.LocalFilename())
	if err := t.save(large, largePath); err != nil {
		return nil, err
	}
	variants = append(variants, models.Variant{
		Kind:      models.VariantLarge,
		Width:     largeSize.Width,
		Height:    largeSize.Height,
		LocalPath: largePath,
	})

	mediumSize := geometry.PlanResize(largeSize, t.config.MediumSize, portrait)
	medium := imaging.Resize(large, mediumSize.Width, mediumSize.Height, imaging.Lanczos)
	mediumPath := filepath.Join(scratchDir, models.VariantMedium.LocalFilename())
	if err := t.save(medium, mediumPath); err != nil {
		return nil, err
	}
	variants = append(variants, models.Variant{
		Kind:      models.VariantMedium,
		Width:     mediumSize.Width,
		Height:    mediumSize.Height,
		LocalPath: mediumPath,
	})

	if t.config.GenerateSmall {
		smallSize := geometry.PlanResize(mediumSize, t.config.SmallSize, portrait)
		small := imaging.Resize(medium, smallSize.Width, smallSize.Height, imaging.Lanczos)
		smallPath := filepath.Join(scratchDir, models.VariantSmall.LocalFilename())
		if err := t.save(small, smallPath); err != nil {
			return nil, err
		}
		variants = append(variants, models.Variant{
			Kind:      models.VariantSmall,
			Width:     smallSize.Width,
			Height:    smallSize.Height,
			LocalPath: smallPath,
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, models.ProcessingError{Operation: "transcode", Reason: err.Error()}
	}

	thumb, err := t.thumbnail(medium, orig)
	if err != nil {
		return nil, err
	}
	thumbPath := filepath.Join(scratchDir, models.VariantThumbnail.LocalFilename())
	if err := t.save(thumb, thumbPath); err != nil {
		return nil, err
	}
	variants = append(variants, models.Variant{
		Kind:      models.VariantThumbnail,
		Width:     t.config.ThumbnailSize,
		Height:    t.config.ThumbnailSize,
		LocalPath: thumbPath,
	})

	return variants, nil
}

// thumbnail crops the square window out of the medium variant and resizes it
// to the configured thumbnail edge, with a light sharpen pass to compensate
// for downsampling softness
func (t *Transcoder) thumbnail(medium image.Image, orig geometry.Size) (image.Image, error) {
	plan := geometry.PlanThumbnailCrop(orig, t.config.MediumSize).Clamp(boundsOf(medium))
	if plan.Size <= 0 {
		return nil, models.ProcessingError{Operation: "crop_thumbnail", Reason: "empty crop window"}
	}

	cropped := imaging.Crop(medium, image.Rect(plan.X, plan.Y, plan.X+plan.Size, plan.Y+plan.Size))
	thumb := imaging.Resize(cropped, t.config.ThumbnailSize, t.config.ThumbnailSize, imaging.Lanczos)

	if t.config.ThumbnailSharpen > 0 {
		thumb = imaging.Sharpen(thumb, t.config.ThumbnailSharpen)
	}

	return thumb, nil
}

func (t *Transcoder) save(img image.Image, path string) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(t.config.JPEGQuality)); err != nil {
		return models.ProcessingError{Operation: "encode_" + filepath.Base(path), Reason: err.Error()}
	}
	return nil
}

func boundsOf(img image.Image) geometry.Size {
	bounds := img.Bounds()
	return geometry.Size{Width: bounds.Dx(), Height: bounds.Dy()}
}
