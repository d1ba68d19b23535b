package testutil

import (
	"image"
	"image/color"
	"time"

	"photoq/internal/config"
	"photoq/internal/models"

	"github.com/disintegration/imaging"
)

// WriteJPEG writes a width x height JPEG fixture to path
func WriteJPEG(path string, width, height int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	return imaging.Save(img, path, imaging.JPEGQuality(90))
}

// WritePNG writes a PNG fixture to path, useful for format rejection tests
func WritePNG(path string, width, height int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	return imaging.Save(img, path)
}

// TestPipelineConfig returns the default pipeline configuration used in tests
func TestPipelineConfig(scratchRoot string) *config.PipelineConfig {
	return &config.PipelineConfig{
		MinimumDimension: 500,
		LargeSize:        1280,
		MediumSize:       640,
		SmallSize:        320,
		ThumbnailSize:    240,
		JPEGQuality:      90,
		ThumbnailSharpen: 0.2,
		GenerateSmall:    true,
		ScratchRoot:      scratchRoot,
		SubmissionCap:    3,
	}
}

// TestWorkerConfig returns a worker configuration with short timings for tests
func TestWorkerConfig() *config.WorkerConfig {
	return &config.WorkerConfig{
		Count:        1,
		MaxAttempts:  3,
		RetryBackoff: 10 * time.Millisecond,
		StageTimeout: 30 * time.Second,
	}
}

// TestJobMessage returns a valid inbound job message
func TestJobMessage(source string) models.JobMessage {
	return models.JobMessage{
		UUID:     "3f1c07d7-4f7e-4a8e-9a3d-1c2b3a4d5e6f",
		Source:   source,
		UserID:   42,
		Category: "landscape",
		Title:    "Morning fog",
	}
}
