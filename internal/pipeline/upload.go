package pipeline

import (
	"context"
	"os"

	"photoq/internal/models"
	"photoq/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// upload pushes every variant concurrently. All must succeed; anything
// partially written is overwritten by the retry of the same job.
func (p *submissionPipeline) upload(ctx context.Context, job *models.Job) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, variant := range job.Variants {
		variant := variant
		g.Go(func() error {
			key := variant.RemoteKey(job.UUID)

			// A redelivered job may have pushed part of the set already.
			// Keys are derived from the uuid, so an existing blob holds the
			// same content this attempt would write.
			if job.Attempt > 1 {
				if exists, err := p.storage.Exists(gctx, key); err == nil && exists {
					logger.DebugWithContext(gctx, "Variant already uploaded, skipping",
						zap.String("key", key))
					return nil
				}
			}

			f, err := os.Open(variant.LocalPath)
			if err != nil {
				return models.ProcessingError{Operation: "upload", Reason: err.Error()}
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return models.ProcessingError{Operation: "upload", Reason: err.Error()}
			}

			if err := p.storage.Upload(gctx, key, f, info.Size(), "image/jpeg"); err != nil {
				return models.StorageError{Operation: "upload", Key: key, Reason: err.Error()}
			}

			logger.DebugWithContext(gctx, "Variant uploaded",
				zap.String("kind", string(variant.Kind)),
				zap.String("key", key),
				zap.Int64("size", info.Size()))
			return nil
		})
	}

	return g.Wait()
}
