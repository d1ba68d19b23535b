package pipeline

import (
	"context"
	"os"
	"time"

	"photoq/internal/config"
	"photoq/internal/models"
	"photoq/internal/repository"
	"photoq/internal/storage"
	"photoq/internal/transcoder"
	"photoq/pkg/logger"

	"go.uber.org/zap"
)

type submissionPipeline struct {
	cfg          *config.PipelineConfig
	stageTimeout time.Duration

	transcoder *transcoder.Transcoder
	storage    storage.BlobStorage
	repo       repository.SubmissionRepository
	markers    repository.MarkerStore
}

// New builds the submission pipeline from its stage dependencies
func New(cfg *config.PipelineConfig, workerCfg *config.WorkerConfig, tc *transcoder.Transcoder, blobs storage.BlobStorage, repo repository.SubmissionRepository, markers repository.MarkerStore) Pipeline {
	return &submissionPipeline{
		cfg:          cfg,
		stageTimeout: workerCfg.StageTimeout,
		transcoder:   tc,
		storage:      blobs,
		repo:         repo,
		markers:      markers,
	}
}

func (p *submissionPipeline) Process(ctx context.Context, job *models.Job) error {
	start := time.Now()

	// Redelivered jobs that already completed skip the whole pipeline.
	// Marker lookups are best effort; on error we just reprocess, which
	// every later stage tolerates.
	processed, err := p.markers.IsProcessed(ctx, job.UUID)
	if err != nil {
		logger.WarnWithContext(ctx, "Marker lookup failed, reprocessing", zap.Error(err))
	} else if processed {
		logger.InfoWithContext(ctx, "Submission already processed, skipping",
			zap.Int("attempt", job.Attempt))
		job.Stage = models.StageCompleted
		return nil
	}

	err = p.run(ctx, job)
	p.cleanup(ctx, job)

	if err != nil {
		job.Stage = models.StageFailed
		return err
	}

	job.Stage = models.StageCompleted
	logger.InfoWithContext(ctx, "Submission processed",
		zap.String("category", job.Category),
		zap.Int("variants", len(job.Variants)),
		zap.Int("attempt", job.Attempt),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (p *submissionPipeline) run(ctx context.Context, job *models.Job) error {
	if err := p.stage(ctx, job, models.StageValidating, func(ctx context.Context) error {
		if err := p.validate(ctx, job); err != nil {
			return err
		}
		return p.precheckQuota(ctx, job)
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, job, models.StagePreparingScratch, func(ctx context.Context) error {
		return p.prepareScratch(job)
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, job, models.StageTranscoding, func(ctx context.Context) error {
		variants, err := p.transcoder.Produce(ctx, job.Source, job.ScratchDir)
		if err != nil {
			return err
		}
		job.Variants = variants
		return nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, job, models.StageUploading, func(ctx context.Context) error {
		return p.upload(ctx, job)
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, job, models.StagePersisting, func(ctx context.Context) error {
		return p.persist(ctx, job)
	}); err != nil {
		// A rejection after upload leaves no blobs behind
		if models.IsTerminal(err) {
			p.discardUploads(ctx, job)
		}
		return err
	}
	return nil
}

// precheckQuota rejects over-cap submissions before any transcoding work.
// Best effort: the authoritative check runs inside the insert transaction,
// so a failed count here defers to persist instead of failing the job.
func (p *submissionPipeline) precheckQuota(ctx context.Context, job *models.Job) error {
	count, err := p.repo.CountByUserCategory(ctx, job.UserID, job.Category)
	if err != nil {
		logger.WarnWithContext(ctx, "Quota precheck failed, deferring to persist", zap.Error(err))
		return nil
	}
	if count >= p.cfg.SubmissionCap {
		return models.QuotaError{UserID: job.UserID, Category: job.Category, Limit: p.cfg.SubmissionCap}
	}
	return nil
}

// stage runs one step under its own deadline and records the transition
func (p *submissionPipeline) stage(ctx context.Context, job *models.Job, s models.Stage, fn func(context.Context) error) error {
	job.Stage = s

	stageCtx := ctx
	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(stageCtx)

	logger.DebugWithContext(ctx, "Stage finished",
		zap.String("stage", string(s)),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("ok", err == nil))
	return err
}

func (p *submissionPipeline) prepareScratch(job *models.Job) error {
	if err := os.MkdirAll(p.cfg.ScratchRoot, 0o755); err != nil {
		return models.ProcessingError{Operation: "scratch", Reason: err.Error()}
	}

	dir, err := os.MkdirTemp(p.cfg.ScratchRoot, "submission-"+job.UUID+"-")
	if err != nil {
		return models.ProcessingError{Operation: "scratch", Reason: err.Error()}
	}

	job.ScratchDir = dir
	return nil
}

func (p *submissionPipeline) persist(ctx context.Context, job *models.Job) error {
	user, err := p.repo.GetUser(ctx, job.UserID)
	if err != nil {
		return err
	}

	record := &models.SubmissionRecord{
		UUID:      job.UUID,
		UserID:    user.ID,
		Category:  job.Category,
		Title:     job.Title,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.repo.CreateSubmission(ctx, record); err != nil {
		return err
	}

	// Best effort: a lost marker only costs an idempotent rerun
	if err := p.markers.MarkProcessed(ctx, job.UUID); err != nil {
		logger.WarnWithContext(ctx, "Failed to mark submission processed", zap.Error(err))
	}

	full := models.Variant{Kind: models.VariantFull}
	logger.InfoWithContext(ctx, "Submission persisted",
		zap.String("category", job.Category),
		zap.String("url", p.storage.GetURL(full.RemoteKey(job.UUID))))
	return nil
}

// discardUploads removes the variants of a rejected submission from object
// storage. Best effort: an orphaned blob wastes space but breaks nothing.
func (p *submissionPipeline) discardUploads(ctx context.Context, job *models.Job) {
	for _, variant := range job.Variants {
		key := variant.RemoteKey(job.UUID)
		if err := p.storage.Delete(ctx, key); err != nil {
			logger.WarnWithContext(ctx, "Failed to discard rejected variant",
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// cleanup removes the scratch directory. It runs on success and failure
// alike and never turns into a job failure.
func (p *submissionPipeline) cleanup(ctx context.Context, job *models.Job) {
	if job.ScratchDir == "" {
		return
	}
	job.Stage = models.StageCleaningUp

	if err := os.RemoveAll(job.ScratchDir); err != nil {
		logger.ErrorWithContext(ctx, "Scratch cleanup failed",
			zap.String("dir", job.ScratchDir),
			zap.Error(err))
		return
	}
	job.ScratchDir = ""
}
