package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"photoq/internal/models"
	"photoq/internal/testutil"
	"photoq/internal/transcoder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	pipeline Pipeline
	storage  *testutil.MockBlobStorage
	repo     *testutil.MockSubmissionRepository
	markers  *testutil.MockMarkerStore

	scratchRoot string

	mu       sync.Mutex
	uploaded []string
	deleted  []string
	records  []*models.SubmissionRecord
	marked   []string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		scratchRoot: filepath.Join(t.TempDir(), "scratch"),
		storage:     &testutil.MockBlobStorage{},
		repo:        &testutil.MockSubmissionRepository{},
		markers:     &testutil.MockMarkerStore{},
	}

	f.storage.UploadFunc = func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
		assert.Equal(t, "image/jpeg", contentType)
		assert.Positive(t, size)
		f.mu.Lock()
		f.uploaded = append(f.uploaded, key)
		f.mu.Unlock()
		return nil
	}
	f.storage.DeleteFunc = func(ctx context.Context, key string) error {
		f.mu.Lock()
		f.deleted = append(f.deleted, key)
		f.mu.Unlock()
		return nil
	}
	f.repo.CreateSubmissionFunc = func(ctx context.Context, record *models.SubmissionRecord) error {
		f.mu.Lock()
		f.records = append(f.records, record)
		f.mu.Unlock()
		return nil
	}
	f.markers.MarkProcessedFunc = func(ctx context.Context, uuid string) error {
		f.mu.Lock()
		f.marked = append(f.marked, uuid)
		f.mu.Unlock()
		return nil
	}

	cfg := testutil.TestPipelineConfig(f.scratchRoot)
	tc := transcoder.New(transcoder.Config{
		LargeSize:        cfg.LargeSize,
		MediumSize:       cfg.MediumSize,
		SmallSize:        cfg.SmallSize,
		ThumbnailSize:    cfg.ThumbnailSize,
		JPEGQuality:      cfg.JPEGQuality,
		ThumbnailSharpen: cfg.ThumbnailSharpen,
		GenerateSmall:    cfg.GenerateSmall,
	})

	f.pipeline = New(cfg, testutil.TestWorkerConfig(), tc, f.storage, f.repo, f.markers)
	return f
}

func (f *pipelineFixture) newJob(t *testing.T, source string) *models.Job {
	t.Helper()
	msg := testutil.TestJobMessage(source)
	require.NoError(t, msg.Validate())
	return models.NewJob(msg, 1, 1, 3)
}

func writeSource(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.jpg")
	require.NoError(t, testutil.WriteJPEG(path, width, height))
	return path
}

func TestPipeline_Process_Success(t *testing.T) {
	f := newPipelineFixture(t)
	job := f.newJob(t, writeSource(t, 800, 600))

	err := f.pipeline.Process(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.StageCompleted, job.Stage)
	assert.Len(t, job.Variants, 5)

	sort.Strings(f.uploaded)
	assert.Equal(t, []string{
		job.UUID + "/full.jpg",
		job.UUID + "/large.jpg",
		job.UUID + "/medium.jpg",
		job.UUID + "/small.jpg",
		job.UUID + "/thumbnail.jpg",
	}, f.uploaded)

	require.Len(t, f.records, 1)
	assert.Equal(t, job.UUID, f.records[0].UUID)
	assert.Equal(t, int64(42), f.records[0].UserID)
	assert.Equal(t, "landscape", f.records[0].Category)
	assert.Equal(t, "Morning fog", f.records[0].Title)

	assert.Equal(t, []string{job.UUID}, f.marked)

	// Scratch space is gone after the terminal outcome
	entries, err := os.ReadDir(f.scratchRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_Process_RejectsNonJPEG(t *testing.T) {
	f := newPipelineFixture(t)
	source := filepath.Join(t.TempDir(), "source.png")
	require.NoError(t, testutil.WritePNG(source, 800, 600))
	job := f.newJob(t, source)

	err := f.pipeline.Process(context.Background(), job)
	require.Error(t, err)

	var verr models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "format", verr.Field)
	assert.True(t, models.IsTerminal(err))
	assert.Equal(t, models.StageFailed, job.Stage)

	// Validation failures never create scratch space
	_, statErr := os.Stat(f.scratchRoot)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, f.uploaded)
}

func TestPipeline_Process_RejectsUndersizedSource(t *testing.T) {
	f := newPipelineFixture(t)
	job := f.newJob(t, writeSource(t, 300, 200))

	err := f.pipeline.Process(context.Background(), job)
	require.Error(t, err)

	var verr models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "size", verr.Field)
	assert.True(t, models.IsTerminal(err))
}

func TestPipeline_Process_MissingSourceIsRetryable(t *testing.T) {
	f := newPipelineFixture(t)
	job := f.newJob(t, filepath.Join(t.TempDir(), "missing.jpg"))

	err := f.pipeline.Process(context.Background(), job)
	require.Error(t, err)

	var perr models.ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.False(t, models.IsTerminal(err))
}

func TestPipeline_Process_MarkerFastPath(t *testing.T) {
	f := newPipelineFixture(t)
	f.markers.IsProcessedFunc = func(ctx context.Context, uuid string) (bool, error) {
		return true, nil
	}
	job := f.newJob(t, writeSource(t, 800, 600))

	err := f.pipeline.Process(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.StageCompleted, job.Stage)
	assert.Empty(t, f.uploaded)
	assert.Empty(t, f.records)
}

func TestPipeline_Process_MarkerErrorFallsThrough(t *testing.T) {
	f := newPipelineFixture(t)
	f.markers.IsProcessedFunc = func(ctx context.Context, uuid string) (bool, error) {
		return false, errors.New("marker store down")
	}
	job := f.newJob(t, writeSource(t, 800, 600))

	require.NoError(t, f.pipeline.Process(context.Background(), job))
	assert.Len(t, f.uploaded, 5)
}

func TestPipeline_Process_UploadFailureIsRetryable(t *testing.T) {
	f := newPipelineFixture(t)
	f.storage.UploadFunc = func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
		return errors.New("connection reset")
	}
	job := f.newJob(t, writeSource(t, 800, 600))

	err := f.pipeline.Process(context.Background(), job)
	require.Error(t, err)

	var serr models.StorageError
	require.ErrorAs(t, err, &serr)
	assert.False(t, models.IsTerminal(err))
	assert.Equal(t, "upload_failed", models.FailureReason(err))
	assert.Empty(t, f.records)

	// Cleanup still ran on the failure path
	entries, readErr := os.ReadDir(f.scratchRoot)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestPipeline_Process_QuotaExceededIsTerminal(t *testing.T) {
	f := newPipelineFixture(t)
	f.repo.CreateSubmissionFunc = func(ctx context.Context, record *models.SubmissionRecord) error {
		return models.QuotaError{UserID: record.UserID, Category: record.Category, Limit: 3}
	}
	job := f.newJob(t, writeSource(t, 800, 600))

	err := f.pipeline.Process(context.Background(), job)
	require.Error(t, err)

	assert.True(t, models.IsTerminal(err))
	assert.Equal(t, "too_many_submissions", models.FailureReason(err))
	assert.Empty(t, f.marked)

	// Rejected submissions leave no blobs behind
	sort.Strings(f.deleted)
	assert.Equal(t, []string{
		job.UUID + "/full.jpg",
		job.UUID + "/large.jpg",
		job.UUID + "/medium.jpg",
		job.UUID + "/small.jpg",
		job.UUID + "/thumbnail.jpg",
	}, f.deleted)
}

func TestPipeline_Process_QuotaPrecheckRejectsBeforeTranscoding(t *testing.T) {
	f := newPipelineFixture(t)
	f.repo.CountByUserCategoryFunc = func(ctx context.Context, userID int64, category string) (int, error) {
		assert.Equal(t, int64(42), userID)
		assert.Equal(t, "landscape", category)
		return 3, nil
	}
	job := f.newJob(t, writeSource(t, 800, 600))

	err := f.pipeline.Process(context.Background(), job)
	require.Error(t, err)

	var qerr models.QuotaError
	require.ErrorAs(t, err, &qerr)
	assert.True(t, models.IsTerminal(err))

	// Over-cap jobs never reach scratch setup or upload
	_, statErr := os.Stat(f.scratchRoot)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, f.uploaded)
}

func TestPipeline_Process_QuotaPrecheckErrorDefersToPersist(t *testing.T) {
	f := newPipelineFixture(t)
	f.repo.CountByUserCategoryFunc = func(ctx context.Context, userID int64, category string) (int, error) {
		return 0, errors.New("database down")
	}
	job := f.newJob(t, writeSource(t, 800, 600))

	require.NoError(t, f.pipeline.Process(context.Background(), job))
	assert.Len(t, f.uploaded, 5)
	require.Len(t, f.records, 1)
}

func TestPipeline_Process_RetrySkipsUploadedVariants(t *testing.T) {
	f := newPipelineFixture(t)
	f.storage.ExistsFunc = func(ctx context.Context, key string) (bool, error) {
		return true, nil
	}

	msg := testutil.TestJobMessage(writeSource(t, 800, 600))
	job := models.NewJob(msg, 1, 2, 3)

	require.NoError(t, f.pipeline.Process(context.Background(), job))

	assert.Empty(t, f.uploaded)
	require.Len(t, f.records, 1)
}

func TestPipeline_Process_FirstAttemptNeverChecksStorage(t *testing.T) {
	f := newPipelineFixture(t)
	f.storage.ExistsFunc = func(ctx context.Context, key string) (bool, error) {
		t.Errorf("unexpected existence check for %s", key)
		return false, nil
	}
	job := f.newJob(t, writeSource(t, 800, 600))

	require.NoError(t, f.pipeline.Process(context.Background(), job))
	assert.Len(t, f.uploaded, 5)
}

func TestPipeline_Process_CancelledContext(t *testing.T) {
	f := newPipelineFixture(t)
	job := f.newJob(t, writeSource(t, 800, 600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.pipeline.Process(ctx, job)
	require.Error(t, err)

	var perr models.ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.False(t, models.IsTerminal(err))
	assert.Empty(t, f.uploaded)
}

func TestPipeline_Process_MarkerWriteFailureDoesNotFailJob(t *testing.T) {
	f := newPipelineFixture(t)
	f.markers.MarkProcessedFunc = func(ctx context.Context, uuid string) error {
		return errors.New("marker store down")
	}
	job := f.newJob(t, writeSource(t, 800, 600))

	require.NoError(t, f.pipeline.Process(context.Background(), job))
	assert.Equal(t, models.StageCompleted, job.Stage)
	require.Len(t, f.records, 1)
}
