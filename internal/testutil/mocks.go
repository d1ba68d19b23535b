package testutil

import (
	"context"
	"io"

	"photoq/internal/models"
)

// MockBlobStorage is a mock implementation of storage.BlobStorage
type MockBlobStorage struct {
	UploadFunc func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	ExistsFunc func(ctx context.Context, key string) (bool, error)
	DeleteFunc func(ctx context.Context, key string) error
	GetURLFunc func(key string) string
	HealthFunc func(ctx context.Context) error
}

func (m *MockBlobStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, key, reader, size, contentType)
	}
	return nil
}

func (m *MockBlobStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, key)
	}
	return false, nil
}

func (m *MockBlobStorage) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

func (m *MockBlobStorage) GetURL(key string) string {
	if m.GetURLFunc != nil {
		return m.GetURLFunc(key)
	}
	return ""
}

func (m *MockBlobStorage) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// MockSubmissionRepository is a mock implementation of repository.SubmissionRepository
type MockSubmissionRepository struct {
	GetUserFunc             func(ctx context.Context, id int64) (*models.User, error)
	CountByUserCategoryFunc func(ctx context.Context, userID int64, category string) (int, error)
	CreateSubmissionFunc    func(ctx context.Context, record *models.SubmissionRecord) error
	HealthFunc              func(ctx context.Context) error
}

func (m *MockSubmissionRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return &models.User{ID: id, DisplayName: "test user"}, nil
}

func (m *MockSubmissionRepository) CountByUserCategory(ctx context.Context, userID int64, category string) (int, error) {
	if m.CountByUserCategoryFunc != nil {
		return m.CountByUserCategoryFunc(ctx, userID, category)
	}
	return 0, nil
}

func (m *MockSubmissionRepository) CreateSubmission(ctx context.Context, record *models.SubmissionRecord) error {
	if m.CreateSubmissionFunc != nil {
		return m.CreateSubmissionFunc(ctx, record)
	}
	return nil
}

func (m *MockSubmissionRepository) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

func (m *MockSubmissionRepository) Close() {}

// MockMarkerStore is a mock implementation of repository.MarkerStore
type MockMarkerStore struct {
	MarkProcessedFunc func(ctx context.Context, uuid string) error
	IsProcessedFunc   func(ctx context.Context, uuid string) (bool, error)
	HealthFunc        func(ctx context.Context) error
}

func (m *MockMarkerStore) MarkProcessed(ctx context.Context, uuid string) error {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, uuid)
	}
	return nil
}

func (m *MockMarkerStore) IsProcessed(ctx context.Context, uuid string) (bool, error) {
	if m.IsProcessedFunc != nil {
		return m.IsProcessedFunc(ctx, uuid)
	}
	return false, nil
}

func (m *MockMarkerStore) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

func (m *MockMarkerStore) Close() error { return nil }

// MockNotifier is a mock implementation of queue.Notifier
type MockNotifier struct {
	CompletedFunc func(ctx context.Context, job *models.Job) error
	FailedFunc    func(ctx context.Context, job *models.Job, reason string) error
}

func (m *MockNotifier) Completed(ctx context.Context, job *models.Job) error {
	if m.CompletedFunc != nil {
		return m.CompletedFunc(ctx, job)
	}
	return nil
}

func (m *MockNotifier) Failed(ctx context.Context, job *models.Job, reason string) error {
	if m.FailedFunc != nil {
		return m.FailedFunc(ctx, job, reason)
	}
	return nil
}

func (m *MockNotifier) Close() error { return nil }
