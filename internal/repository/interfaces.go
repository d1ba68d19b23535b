package repository

import (
	"context"

	"photoq/internal/models"
)

// SubmissionRepository defines the durable record operations of the pipeline
type SubmissionRepository interface {
	// GetUser retrieves the submitting user
	GetUser(ctx context.Context, id int64) (*models.User, error)

	// CountByUserCategory counts accepted submissions for a user in a category
	CountByUserCategory(ctx context.Context, userID int64, category string) (int, error)

	// CreateSubmission inserts one record, enforcing the per-user-per-category
	// cap against concurrent writers. Inserting an already-recorded uuid is a
	// no-op success so redelivered jobs stay idempotent.
	CreateSubmission(ctx context.Context, record *models.SubmissionRecord) error

	// Health checks repository health
	Health(ctx context.Context) error

	// Close closes the underlying pool
	Close()
}

// MarkerStore remembers which submissions have fully completed so a
// redelivered job can short-circuit instead of redoing the whole pipeline.
// Best effort: losing a marker only costs a redundant (idempotent) rerun.
type MarkerStore interface {
	// MarkProcessed records a completed submission uuid
	MarkProcessed(ctx context.Context, uuid string) error

	// IsProcessed reports whether a submission uuid already completed
	IsProcessed(ctx context.Context, uuid string) (bool, error)

	// Health checks marker store health
	Health(ctx context.Context) error

	// Close closes the store
	Close() error
}
