package pipeline

import (
	"context"

	"photoq/internal/models"
)

// Pipeline drives one submission job through every stage. It returns nil
// when the submission is fully persisted, a terminal error when the job
// must never be retried, and any other error when redelivery may succeed.
// The scratch directory is removed on every path before returning.
type Pipeline interface {
	Process(ctx context.Context, job *models.Job) error
}
