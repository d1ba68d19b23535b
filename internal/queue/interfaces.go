package queue

import (
	"context"

	"photoq/internal/models"
)

// JobHandler processes a single decoded submission job. A nil return
// acknowledges the delivery; a terminal error acknowledges it after a
// failure notification; any other error requeues it.
type JobHandler func(ctx context.Context, job *models.Job) error

// Consumer pulls submission jobs from the broker and dispatches them
// to a handler across a worker pool.
type Consumer interface {
	// Start blocks until ctx is cancelled, then drains the worker pool.
	Start(ctx context.Context) error

	// Health reports whether the broker connection is still open.
	Health(ctx context.Context) error

	// Close tears down the channel and connection.
	Close() error
}

// Notifier publishes terminal job outcomes for downstream consumers.
type Notifier interface {
	// Completed announces a successfully processed submission.
	Completed(ctx context.Context, job *models.Job) error

	// Failed announces a permanently failed submission with a reason code.
	Failed(ctx context.Context, job *models.Job, reason string) error

	Close() error
}
