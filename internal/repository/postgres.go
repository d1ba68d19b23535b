package repository

import (
	"context"
	"errors"
	"fmt"

	"photoq/internal/config"
	"photoq/internal/models"
	"photoq/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgxPool is the subset of pgxpool.Pool the repository uses
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresRepository implements SubmissionRepository on a pgx pool
type PostgresRepository struct {
	pool pgxPool
	cap  int
}

// NewPostgresRepository connects to Postgres and ensures the schema exists
func NewPostgresRepository(ctx context.Context, cfg *config.DatabaseConfig, submissionCap int) (SubmissionRepository, error) {
	logger.Info("Initializing Postgres repository")

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	repo := &PostgresRepository{pool: pool, cap: submissionCap}

	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	if err := repo.Health(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres health check failed: %w", err)
	}

	logger.Info("Postgres repository initialized successfully")
	return repo, nil
}

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id           BIGINT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			email        TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS submissions (
			uuid        TEXT PRIMARY KEY,
			user_id     BIGINT NOT NULL REFERENCES users(id),
			category    TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_submissions_user_category
			ON submissions (user_id, category);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// GetUser retrieves the submitting user
func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, display_name, email FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NotFoundError{Resource: "user", ID: fmt.Sprintf("%d", id)}
		}
		return nil, models.DBError{Operation: "get_user", Reason: err.Error()}
	}
	return user, nil
}

// CountByUserCategory counts accepted submissions for a user in a category
func (r *PostgresRepository) CountByUserCategory(ctx context.Context, userID int64, category string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE user_id = $1 AND category = $2`,
		userID, category,
	).Scan(&count)
	if err != nil {
		return 0, models.DBError{Operation: "count_submissions", Reason: err.Error()}
	}
	return count, nil
}

// CreateSubmission inserts one record under the per-user-per-category cap.
// The check and insert run inside a transaction holding an advisory lock on
// (user, category), so two concurrent submissions from the same user cannot
// both pass the count. A duplicate uuid means the job was redelivered after
// persisting and is treated as success.
func (r *PostgresRepository) CreateSubmission(ctx context.Context, record *models.SubmissionRecord) error {
	logger.DebugWithContext(ctx, "Writing submission record",
		zap.String("uuid", record.UUID),
		zap.Int64("user_id", record.UserID),
		zap.String("category", record.Category))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.DBError{Operation: "begin", Reason: err.Error()}
	}
	defer tx.Rollback(ctx)

	// Serialize cap checks per (user, category)
	_, err = tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, $2))`,
		record.Category, record.UserID)
	if err != nil {
		return models.DBError{Operation: "lock", Reason: err.Error()}
	}

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE uuid = $1)`, record.UUID,
	).Scan(&exists)
	if err != nil {
		return models.DBError{Operation: "check_uuid", Reason: err.Error()}
	}
	if exists {
		logger.InfoWithContext(ctx, "Submission already recorded, treating redelivery as success",
			zap.String("uuid", record.UUID))
		return tx.Commit(ctx)
	}

	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE user_id = $1 AND category = $2`,
		record.UserID, record.Category,
	).Scan(&count)
	if err != nil {
		return models.DBError{Operation: "count_submissions", Reason: err.Error()}
	}
	if count >= r.cap {
		return models.QuotaError{UserID: record.UserID, Category: record.Category, Limit: r.cap}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO submissions (uuid, user_id, category, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		record.UUID, record.UserID, record.Category,
		record.Title, record.Description, record.CreatedAt,
	)
	if err != nil {
		return models.DBError{Operation: "insert_submission", Reason: err.Error()}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.DBError{Operation: "commit", Reason: err.Error()}
	}

	logger.InfoWithContext(ctx, "Submission record written",
		zap.String("uuid", record.UUID),
		zap.String("category", record.Category))

	return nil
}

// Health checks repository health
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// Close closes the underlying pool
func (r *PostgresRepository) Close() {
	r.pool.Close()
}
