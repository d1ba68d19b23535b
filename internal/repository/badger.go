package repository

import (
	"context"
	"errors"
	"fmt"
	"os"

	"photoq/internal/config"
	"photoq/pkg/logger"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerMarkerStore implements MarkerStore on an embedded BadgerDB
type BadgerMarkerStore struct {
	db     *badger.DB
	config *config.MarkerConfig
}

// NewBadgerMarkerStore creates a new BadgerDB-backed marker store
func NewBadgerMarkerStore(cfg *config.MarkerConfig) (MarkerStore, error) {
	logger.Info("Initializing BadgerDB marker store",
		zap.String("directory", cfg.Directory),
		zap.Duration("ttl", cfg.TTL))

	// Create directory if it doesn't exist
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create marker directory: %w", err)
	}

	// Configure BadgerDB options
	opts := badger.DefaultOptions(cfg.Directory)
	opts.Logger = &badgerLogger{} // Custom logger to suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	logger.Info("BadgerDB marker store initialized successfully")
	return &BadgerMarkerStore{db: db, config: cfg}, nil
}

// MarkProcessed records a completed submission uuid
func (b *BadgerMarkerStore) MarkProcessed(ctx context.Context, uuid string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(markerKey(uuid)), []byte("1")).WithTTL(b.config.TTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to store marker: %w", err)
	}
	return nil
}

// IsProcessed reports whether a submission uuid already completed
func (b *BadgerMarkerStore) IsProcessed(ctx context.Context, uuid string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(markerKey(uuid)))
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get marker: %w", err)
	}
	return true, nil
}

// Health checks marker store health
func (b *BadgerMarkerStore) Health(ctx context.Context) error {
	if b.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return nil
}

// Close closes the store
func (b *BadgerMarkerStore) Close() error {
	return b.db.Close()
}

// badgerLogger suppresses BadgerDB's own log output in favor of ours
type badgerLogger struct{}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf("badger: "+format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf("badger: "+format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{})  {}
func (l *badgerLogger) Debugf(format string, args ...interface{}) {}
