package repository

import (
	"fmt"

	"photoq/internal/config"
	"photoq/pkg/logger"

	"go.uber.org/zap"
)

// MarkerType represents the type of marker store implementation
type MarkerType string

const (
	MarkerTypeRedis  MarkerType = "redis"
	MarkerTypeBadger MarkerType = "badger"
)

// NewMarkerStore creates the processed-marker store selected by configuration.
// Redis suits multi-host worker fleets; BadgerDB is embedded and keeps a
// single-host deployment free of an extra service.
func NewMarkerStore(cfg *config.Config) (MarkerStore, error) {
	logger.Info("Initializing marker store",
		zap.String("type", cfg.Marker.Type))

	switch MarkerType(cfg.Marker.Type) {
	case MarkerTypeRedis:
		return NewRedisMarkerStore(&cfg.Redis, cfg.Marker.TTL)

	case MarkerTypeBadger:
		return NewBadgerMarkerStore(&cfg.Marker)

	default:
		return nil, fmt.Errorf("unsupported marker store type: %s", cfg.Marker.Type)
	}
}
