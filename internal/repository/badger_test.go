package repository

import (
	"context"
	"testing"
	"time"

	"photoq/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMarkerStore(t *testing.T) MarkerStore {
	t.Helper()

	store, err := NewBadgerMarkerStore(&config.MarkerConfig{
		Type:      "badger",
		Directory: t.TempDir(),
		TTL:       time.Hour,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return store
}

func TestBadgerMarkerStore_RoundTrip(t *testing.T) {
	store := newTestMarkerStore(t)
	ctx := context.Background()

	uuid := "3f1c07d7-4f7e-4a8e-9a3d-1c2b3a4d5e6f"

	processed, err := store.IsProcessed(ctx, uuid)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, store.MarkProcessed(ctx, uuid))

	processed, err = store.IsProcessed(ctx, uuid)
	require.NoError(t, err)
	assert.True(t, processed)

	// Other uuids stay unmarked
	processed, err = store.IsProcessed(ctx, "00000000-0000-4000-8000-000000000000")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestBadgerMarkerStore_Health(t *testing.T) {
	store := newTestMarkerStore(t)
	assert.NoError(t, store.Health(context.Background()))
}

func TestBadgerMarkerStore_MarkIsIdempotent(t *testing.T) {
	store := newTestMarkerStore(t)
	ctx := context.Background()

	uuid := "3f1c07d7-4f7e-4a8e-9a3d-1c2b3a4d5e6f"
	require.NoError(t, store.MarkProcessed(ctx, uuid))
	require.NoError(t, store.MarkProcessed(ctx, uuid))

	processed, err := store.IsProcessed(ctx, uuid)
	require.NoError(t, err)
	assert.True(t, processed)
}
