package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"photoq/internal/config"
	"photoq/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHealthConfig() *config.Config {
	return &config.Config{
		Health: config.HealthConfig{Port: "8081"},
		Logger: config.LoggerConfig{Level: "error", Format: "console"},
	}
}

func serveHealth(t *testing.T, checks map[string]HealthCheck) (*httptest.ResponseRecorder, models.HealthResponse) {
	t.Helper()

	s := NewHealthServer(testHealthConfig(), checks)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Handler().ServeHTTP(w, req)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHealthServer_AllConnected(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }

	w, resp := serveHealth(t, map[string]HealthCheck{
		"database": ok,
		"storage":  ok,
		"markers":  ok,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "connected", resp.Services["database"])
	assert.Equal(t, "connected", resp.Services["storage"])
	assert.Equal(t, "connected", resp.Services["markers"])
}

func TestHealthServer_DegradedService(t *testing.T) {
	w, resp := serveHealth(t, map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
		"storage":  func(ctx context.Context) error { return errors.New("connection refused") },
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "connected", resp.Services["database"])
	assert.Equal(t, "connection refused", resp.Services["storage"])
}

func TestHealthServer_NoChecks(t *testing.T) {
	w, resp := serveHealth(t, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Empty(t, resp.Services)
}
