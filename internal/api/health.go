package api

import (
	"context"
	"net/http"
	"time"

	"photoq/internal/config"
	"photoq/internal/models"
	"photoq/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck reports the state of one backing service
type HealthCheck func(ctx context.Context) error

// HealthServer exposes the worker's liveness over HTTP. The worker has no
// request-serving surface of its own, so this is its only listener.
type HealthServer struct {
	engine *gin.Engine
	server *http.Server
	checks map[string]HealthCheck
}

// NewHealthServer builds the health endpoint over the given service checks
func NewHealthServer(cfg *config.Config, checks map[string]HealthCheck) *HealthServer {
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &HealthServer{
		engine: engine,
		checks: checks,
		server: &http.Server{
			Addr:         ":" + cfg.Health.Port,
			Handler:      engine,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}

	engine.GET("/health", s.handleHealth)
	return s
}

// GET /health
func (s *HealthServer) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()

	services := make(map[string]string, len(s.checks))
	overallStatus := "healthy"
	statusCode := http.StatusOK

	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check(checkCtx)
		cancel()

		if err != nil {
			services[name] = err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
			logger.WarnWithContext(ctx, "Service unhealthy",
				zap.String("service", name),
				zap.Error(err))
			continue
		}
		services[name] = "connected"
	}

	c.JSON(statusCode, models.HealthResponse{
		Status:    overallStatus,
		Services:  services,
		Timestamp: time.Now(),
	})
}

// Handler exposes the underlying HTTP handler
func (s *HealthServer) Handler() http.Handler {
	return s.engine
}

// Start blocks serving the health endpoint until Shutdown
func (s *HealthServer) Start() error {
	logger.Info("Health server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the health server gracefully
func (s *HealthServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
