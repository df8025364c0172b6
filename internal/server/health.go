package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/planix/internal/observability/logger"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

// Health reports database reachability and whether the generation provider
// has credentials. An unconfigured provider degrades output but is healthy.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	database := "ok"
	if err := s.pingDatabase(ctx); err != nil {
		logger.FromContext(ctx).Warn("health check database ping failed", zap.Error(err))
		database = "unavailable"
	}

	providerConfigured := s.generationSvc != nil && s.generationSvc.ProviderConfigured()

	status, code := "ok", http.StatusOK
	if database != "ok" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":              status,
		"database":            database,
		"provider_configured": providerConfigured,
		"version":             s.cfg.AppVersion,
	})
}

func (s *Server) pingDatabase(ctx context.Context) error {
	if s.db == nil {
		return ErrServiceUnavailable
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
