package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DatabasePinger reports whether the database answers
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves the unauthenticated health check
type HealthHandler struct {
	BaseHandler
	db        DatabasePinger
	version   string
	timeout   time.Duration
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DatabasePinger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		version:   version,
		timeout:   2 * time.Second,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health handles GET /health. It answers 503 when the database does not
// respond within the timeout.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Database:  "connected",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	if err := h.db.PingContext(ctx); err != nil {
		logger.L(c.Request.Context()).Warn("Health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "disconnected"
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    resp,
			Error:   &dto.ErrorInfo{Code: dto.ErrCodeUnavailable, Message: "Database is not reachable", RequestID: getRequestID(c)},
		})
		return
	}

	h.Success(c, resp)
}
