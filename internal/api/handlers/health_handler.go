package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Runner reports whether a background loop is active.
type Runner interface {
	IsRunning() bool
}

// HealthHandler handles health check HTTP requests
type HealthHandler struct {
	db        *gorm.DB
	scheduler Runner
	sync      Runner
}

// NewHealthHandler creates a new HealthHandler. The runner arguments
// may be nil when the corresponding loop is not wired (tests).
func NewHealthHandler(db *gorm.DB, scheduler, sync Runner) *HealthHandler {
	return &HealthHandler{db: db, scheduler: scheduler, sync: sync}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	services := make(map[string]string)
	status := "healthy"

	// Check database connection
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		services["database"] = "unhealthy"
		status = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	services["scheduler"] = runnerState(h.scheduler)
	services["sync_worker"] = runnerState(h.sync)

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, HealthResponse{
		Status:   status,
		Services: services,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c echo.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database connection failed",
		})
	}

	if err := sqlDB.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database ping failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func runnerState(r Runner) string {
	if r == nil {
		return "not configured"
	}
	if r.IsRunning() {
		return "running"
	}
	return "stopped"
}
