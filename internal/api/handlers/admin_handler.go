package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/response"
)

// Forcer triggers an immediate run of a background loop.
type Forcer interface {
	ForceRun()
}

// ForcerFunc adapts a plain function to the Forcer interface.
type ForcerFunc func()

// ForceRun calls the wrapped function.
func (f ForcerFunc) ForceRun() { f() }

// AdminHandler exposes operational triggers for the background loops.
type AdminHandler struct {
	scheduler Forcer
	sync      Forcer
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(scheduler, sync Forcer) *AdminHandler {
	return &AdminHandler{scheduler: scheduler, sync: sync}
}

// RunScheduler handles POST /api/scheduler/run
func (h *AdminHandler) RunScheduler(c echo.Context) error {
	if h.scheduler == nil {
		return response.InternalError(c, "scheduler not configured")
	}
	h.scheduler.ForceRun()
	return response.SuccessWithMessage(c, nil, "scheduler tick triggered")
}

// RunSync handles POST /api/sync/run
func (h *AdminHandler) RunSync(c echo.Context) error {
	if h.sync == nil {
		return response.InternalError(c, "sync worker not configured")
	}
	h.sync.ForceRun()
	return response.SuccessWithMessage(c, nil, "mailbox sync triggered")
}
