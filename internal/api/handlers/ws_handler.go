package handlers

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/middleware"
	ws "github.com/welldanyogia/webrana-dripmail-backend/internal/websocket"

	gorillaws "github.com/gorilla/websocket"
)

// WSHandler upgrades connections onto the notification hub.
type WSHandler struct {
	hub      *ws.Hub
	upgrader gorillaws.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *ws.Hub, upgrader gorillaws.Upgrader, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: hub, upgrader: upgrader, logger: logger}
}

// Connect handles GET /ws
func (h *WSHandler) Connect(c echo.Context) error {
	tenantID := middleware.TenantID(c)

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	client := ws.NewClient(h.hub, conn, tenantID, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	return nil
}
