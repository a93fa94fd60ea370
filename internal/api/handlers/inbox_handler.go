package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/repository"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/validator"
)

// InboxHandler serves the tenant-scoped unified inbox.
type InboxHandler struct {
	inbound repository.InboundRepository
}

// NewInboxHandler creates a new InboxHandler
func NewInboxHandler(inbound repository.InboundRepository) *InboxHandler {
	return &InboxHandler{inbound: inbound}
}

// List handles GET /api/inbox
func (h *InboxHandler) List(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	limit, offset := pagination(c)

	// Optional account filter
	if raw := c.QueryParam("account_id"); raw != "" {
		accountID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "invalid account ID")
		}
		items, total, listErr := h.inbound.ListByAccount(c.Request().Context(), tenantID, uint(accountID), limit, offset)
		if listErr != nil {
			return response.Error(c, listErr)
		}
		return response.Paginated(c, items, total, limit, offset)
	}

	items, total, err := h.inbound.ListByTenant(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, items, total, limit, offset)
}

// Unread handles GET /api/inbox/unread
func (h *InboxHandler) Unread(c echo.Context) error {
	tenantID := middleware.TenantID(c)

	count, err := h.inbound.CountUnread(c.Request().Context(), tenantID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int64{"unread": count})
}

// Get handles GET /api/messages/:id
func (h *InboxHandler) Get(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid message ID")
	}

	message, err := h.inbound.GetByID(c.Request().Context(), tenantID, uint(id))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return response.NotFound(c, "message not found")
		}
		return response.Error(c, err)
	}

	// Auto mark as read
	if !message.IsRead {
		_ = h.inbound.MarkAsRead(c.Request().Context(), tenantID, uint(id))
		message.IsRead = true
	}

	return response.Success(c, message)
}

// MarkAsRead handles POST /api/messages/:id/read
func (h *InboxHandler) MarkAsRead(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid message ID")
	}

	if err := h.inbound.MarkAsRead(c.Request().Context(), tenantID, uint(id)); err != nil {
		if apperrors.IsNotFound(err) {
			return response.NotFound(c, "message not found")
		}
		return response.Error(c, err)
	}

	return response.SuccessWithMessage(c, nil, "message marked as read")
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return validator.ValidatePagination(limit, offset)
}
