package handlers

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/repository"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/validator"
)

// Enroller adds a lead to a campaign. Satisfied by scheduler.Scheduler.
type Enroller interface {
	Enroll(ctx context.Context, tenantID, campaignID uint, email, name string) (*models.CampaignLead, error)
}

// CampaignHandler manages campaign definitions and enrollment.
type CampaignHandler struct {
	campaigns repository.CampaignRepository
	enroller  Enroller
}

// NewCampaignHandler creates a new CampaignHandler
func NewCampaignHandler(campaigns repository.CampaignRepository, enroller Enroller) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, enroller: enroller}
}

// CreateCampaignRequest is the body for POST /api/campaigns.
type CreateCampaignRequest struct {
	AccountID uint                `json:"account_id"`
	Name      string              `json:"name"`
	Steps     []CampaignStepInput `json:"steps"`
}

// CampaignStepInput is one step definition in a create request.
type CampaignStepInput struct {
	DelayHours  int    `json:"delay_hours"`
	Subject     string `json:"subject"`
	BodyText    string `json:"body_text"`
	BodyHTML    string `json:"body_html"`
	ExitOnReply bool   `json:"exit_on_reply"`
}

// Create handles POST /api/campaigns
func (h *CampaignHandler) Create(c echo.Context) error {
	tenantID := middleware.TenantID(c)

	var req CreateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if err := validator.ValidateCampaignName(req.Name); err != nil {
		return response.BadRequest(c, "name is required")
	}
	if req.AccountID == 0 {
		return response.BadRequest(c, "account_id is required")
	}
	if len(req.Steps) == 0 {
		return response.BadRequest(c, "at least one step is required")
	}

	campaign := &models.Campaign{
		TenantID:  tenantID,
		AccountID: req.AccountID,
		Name:      req.Name,
		Status:    models.CampaignDraft,
	}
	for i, step := range req.Steps {
		if err := validator.ValidateSubjectTemplate(step.Subject); err != nil {
			return response.BadRequest(c, "step subject is required")
		}
		campaign.Steps = append(campaign.Steps, models.CampaignStep{
			StepIndex:        i,
			DelayHours:       step.DelayHours,
			SubjectTemplate:  step.Subject,
			BodyTextTemplate: step.BodyText,
			BodyHTMLTemplate: step.BodyHTML,
			ExitOnReply:      step.ExitOnReply,
		})
	}

	if err := h.campaigns.Create(c.Request().Context(), campaign); err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, campaign)
}

// Get handles GET /api/campaigns/:id
func (h *CampaignHandler) Get(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid campaign ID")
	}

	campaign, err := h.campaigns.GetByID(c.Request().Context(), tenantID, uint(id))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return response.NotFound(c, "campaign not found")
		}
		return response.Error(c, err)
	}
	return response.Success(c, campaign)
}

// UpdateStatusRequest is the body for POST /api/campaigns/:id/status.
type UpdateStatusRequest struct {
	Status models.CampaignStatus `json:"status"`
}

// UpdateStatus handles POST /api/campaigns/:id/status
func (h *CampaignHandler) UpdateStatus(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid campaign ID")
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	switch req.Status {
	case models.CampaignDraft, models.CampaignActive, models.CampaignPaused, models.CampaignCompleted:
	default:
		return response.BadRequest(c, "invalid status")
	}

	if err := h.campaigns.UpdateStatus(c.Request().Context(), tenantID, uint(id), req.Status); err != nil {
		if apperrors.IsNotFound(err) {
			return response.NotFound(c, "campaign not found")
		}
		return response.Error(c, err)
	}
	return response.SuccessWithMessage(c, nil, "campaign status updated")
}

// EnrollRequest is the body for POST /api/campaigns/:id/leads.
type EnrollRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Enroll handles POST /api/campaigns/:id/leads
func (h *CampaignHandler) Enroll(c echo.Context) error {
	tenantID := middleware.TenantID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "invalid campaign ID")
	}

	var req EnrollRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		return response.BadRequest(c, "invalid email address")
	}
	email := validator.NormalizeEmail(req.Email)
	name := validator.SanitizeString(req.Name, validator.MaxLeadNameLength)

	lead, err := h.enroller.Enroll(c.Request().Context(), tenantID, uint(id), email, name)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return response.NotFound(c, "campaign not found")
		}
		return response.Error(c, err)
	}
	return response.Created(c, lead)
}
