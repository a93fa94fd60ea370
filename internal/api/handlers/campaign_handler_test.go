package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/repository"
)

// stubEnroller records enrollment calls and returns a scripted result.
type stubEnroller struct {
	lastTenant   uint
	lastCampaign uint
	lastEmail    string
	lastName     string
	err          error
}

func (s *stubEnroller) Enroll(_ context.Context, tenantID, campaignID uint, email, name string) (*models.CampaignLead, error) {
	s.lastTenant = tenantID
	s.lastCampaign = campaignID
	s.lastEmail = email
	s.lastName = name
	if s.err != nil {
		return nil, s.err
	}
	return &models.CampaignLead{
		TenantID:   tenantID,
		CampaignID: campaignID,
		LeadEmail:  email,
		LeadName:   name,
		Status:     models.LeadActive,
	}, nil
}

type CampaignHandlerTestSuite struct {
	suite.Suite
	db        *gorm.DB
	echo      *echo.Echo
	campaigns repository.CampaignRepository
	enroller  *stubEnroller
}

func (s *CampaignHandlerTestSuite) SetupTest() {
	s.db = newHandlerDB(s.T())
	s.campaigns = repository.NewCampaignRepository(s.db)
	s.enroller = &stubEnroller{}

	handler := NewCampaignHandler(s.campaigns, s.enroller)
	s.echo = echo.New()
	api := s.echo.Group("/api")
	api.Use(middleware.RequireTenant())
	api.POST("/campaigns", handler.Create)
	api.GET("/campaigns/:id", handler.Get)
	api.POST("/campaigns/:id/status", handler.UpdateStatus)
	api.POST("/campaigns/:id/leads", handler.Enroll)
}

func (s *CampaignHandlerTestSuite) request(method, path, tenant, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tenant != "" {
		req.Header.Set(middleware.TenantHeader, tenant)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *CampaignHandlerTestSuite) seedCampaign(tenantID uint) *models.Campaign {
	campaign := &models.Campaign{
		TenantID:  tenantID,
		AccountID: 1,
		Name:      "Welcome",
		Status:    models.CampaignDraft,
		Steps: []models.CampaignStep{
			{StepIndex: 0, DelayHours: 0, SubjectTemplate: "Hi {{lead_name}}"},
		},
	}
	s.Require().NoError(s.campaigns.Create(context.Background(), campaign))
	return campaign
}

func (s *CampaignHandlerTestSuite) TestCreateCampaign() {
	body := `{
		"account_id": 1,
		"name": "Onboarding",
		"steps": [
			{"delay_hours": 0, "subject": "Welcome {{lead_name}}", "body_text": "Hello"},
			{"delay_hours": 48, "subject": "Checking in", "body_text": "Still there?", "exit_on_reply": true}
		]
	}`

	rec := s.request(http.MethodPost, "/api/campaigns", "1", body)

	s.Equal(http.StatusCreated, rec.Code)

	var resp response.APIResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Success)

	// Steps are indexed by position in the request.
	var stored models.Campaign
	s.Require().NoError(s.db.Preload("Steps").First(&stored).Error)
	s.Equal(models.CampaignDraft, stored.Status)
	s.Require().Len(stored.Steps, 2)
	s.Equal(0, stored.Steps[0].StepIndex)
	s.Equal(1, stored.Steps[1].StepIndex)
	s.True(stored.Steps[1].ExitOnReply)
}

func (s *CampaignHandlerTestSuite) TestCreateRejectsMissingName() {
	rec := s.request(http.MethodPost, "/api/campaigns", "1", `{"account_id":1,"steps":[{"subject":"x"}]}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "name is required")
}

func (s *CampaignHandlerTestSuite) TestCreateRejectsEmptySteps() {
	rec := s.request(http.MethodPost, "/api/campaigns", "1", `{"account_id":1,"name":"x","steps":[]}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "at least one step")
}

func (s *CampaignHandlerTestSuite) TestCreateRejectsStepWithoutSubject() {
	rec := s.request(http.MethodPost, "/api/campaigns", "1", `{"account_id":1,"name":"x","steps":[{"body_text":"hi"}]}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "subject is required")
}

func (s *CampaignHandlerTestSuite) TestGetCampaign() {
	campaign := s.seedCampaign(1)

	rec := s.request(http.MethodGet, fmt.Sprintf("/api/campaigns/%d", campaign.ID), "1", "")

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Welcome")
}

func (s *CampaignHandlerTestSuite) TestGetWrongTenantIsNotFound() {
	campaign := s.seedCampaign(1)

	rec := s.request(http.MethodGet, fmt.Sprintf("/api/campaigns/%d", campaign.ID), "2", "")

	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *CampaignHandlerTestSuite) TestUpdateStatus() {
	campaign := s.seedCampaign(1)

	rec := s.request(http.MethodPost, fmt.Sprintf("/api/campaigns/%d/status", campaign.ID), "1", `{"status":"active"}`)

	s.Equal(http.StatusOK, rec.Code)
	stored, err := s.campaigns.GetByID(context.Background(), 1, campaign.ID)
	s.Require().NoError(err)
	s.Equal(models.CampaignActive, stored.Status)
}

func (s *CampaignHandlerTestSuite) TestUpdateStatusRejectsUnknownValue() {
	campaign := s.seedCampaign(1)

	rec := s.request(http.MethodPost, fmt.Sprintf("/api/campaigns/%d/status", campaign.ID), "1", `{"status":"archived"}`)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "invalid status")
}

func (s *CampaignHandlerTestSuite) TestEnrollLead() {
	campaign := s.seedCampaign(1)

	rec := s.request(http.MethodPost, fmt.Sprintf("/api/campaigns/%d/leads", campaign.ID), "1",
		`{"email":"jane@acme.test","name":"Jane"}`)

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal(uint(1), s.enroller.lastTenant)
	s.Equal(campaign.ID, s.enroller.lastCampaign)
	s.Equal("jane@acme.test", s.enroller.lastEmail)
	s.Equal("Jane", s.enroller.lastName)
}

func (s *CampaignHandlerTestSuite) TestEnrollRejectsBadEmail() {
	campaign := s.seedCampaign(1)

	rec := s.request(http.MethodPost, fmt.Sprintf("/api/campaigns/%d/leads", campaign.ID), "1",
		`{"email":"not-an-address"}`)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "invalid email")
}

func (s *CampaignHandlerTestSuite) TestEnrollDuplicateConflicts() {
	campaign := s.seedCampaign(1)
	s.enroller.err = apperrors.ErrDuplicateEntry

	rec := s.request(http.MethodPost, fmt.Sprintf("/api/campaigns/%d/leads", campaign.ID), "1",
		`{"email":"jane@acme.test"}`)

	s.Equal(http.StatusConflict, rec.Code)
}

func (s *CampaignHandlerTestSuite) TestEnrollUnknownCampaignIsNotFound() {
	s.enroller.err = apperrors.ErrNotFound

	rec := s.request(http.MethodPost, "/api/campaigns/999/leads", "1", `{"email":"jane@acme.test"}`)

	s.Equal(http.StatusNotFound, rec.Code)
}

func TestCampaignHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(CampaignHandlerTestSuite))
}
