package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
)

// LeadRepositoryTestSuite is the test suite for LeadRepository
type LeadRepositoryTestSuite struct {
	suite.Suite
	db       *gorm.DB
	repo     LeadRepository
	campaign *models.Campaign
}

// SetupSuite runs once before all tests
func (s *LeadRepositoryTestSuite) SetupSuite() {
	s.db = newTestDB(s.T())
	s.repo = NewLeadRepository(s.db)
}

// SetupTest runs before each test - reset data and create a campaign
func (s *LeadRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM campaign_leads")
	s.db.Exec("DELETE FROM campaign_steps")
	s.db.Exec("DELETE FROM campaigns")

	s.campaign = &models.Campaign{
		TenantID:  1,
		AccountID: 1,
		Name:      "onboarding",
		Status:    models.CampaignActive,
		Steps: []models.CampaignStep{
			{StepIndex: 0, DelayHours: 0, SubjectTemplate: "Welcome"},
			{StepIndex: 1, DelayHours: 24, SubjectTemplate: "Following up"},
		},
	}
	require.NoError(s.T(), s.db.Create(s.campaign).Error)
}

// TestLeadRepositoryTestSuite runs the test suite
func TestLeadRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(LeadRepositoryTestSuite))
}

func (s *LeadRepositoryTestSuite) enrollActive(email string, due time.Time) *models.CampaignLead {
	lead := &models.CampaignLead{
		CampaignID: s.campaign.ID,
		TenantID:   1,
		LeadEmail:  email,
	}
	require.NoError(s.T(), s.repo.Enroll(context.Background(), lead))
	require.NoError(s.T(), s.repo.Activate(context.Background(), 1, lead.ID, due))
	got, err := s.repo.GetByID(context.Background(), 1, lead.ID)
	require.NoError(s.T(), err)
	return got
}

func (s *LeadRepositoryTestSuite) TestEnroll_DefaultsPending() {
	lead := &models.CampaignLead{CampaignID: s.campaign.ID, TenantID: 1, LeadEmail: "a@x.test"}

	err := s.repo.Enroll(context.Background(), lead)

	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.LeadPending, lead.Status)
	assert.Nil(s.T(), lead.NextStepDue)
}

func (s *LeadRepositoryTestSuite) TestEnroll_DuplicateEmailInCampaign() {
	lead := &models.CampaignLead{CampaignID: s.campaign.ID, TenantID: 1, LeadEmail: "a@x.test"}
	require.NoError(s.T(), s.repo.Enroll(context.Background(), lead))

	dup := &models.CampaignLead{CampaignID: s.campaign.ID, TenantID: 1, LeadEmail: "a@x.test"}
	err := s.repo.Enroll(context.Background(), dup)

	assert.ErrorIs(s.T(), err, ErrDuplicateEntry)
}

func (s *LeadRepositoryTestSuite) TestActivate() {
	lead := &models.CampaignLead{CampaignID: s.campaign.ID, TenantID: 1, LeadEmail: "a@x.test"}
	require.NoError(s.T(), s.repo.Enroll(context.Background(), lead))

	due := time.Now().UTC().Truncate(time.Second)
	require.NoError(s.T(), s.repo.Activate(context.Background(), 1, lead.ID, due))

	got, err := s.repo.GetByID(context.Background(), 1, lead.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.LeadActive, got.Status)
	require.NotNil(s.T(), got.NextStepDue)

	// Activating twice is rejected; the lead is no longer pending.
	err = s.repo.Activate(context.Background(), 1, lead.ID, due)
	assert.ErrorIs(s.T(), err, apperrors.ErrNotFound)
}

func (s *LeadRepositoryTestSuite) TestDue_SelectsOnlyDueActiveLeads() {
	now := time.Now().UTC()
	due := s.enrollActive("due@x.test", now.Add(-time.Minute))
	s.enrollActive("future@x.test", now.Add(time.Hour))
	pending := &models.CampaignLead{CampaignID: s.campaign.ID, TenantID: 1, LeadEmail: "pending@x.test"}
	require.NoError(s.T(), s.repo.Enroll(context.Background(), pending))

	leads, err := s.repo.Due(context.Background(), now, 10)

	require.NoError(s.T(), err)
	require.Len(s.T(), leads, 1)
	assert.Equal(s.T(), due.ID, leads[0].ID)
}

func (s *LeadRepositoryTestSuite) TestClaim_LeaseConflict() {
	now := time.Now().UTC().Truncate(time.Second)
	lead := s.enrollActive("a@x.test", now.Add(-time.Minute))

	observed := *lead.NextStepDue

	// First claimer wins the compare-and-swap.
	require.NoError(s.T(), s.repo.Claim(context.Background(), 1, lead.ID, observed, 5*time.Minute))

	// Second claimer observes the stale due time and loses.
	err := s.repo.Claim(context.Background(), 1, lead.ID, observed, 5*time.Minute)
	assert.ErrorIs(s.T(), err, apperrors.ErrLeaseConflict)

	// The lease bumped the due time forward.
	got, err := s.repo.GetByID(context.Background(), 1, lead.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), got.NextStepDue)
	assert.True(s.T(), got.NextStepDue.After(now))
}

func (s *LeadRepositoryTestSuite) TestAdvanceStep_ClearsRetryWindow() {
	now := time.Now().UTC().Truncate(time.Second)
	lead := s.enrollActive("a@x.test", now)
	require.NoError(s.T(), s.repo.ScheduleRetry(context.Background(), 1, lead.ID, now.Add(15*time.Minute), now))

	nextDue := now.Add(24 * time.Hour)
	require.NoError(s.T(), s.repo.AdvanceStep(context.Background(), 1, lead.ID, 1, nextDue))

	got, err := s.repo.GetByID(context.Background(), 1, lead.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, got.CurrentStep)
	assert.Equal(s.T(), models.LeadActive, got.Status)
	assert.Nil(s.T(), got.FirstRetryAt)
	require.NotNil(s.T(), got.NextStepDue)
}

func (s *LeadRepositoryTestSuite) TestScheduleRetry_KeepsFirstRetryStamp() {
	now := time.Now().UTC().Truncate(time.Second)
	lead := s.enrollActive("a@x.test", now)

	first := now.Add(-time.Hour)
	require.NoError(s.T(), s.repo.ScheduleRetry(context.Background(), 1, lead.ID, now.Add(15*time.Minute), first))
	// A later retry must not overwrite the original window start.
	require.NoError(s.T(), s.repo.ScheduleRetry(context.Background(), 1, lead.ID, now.Add(30*time.Minute), now))

	got, err := s.repo.GetByID(context.Background(), 1, lead.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), got.FirstRetryAt)
	assert.WithinDuration(s.T(), first, *got.FirstRetryAt, time.Second)
}

func (s *LeadRepositoryTestSuite) TestTerminate_EnforcesInvariant() {
	now := time.Now().UTC()
	lead := s.enrollActive("a@x.test", now)

	require.NoError(s.T(), s.repo.Terminate(context.Background(), 1, lead.ID, models.LeadFailed))

	got, err := s.repo.GetByID(context.Background(), 1, lead.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.LeadFailed, got.Status)
	assert.Nil(s.T(), got.NextStepDue)

	// Non-terminal statuses are rejected.
	err = s.repo.Terminate(context.Background(), 1, lead.ID, models.LeadActive)
	assert.ErrorIs(s.T(), err, apperrors.ErrInvalidInput)
}

func (s *LeadRepositoryTestSuite) TestOptOutByEmail() {
	now := time.Now().UTC()
	s.enrollActive("optout@x.test", now)
	other := s.enrollActive("keep@x.test", now)

	affected, err := s.repo.OptOutByEmail(context.Background(), 1, "optout@x.test")

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), affected)

	leads, err := s.repo.ActiveByEmail(context.Background(), 1, "keep@x.test")
	require.NoError(s.T(), err)
	require.Len(s.T(), leads, 1)
	assert.Equal(s.T(), other.ID, leads[0].ID)

	none, err := s.repo.ActiveByEmail(context.Background(), 1, "optout@x.test")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), none)
}

func (s *LeadRepositoryTestSuite) TestActiveByEmail_PreloadsCampaignSteps() {
	now := time.Now().UTC()
	lead := s.enrollActive("a@x.test", now)

	leads, err := s.repo.ActiveByEmail(context.Background(), 1, "a@x.test")

	require.NoError(s.T(), err)
	require.Len(s.T(), leads, 1)
	assert.Equal(s.T(), lead.ID, leads[0].ID)
	assert.Len(s.T(), leads[0].Campaign.Steps, 2)
}

func (s *LeadRepositoryTestSuite) TestTenantScoping() {
	now := time.Now().UTC()
	lead := s.enrollActive("a@x.test", now)

	_, err := s.repo.GetByID(context.Background(), 2, lead.ID)
	assert.ErrorIs(s.T(), err, apperrors.ErrNotFound)

	err = s.repo.Terminate(context.Background(), 2, lead.ID, models.LeadFailed)
	assert.ErrorIs(s.T(), err, apperrors.ErrNotFound)
}
