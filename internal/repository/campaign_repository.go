package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/tenancy"
)

// CampaignRepository defines data access for campaign definitions.
// Campaigns and steps are authored by the CRM collaborator; the
// scheduler only reads them.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	// GetByID loads the campaign with its steps preloaded in index order.
	GetByID(ctx context.Context, tenantID, id uint) (*models.Campaign, error)
	UpdateStatus(ctx context.Context, tenantID, id uint, status models.CampaignStatus) error
}

// campaignRepository implements CampaignRepository using GORM
type campaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a new CampaignRepository instance
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

// Create creates a campaign together with its steps
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.TenantID == 0 {
		return fmt.Errorf("campaign requires a tenant: %w", apperrors.ErrInvalidInput)
	}
	result := r.db.WithContext(ctx).Create(campaign)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create campaign: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a campaign with ordered steps, tenant-scoped
func (r *campaignRepository) GetByID(ctx context.Context, tenantID, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	result := r.db.WithContext(ctx).
		Scopes(tenancy.Scope(tenantID)).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_index ASC")
		}).
		First(&campaign, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", result.Error)
	}
	if err := tenancy.Verify(tenantID, campaign.TenantID, fmt.Sprintf("campaign:%d", id)); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// UpdateStatus moves a campaign through its lifecycle
func (r *campaignRepository) UpdateStatus(ctx context.Context, tenantID, id uint, status models.CampaignStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update campaign status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
