package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/tenancy"
)

// LogRepository defines append-only access to the campaign audit trail
type LogRepository interface {
	Append(ctx context.Context, entry *models.CampaignLogEntry) error
	ListByLead(ctx context.Context, tenantID, leadID uint) ([]models.CampaignLogEntry, error)
}

// logRepository implements LogRepository using GORM
type logRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a new LogRepository instance
func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db}
}

// Append writes one audit entry. Entries are never updated or deleted.
func (r *logRepository) Append(ctx context.Context, entry *models.CampaignLogEntry) error {
	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to append campaign log entry: %w", result.Error)
	}
	return nil
}

// ListByLead returns a lead's audit trail in insertion order
func (r *logRepository) ListByLead(ctx context.Context, tenantID, leadID uint) ([]models.CampaignLogEntry, error) {
	var entries []models.CampaignLogEntry
	result := r.db.WithContext(ctx).
		Scopes(tenancy.Scope(tenantID)).
		Where("campaign_lead_id = ?", leadID).
		Order("id ASC").
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list campaign log entries: %w", result.Error)
	}
	return entries, nil
}
