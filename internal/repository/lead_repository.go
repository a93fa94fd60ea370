package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/tenancy"
)

// LeadRepository defines data access for campaign leads. All scheduler
// coordination is expressed as conditional updates here: claiming a due
// lead is a compare-and-swap on next_step_due, so multiple scheduler
// instances can tick concurrently without double-processing.
type LeadRepository interface {
	// Enroll inserts a pending lead; the scheduler activates it.
	Enroll(ctx context.Context, lead *models.CampaignLead) error
	GetByID(ctx context.Context, tenantID, id uint) (*models.CampaignLead, error)
	// Activate transitions pending -> active with the first step due at
	// the given time.
	Activate(ctx context.Context, tenantID, id uint, due time.Time) error
	// Due returns leads across all tenants whose next step is due,
	// oldest first; each row carries its own tenant id for downstream
	// scoping.
	Due(ctx context.Context, now time.Time, limit int) ([]models.CampaignLead, error)
	// Claim leases a due lead before any I/O: a conditional update that
	// matches the observed next_step_due and bumps it forward by the
	// lease duration. Zero rows affected means a concurrent tick won the
	// lead and the caller must skip it (ErrLeaseConflict).
	Claim(ctx context.Context, tenantID, id uint, observedDue time.Time, lease time.Duration) error
	// AdvanceStep moves an active lead to the next step and clears the
	// retry window.
	AdvanceStep(ctx context.Context, tenantID, id uint, nextStep int, nextDue time.Time) error
	// ScheduleRetry keeps the lead on the current step with a pushed-out
	// due time; firstRetry stamps the start of the retry window on the
	// first transient failure only.
	ScheduleRetry(ctx context.Context, tenantID, id uint, due time.Time, firstRetry time.Time) error
	// Terminate moves the lead to a terminal status and clears
	// next_step_due, preserving the invariant that the two agree.
	Terminate(ctx context.Context, tenantID, id uint, status models.LeadStatus) error
	// OptOutByEmail flags every non-terminal lead with the given email,
	// used by the reply/unsubscribe path.
	OptOutByEmail(ctx context.Context, tenantID uint, email string) (int64, error)
	// ActiveByEmail returns the tenant's active leads for an address,
	// with campaigns preloaded, for reply detection.
	ActiveByEmail(ctx context.Context, tenantID uint, email string) ([]models.CampaignLead, error)
}

// leadRepository implements LeadRepository using GORM
type leadRepository struct {
	db *gorm.DB
}

// NewLeadRepository creates a new LeadRepository instance
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &leadRepository{db: db}
}

// Enroll creates a pending lead
func (r *leadRepository) Enroll(ctx context.Context, lead *models.CampaignLead) error {
	if lead.TenantID == 0 {
		return fmt.Errorf("lead requires a tenant: %w", apperrors.ErrInvalidInput)
	}
	if lead.Status == "" {
		lead.Status = models.LeadPending
	}
	result := r.db.WithContext(ctx).Create(lead)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to enroll lead: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a lead scoped to the caller's tenant
func (r *leadRepository) GetByID(ctx context.Context, tenantID, id uint) (*models.CampaignLead, error) {
	var lead models.CampaignLead
	result := r.db.WithContext(ctx).Scopes(tenancy.Scope(tenantID)).First(&lead, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", result.Error)
	}
	if err := tenancy.Verify(tenantID, lead.TenantID, fmt.Sprintf("campaign_lead:%d", id)); err != nil {
		return nil, err
	}
	return &lead, nil
}

// Activate transitions pending -> active
func (r *leadRepository) Activate(ctx context.Context, tenantID, id uint, due time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.CampaignLead{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ? AND status = ?", id, models.LeadPending).
		Updates(map[string]interface{}{
			"status":        models.LeadActive,
			"next_step_due": due,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to activate lead: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Due selects active leads whose next step is due, oldest first
func (r *leadRepository) Due(ctx context.Context, now time.Time, limit int) ([]models.CampaignLead, error) {
	var leads []models.CampaignLead
	result := r.db.WithContext(ctx).
		Where("status = ? AND next_step_due IS NOT NULL AND next_step_due <= ?", models.LeadActive, now).
		Order("next_step_due ASC").
		Limit(limit).
		Find(&leads)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to select due leads: %w", result.Error)
	}
	return leads, nil
}

// Claim performs the lease compare-and-swap
func (r *leadRepository) Claim(ctx context.Context, tenantID, id uint, observedDue time.Time, lease time.Duration) error {
	result := r.db.WithContext(ctx).
		Model(&models.CampaignLead{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ? AND status = ? AND next_step_due = ?", id, models.LeadActive, observedDue).
		Update("next_step_due", observedDue.Add(lease))
	if result.Error != nil {
		return fmt.Errorf("failed to claim lead: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("lead %d: %w", id, apperrors.ErrLeaseConflict)
	}
	return nil
}

// AdvanceStep moves an active lead forward and clears the retry window
func (r *leadRepository) AdvanceStep(ctx context.Context, tenantID, id uint, nextStep int, nextDue time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.CampaignLead{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ? AND status = ?", id, models.LeadActive).
		Updates(map[string]interface{}{
			"current_step":   nextStep,
			"next_step_due":  nextDue,
			"first_retry_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to advance lead: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ScheduleRetry pushes the current step's due time out without
// advancing the step
func (r *leadRepository) ScheduleRetry(ctx context.Context, tenantID, id uint, due time.Time, firstRetry time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.CampaignLead{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ? AND status = ?", id, models.LeadActive).
		Updates(map[string]interface{}{
			"next_step_due":  due,
			"first_retry_at": gorm.Expr("COALESCE(first_retry_at, ?)", firstRetry),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to schedule retry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Terminate moves a lead to a terminal status and clears next_step_due
func (r *leadRepository) Terminate(ctx context.Context, tenantID, id uint, status models.LeadStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal: %w", status, apperrors.ErrInvalidInput)
	}
	result := r.db.WithContext(ctx).
		Model(&models.CampaignLead{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"next_step_due":  nil,
			"first_retry_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to terminate lead: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// OptOutByEmail opts out every non-terminal lead with the address
func (r *leadRepository) OptOutByEmail(ctx context.Context, tenantID uint, email string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CampaignLead{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("lead_email = ? AND status IN ?", email, []models.LeadStatus{models.LeadPending, models.LeadActive}).
		Updates(map[string]interface{}{
			"status":         models.LeadOptedOut,
			"next_step_due":  nil,
			"first_retry_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to opt out leads: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ActiveByEmail returns active leads for an address with campaigns preloaded
func (r *leadRepository) ActiveByEmail(ctx context.Context, tenantID uint, email string) ([]models.CampaignLead, error) {
	var leads []models.CampaignLead
	result := r.db.WithContext(ctx).
		Scopes(tenancy.Scope(tenantID)).
		Where("lead_email = ? AND status = ?", email, models.LeadActive).
		Preload("Campaign.Steps").
		Find(&leads)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find active leads by email: %w", result.Error)
	}
	return leads, nil
}
