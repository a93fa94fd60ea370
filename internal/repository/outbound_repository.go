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

// OutboundRepository defines data access for outbound messages. The
// queued->sent and queued->failed transitions are conditional updates
// so a message reaches a terminal status exactly once, no matter how
// often the dispatch is retried around a crash.
type OutboundRepository interface {
	Create(ctx context.Context, message *models.OutboundMessage) error
	GetByID(ctx context.Context, tenantID, id uint) (*models.OutboundMessage, error)
	// MarkSent commits the delivery: only a still-queued row transitions.
	// An already-terminal row returns ErrAlreadyTerminal.
	MarkSent(ctx context.Context, tenantID, id uint, sentAt time.Time, attempts int) error
	// MarkFailed finalizes a failed delivery with the error detail.
	MarkFailed(ctx context.Context, tenantID, id uint, detail string, attempts int) error
	// SentExistsForStep reports whether a sent message already exists for
	// the (lead, step) pair. The scheduler checks it before dispatching
	// so a crashed-and-restarted tick cannot double-send a step.
	SentExistsForStep(ctx context.Context, tenantID, leadID uint, stepIndex int) (bool, error)
	// QueuedForStep returns the queued message for the (lead, step) pair,
	// or nil when none exists. A retried step re-dispatches this row
	// instead of inserting a fresh one on every attempt.
	QueuedForStep(ctx context.Context, tenantID, leadID uint, stepIndex int) (*models.OutboundMessage, error)
	ListByStatus(ctx context.Context, tenantID uint, status models.OutboundStatus, limit, offset int) ([]models.OutboundMessage, int64, error)
}

// outboundRepository implements OutboundRepository using GORM
type outboundRepository struct {
	db *gorm.DB
}

// NewOutboundRepository creates a new OutboundRepository instance
func NewOutboundRepository(db *gorm.DB) OutboundRepository {
	return &outboundRepository{db: db}
}

// Create creates a new queued outbound message
func (r *outboundRepository) Create(ctx context.Context, message *models.OutboundMessage) error {
	if message.Status == "" {
		message.Status = models.OutboundQueued
	}
	result := r.db.WithContext(ctx).Create(message)
	if result.Error != nil {
		return fmt.Errorf("failed to create outbound message: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a message scoped to the caller's tenant
func (r *outboundRepository) GetByID(ctx context.Context, tenantID, id uint) (*models.OutboundMessage, error) {
	var message models.OutboundMessage
	result := r.db.WithContext(ctx).Scopes(tenancy.Scope(tenantID)).First(&message, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get outbound message: %w", result.Error)
	}
	if err := tenancy.Verify(tenantID, message.TenantID, fmt.Sprintf("outbound_message:%d", id)); err != nil {
		return nil, err
	}
	return &message, nil
}

// MarkSent transitions queued -> sent. The status predicate makes the
// transition the single commit point of a delivery.
func (r *outboundRepository) MarkSent(ctx context.Context, tenantID, id uint, sentAt time.Time, attempts int) error {
	return r.finalize(ctx, tenantID, id, map[string]interface{}{
		"status":        models.OutboundSent,
		"sent_at":       sentAt,
		"attempt_count": attempts,
	})
}

// MarkFailed transitions queued -> failed with the recorded detail
func (r *outboundRepository) MarkFailed(ctx context.Context, tenantID, id uint, detail string, attempts int) error {
	return r.finalize(ctx, tenantID, id, map[string]interface{}{
		"status":        models.OutboundFailed,
		"error_detail":  detail,
		"attempt_count": attempts,
	})
}

func (r *outboundRepository) finalize(ctx context.Context, tenantID, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.OutboundMessage{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ? AND status = ?", id, models.OutboundQueued).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to finalize outbound message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var message models.OutboundMessage
		if err := r.db.WithContext(ctx).Scopes(tenancy.Scope(tenantID)).First(&message, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("failed to check outbound message: %w", err)
		}
		return fmt.Errorf("message %d already %s: %w", id, message.Status, apperrors.ErrAlreadyTerminal)
	}
	return nil
}

// SentExistsForStep checks for a prior sent message for the (lead, step) pair
func (r *outboundRepository) SentExistsForStep(ctx context.Context, tenantID, leadID uint, stepIndex int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OutboundMessage{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("campaign_lead_id = ? AND step_index = ? AND status = ?", leadID, stepIndex, models.OutboundSent).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check sent messages for step: %w", err)
	}
	return count > 0, nil
}

// QueuedForStep finds the pending queued message for the (lead, step) pair
func (r *outboundRepository) QueuedForStep(ctx context.Context, tenantID, leadID uint, stepIndex int) (*models.OutboundMessage, error) {
	var message models.OutboundMessage
	err := r.db.WithContext(ctx).
		Scopes(tenancy.Scope(tenantID)).
		Where("campaign_lead_id = ? AND step_index = ? AND status = ?", leadID, stepIndex, models.OutboundQueued).
		Order("id DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find queued message for step: %w", err)
	}
	return &message, nil
}

// ListByStatus retrieves the tenant's messages in one status, newest first
func (r *outboundRepository) ListByStatus(ctx context.Context, tenantID uint, status models.OutboundStatus, limit, offset int) ([]models.OutboundMessage, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.OutboundMessage{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("status = ?", status)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count outbound messages: %w", err)
	}

	var messages []models.OutboundMessage
	if err := base.Order("created_at DESC").Limit(limit).Offset(offset).Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list outbound messages: %w", err)
	}
	return messages, total, nil
}
