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

// InboundRepository defines data access for synced inbox messages
type InboundRepository interface {
	// CreateIfAbsent inserts the message unless a row with the same
	// (account_id, message_id) already exists. Returns true when a new
	// row was created. Re-syncs and UID renumbering never duplicate.
	CreateIfAbsent(ctx context.Context, message *models.InboundMessage) (bool, error)
	GetByID(ctx context.Context, tenantID, id uint) (*models.InboundMessage, error)
	ListByAccount(ctx context.Context, tenantID, accountID uint, limit, offset int) ([]models.InboundMessageListItem, int64, error)
	// ListByTenant is the unified inbox: all accounts of one tenant in
	// received order.
	ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]models.InboundMessageListItem, int64, error)
	MarkAsRead(ctx context.Context, tenantID, id uint) error
	CountUnread(ctx context.Context, tenantID uint) (int64, error)
}

// inboundRepository implements InboundRepository using GORM
type inboundRepository struct {
	db *gorm.DB
}

// NewInboundRepository creates a new InboundRepository instance
func NewInboundRepository(db *gorm.DB) InboundRepository {
	return &inboundRepository{db: db}
}

// CreateIfAbsent deduplicates on (account_id, message_id). The check
// runs first to keep re-syncs cheap; the unique index catches the race
// where two workers insert the same message concurrently.
func (r *inboundRepository) CreateIfAbsent(ctx context.Context, message *models.InboundMessage) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InboundMessage{}).
		Where("account_id = ? AND message_id = ?", message.AccountID, message.MessageID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate message: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	result := r.db.WithContext(ctx).Create(message)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create inbound message: %w", result.Error)
	}
	return true, nil
}

// GetByID retrieves a message scoped to the caller's tenant
func (r *inboundRepository) GetByID(ctx context.Context, tenantID, id uint) (*models.InboundMessage, error) {
	var message models.InboundMessage
	result := r.db.WithContext(ctx).Scopes(tenancy.Scope(tenantID)).First(&message, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get inbound message: %w", result.Error)
	}
	if err := tenancy.Verify(tenantID, message.TenantID, fmt.Sprintf("inbound_message:%d", id)); err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByAccount retrieves one account's messages with pagination,
// newest first
func (r *inboundRepository) ListByAccount(ctx context.Context, tenantID, accountID uint, limit, offset int) ([]models.InboundMessageListItem, int64, error) {
	return r.list(ctx, tenantID, &accountID, limit, offset)
}

// ListByTenant retrieves the tenant's unified inbox with pagination,
// newest first
func (r *inboundRepository) ListByTenant(ctx context.Context, tenantID uint, limit, offset int) ([]models.InboundMessageListItem, int64, error) {
	return r.list(ctx, tenantID, nil, limit, offset)
}

func (r *inboundRepository) list(ctx context.Context, tenantID uint, accountID *uint, limit, offset int) ([]models.InboundMessageListItem, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.InboundMessage{}).
		Scopes(tenancy.Scope(tenantID))
	if accountID != nil {
		base = base.Where("account_id = ?", *accountID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count inbound messages: %w", err)
	}

	var results []models.InboundMessageListItem
	err := base.
		Select("id, account_id, folder, sender_email, sender_name, subject, snippet, is_read, received_at").
		Order("received_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&results).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list inbound messages: %w", err)
	}

	return results, total, nil
}

// MarkAsRead marks a message as read
func (r *inboundRepository) MarkAsRead(ctx context.Context, tenantID, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.InboundMessage{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ?", id).
		Update("is_read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark message as read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CountUnread counts unread messages across the tenant's accounts
func (r *inboundRepository) CountUnread(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.InboundMessage{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("is_read = ?", false).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", result.Error)
	}
	return count, nil
}
