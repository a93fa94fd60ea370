package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/tenancy"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/vault"
)

// AccountRepository is the mail account registry: the per-tenant
// catalog of configured accounts plus their encrypted credentials and
// sync watermarks.
type AccountRepository interface {
	Create(ctx context.Context, account *models.MailAccount, plaintextSecret string) error
	GetByID(ctx context.Context, tenantID, id uint) (*models.MailAccount, error)
	ListActive(ctx context.Context, tenantID uint) ([]models.MailAccount, error)
	// ListAllActive feeds the background worker fan-out; each returned
	// account carries its own tenant id, which downstream calls must use.
	ListAllActive(ctx context.Context) ([]models.MailAccount, error)
	// Credential decrypts the stored secret. The plaintext lives only in
	// memory for the duration of one connection attempt.
	Credential(ctx context.Context, tenantID, id uint) (string, error)
	// UpdateWatermark advances the sync watermark. It never regresses:
	// an attempt to move it backwards returns ErrWatermarkRegression.
	UpdateWatermark(ctx context.Context, tenantID, id uint, uid uint32) error
	Deactivate(ctx context.Context, tenantID, id uint) error
}

// accountRepository implements AccountRepository using GORM and the vault
type accountRepository struct {
	db    *gorm.DB
	vault *vault.Vault
}

// NewAccountRepository creates a new AccountRepository instance
func NewAccountRepository(db *gorm.DB, v *vault.Vault) AccountRepository {
	return &accountRepository{db: db, vault: v}
}

// Create encrypts the plaintext secret through the vault and persists
// the account. The plaintext is never stored.
func (r *accountRepository) Create(ctx context.Context, account *models.MailAccount, plaintextSecret string) error {
	if account.TenantID == 0 {
		return fmt.Errorf("account requires a tenant: %w", apperrors.ErrInvalidInput)
	}
	blob, err := r.vault.Encrypt(plaintextSecret)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	account.EncryptedSecret = blob.Ciphertext
	account.SecretIV = blob.IV

	result := r.db.WithContext(ctx).Create(account)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create mail account: %w", result.Error)
	}
	return nil
}

// GetByID retrieves an account scoped to the caller's tenant
func (r *accountRepository) GetByID(ctx context.Context, tenantID, id uint) (*models.MailAccount, error) {
	var account models.MailAccount
	result := r.db.WithContext(ctx).Scopes(tenancy.Scope(tenantID)).First(&account, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get mail account: %w", result.Error)
	}
	if err := tenancy.Verify(tenantID, account.TenantID, fmt.Sprintf("mail_account:%d", id)); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListActive retrieves the tenant's active accounts
func (r *accountRepository) ListActive(ctx context.Context, tenantID uint) ([]models.MailAccount, error) {
	var accounts []models.MailAccount
	result := r.db.WithContext(ctx).
		Scopes(tenancy.Scope(tenantID)).
		Where("is_active = ?", true).
		Order("id").
		Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", result.Error)
	}
	return accounts, nil
}

// ListAllActive retrieves active accounts across all tenants
func (r *accountRepository) ListAllActive(ctx context.Context) ([]models.MailAccount, error) {
	var accounts []models.MailAccount
	result := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id").
		Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", result.Error)
	}
	return accounts, nil
}

// Credential decrypts the account's secret via the vault
func (r *accountRepository) Credential(ctx context.Context, tenantID, id uint) (string, error) {
	account, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return "", err
	}
	if !account.IsActive {
		return "", apperrors.ErrAccountInactive
	}
	secret, err := r.vault.Decrypt(vault.Blob{IV: account.SecretIV, Ciphertext: account.EncryptedSecret})
	if err != nil {
		return "", fmt.Errorf("account %d: %w", id, err)
	}
	return secret, nil
}

// UpdateWatermark advances last_sync_uid with a monotonic guard. The
// condition is part of the UPDATE itself so concurrent workers cannot
// interleave a regression.
func (r *accountRepository) UpdateWatermark(ctx context.Context, tenantID, id uint, uid uint32) error {
	result := r.db.WithContext(ctx).
		Model(&models.MailAccount{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ? AND last_sync_uid <= ?", id, uid).
		Update("last_sync_uid", uid)
	if result.Error != nil {
		return fmt.Errorf("failed to update watermark: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the account is gone or the stored watermark is ahead.
		var account models.MailAccount
		if err := r.db.WithContext(ctx).Scopes(tenancy.Scope(tenantID)).First(&account, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrAccountNotFound
			}
			return fmt.Errorf("failed to check watermark: %w", err)
		}
		return fmt.Errorf("stored %d, proposed %d: %w", account.LastSyncUID, uid, apperrors.ErrWatermarkRegression)
	}
	return nil
}

// Deactivate soft-disables an account; message history is preserved
func (r *accountRepository) Deactivate(ctx context.Context, tenantID, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.MailAccount{}).
		Scopes(tenancy.Scope(tenantID)).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}
