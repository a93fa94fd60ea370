// Package tenancy enforces tenant isolation at the data-access
// boundary. Repositories apply Scope to every query and Verify to
// every loaded record, so no caller can reach another tenant's rows by
// convention or by mistake.
package tenancy

import (
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
)

// Scope returns a GORM scope restricting a query to one tenant. Every
// repository read and write goes through it; there is no ambient
// "current tenant" state.
func Scope(tenantID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// Verify confirms a loaded record belongs to the caller's tenant. A
// mismatch is a security error, never recovered from.
func Verify(callerTenant, ownerTenant uint, resource string) error {
	if callerTenant != ownerTenant {
		return fmt.Errorf("%s owned by tenant %d, caller is tenant %d: %w",
			resource, ownerTenant, callerTenant, apperrors.ErrTenantMismatch)
	}
	return nil
}
