package repository

import (
	"strings"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
)

// ErrDuplicateEntry indicates a unique constraint violation.
var ErrDuplicateEntry = apperrors.ErrDuplicateEntry

// isDuplicateKeyError checks if the error is a duplicate key violation
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "23505") // PostgreSQL unique violation code
}
