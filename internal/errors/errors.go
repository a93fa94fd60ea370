package errors

import (
	"errors"
	"fmt"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateEntry indicates a unique constraint violation
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrAccountNotFound indicates the mail account was not found
	ErrAccountNotFound = errors.New("mail account not found")

	// ErrAccountInactive indicates the mail account has been deactivated
	ErrAccountInactive = errors.New("mail account is not active")

	// ErrCorruptBlob indicates a vault blob whose IV segment is malformed
	ErrCorruptBlob = errors.New("corrupt credential blob")

	// ErrKeyMismatch indicates a vault blob that does not decrypt under
	// the configured key
	ErrKeyMismatch = errors.New("credential key mismatch")

	// ErrTenantMismatch indicates an attempt to touch a record owned by a
	// different tenant. Always a programming or security error - never
	// recovered from.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrLeaseConflict indicates a due lead was claimed by a concurrent
	// scheduler tick. Expected under concurrency - callers skip, not fail.
	ErrLeaseConflict = errors.New("lease conflict")

	// ErrWatermarkRegression indicates an attempt to move a sync
	// watermark backwards
	ErrWatermarkRegression = errors.New("watermark regression")

	// ErrAlreadyTerminal indicates a delivery attempt against an outbound
	// message whose status is already sent or failed
	ErrAlreadyTerminal = errors.New("outbound message already terminal")

	// ErrCampaignNotActive indicates the campaign is not in active status
	ErrCampaignNotActive = errors.New("campaign is not active")

	// ErrStepNotFound indicates the campaign has no step at the requested index
	ErrStepNotFound = errors.New("campaign step not found")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
)

// Error codes for API responses and log entries
const (
	CodeNotFound        = "NOT_FOUND"
	CodeDuplicateEntry  = "DUPLICATE_ENTRY"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeAccountInactive = "ACCOUNT_INACTIVE"
	CodeCorruptBlob     = "CORRUPT_BLOB"
	CodeKeyMismatch     = "KEY_MISMATCH"
	CodeTenantMismatch  = "TENANT_MISMATCH"
	CodeLeaseConflict   = "LEASE_CONFLICT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeTransientSend   = "TRANSIENT_DELIVERY_FAILURE"
	CodePermanentSend   = "PERMANENT_DELIVERY_FAILURE"
	CodeConnection      = "CONNECTION_FAILURE"
	CodeParse           = "PARSE_FAILURE"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// DeliveryError classifies an SMTP delivery failure. Transient failures
// (connection refused, timeouts, 4xx codes) may be retried; permanent
// failures (5xx codes, auth rejection) terminate the message.
type DeliveryError struct {
	Err       error
	Transient bool
	// SMTPCode is the reply code when the server rejected the
	// transaction, zero for transport-level failures.
	SMTPCode int
}

// Error implements the error interface
func (e *DeliveryError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.SMTPCode != 0 {
		return fmt.Sprintf("%s delivery failure (code %d): %v", kind, e.SMTPCode, e.Err)
	}
	return fmt.Sprintf("%s delivery failure: %v", kind, e.Err)
}

// Unwrap returns the underlying error
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewTransientDelivery wraps err as a retryable delivery failure.
func NewTransientDelivery(err error, code int) *DeliveryError {
	return &DeliveryError{Err: err, Transient: true, SMTPCode: code}
}

// NewPermanentDelivery wraps err as a non-retryable delivery failure.
func NewPermanentDelivery(err error, code int) *DeliveryError {
	return &DeliveryError{Err: err, Transient: false, SMTPCode: code}
}

// SyncError classifies an IMAP sync failure for one account tick.
type SyncError struct {
	Err       error
	AccountID uint
	// Phase is the sync step that failed: connect, list, fetch, parse, persist.
	Phase string
}

// Error implements the error interface
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed for account %d: %v", e.Phase, e.AccountID, e.Err)
}

// Unwrap returns the underlying error
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError wraps err with the failing account and phase.
func NewSyncError(err error, accountID uint, phase string) *SyncError {
	return &SyncError{Err: err, AccountID: accountID, Phase: phase}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccountNotFound)
}

// IsTenantMismatch checks if the error is a tenant isolation violation
func IsTenantMismatch(err error) bool {
	return errors.Is(err, ErrTenantMismatch)
}

// IsLeaseConflict checks if the error is a concurrent-claim skip
func IsLeaseConflict(err error) bool {
	return errors.Is(err, ErrLeaseConflict)
}

// IsAlreadyTerminal checks if the error is a finalize against a message
// that already reached a terminal status
func IsAlreadyTerminal(err error) bool {
	return errors.Is(err, ErrAlreadyTerminal)
}

// IsVaultError checks if the error is a credential decryption failure
func IsVaultError(err error) bool {
	return errors.Is(err, ErrCorruptBlob) || errors.Is(err, ErrKeyMismatch)
}

// IsTransientDelivery checks if the error is a retryable delivery failure
func IsTransientDelivery(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Transient
}

// IsPermanentDelivery checks if the error is a non-retryable delivery failure
func IsPermanentDelivery(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && !de.Transient
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	switch {
	case IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, ErrDuplicateEntry):
		return CodeDuplicateEntry
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrAccountInactive):
		return CodeAccountInactive
	case errors.Is(err, ErrCorruptBlob):
		return CodeCorruptBlob
	case errors.Is(err, ErrKeyMismatch):
		return CodeKeyMismatch
	case IsTenantMismatch(err):
		return CodeTenantMismatch
	case IsLeaseConflict(err):
		return CodeLeaseConflict
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case IsTransientDelivery(err):
		return CodeTransientSend
	case IsPermanentDelivery(err):
		return CodePermanentSend
	default:
		return CodeInternalError
	}
}
