package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrNotFound, "lead 42 not found", CodeNotFound)
	assert.Equal(t, "lead 42 not found", err.Error())

	noMsg := NewAppError(ErrNotFound, "", CodeNotFound)
	assert.Equal(t, ErrNotFound.Error(), noMsg.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	err := NewAppError(ErrTenantMismatch, "account 7 owned by tenant 2", CodeTenantMismatch)
	assert.ErrorIs(t, err, ErrTenantMismatch)
	assert.True(t, IsTenantMismatch(err))
}

func TestDeliveryError_Classification(t *testing.T) {
	transient := NewTransientDelivery(errors.New("greylisted"), 451)
	permanent := NewPermanentDelivery(errors.New("no such user"), 550)

	assert.True(t, IsTransientDelivery(transient))
	assert.False(t, IsPermanentDelivery(transient))
	assert.True(t, IsPermanentDelivery(permanent))
	assert.False(t, IsTransientDelivery(permanent))

	// Classification survives wrapping.
	wrapped := fmt.Errorf("dispatch: %w", transient)
	assert.True(t, IsTransientDelivery(wrapped))
}

func TestDeliveryError_Error(t *testing.T) {
	err := NewPermanentDelivery(errors.New("mailbox unavailable"), 550)
	assert.Contains(t, err.Error(), "permanent")
	assert.Contains(t, err.Error(), "550")

	dial := NewTransientDelivery(errors.New("connection refused"), 0)
	assert.Contains(t, dial.Error(), "transient")
	assert.NotContains(t, dial.Error(), "code 0")
}

func TestSyncError(t *testing.T) {
	base := errors.New("broken pipe")
	err := NewSyncError(base, 9, "fetch")
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "fetch")
	assert.Contains(t, err.Error(), "account 9")
}

func TestIsVaultError(t *testing.T) {
	assert.True(t, IsVaultError(ErrCorruptBlob))
	assert.True(t, IsVaultError(Wrap(ErrKeyMismatch, "account 3")))
	assert.False(t, IsVaultError(ErrNotFound))
}

func TestIsLeaseConflict(t *testing.T) {
	assert.True(t, IsLeaseConflict(ErrLeaseConflict))
	assert.True(t, IsLeaseConflict(Wrap(ErrLeaseConflict, "lead 5")))
	assert.False(t, IsLeaseConflict(ErrNotFound))
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"not found", ErrNotFound, CodeNotFound},
		{"account not found", ErrAccountNotFound, CodeNotFound},
		{"duplicate", ErrDuplicateEntry, CodeDuplicateEntry},
		{"corrupt blob", ErrCorruptBlob, CodeCorruptBlob},
		{"key mismatch", ErrKeyMismatch, CodeKeyMismatch},
		{"tenant mismatch", ErrTenantMismatch, CodeTenantMismatch},
		{"lease conflict", ErrLeaseConflict, CodeLeaseConflict},
		{"transient delivery", NewTransientDelivery(errors.New("timeout"), 0), CodeTransientSend},
		{"permanent delivery", NewPermanentDelivery(errors.New("rejected"), 550), CodePermanentSend},
		{"unknown", errors.New("boom"), CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, GetErrorCode(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	wrapped := Wrap(ErrNotFound, "loading account")
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Contains(t, wrapped.Error(), "loading account")
}
