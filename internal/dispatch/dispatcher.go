// Package dispatch sends outbound messages through per-tenant mail
// accounts. Each account's throughput is limited, transient failures
// retry with exponential backoff, and the queued->sent transition is
// checked before any network I/O so a message id has at most one
// observable delivery.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/logger"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/repository"
)

// Config holds retry and throughput policy for the dispatcher. The
// backoff curve is operational tuning, not a structural contract.
type Config struct {
	MinSendInterval time.Duration
	MaxAttempts     int
	BackoffBase     time.Duration
	NetworkTimeout  time.Duration
}

// DeliveryResult reports the outcome of a dispatch call.
type DeliveryResult struct {
	Status   models.OutboundStatus
	Attempts int
	// Err carries the classified failure when Status is not sent; nil on
	// success or when the message was already terminal.
	Err error
}

// Dispatcher coordinates account resolution, credential decryption,
// rate limiting, transport and status commits.
type Dispatcher struct {
	accounts  repository.AccountRepository
	outbound  repository.OutboundRepository
	transport Transport
	limiters  *AccountLimiters
	config    Config
	ops       *logger.OpsLogger
}

// New creates a Dispatcher.
func New(
	accounts repository.AccountRepository,
	outbound repository.OutboundRepository,
	transport Transport,
	config Config,
	ops *logger.OpsLogger,
) *Dispatcher {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = 2 * time.Second
	}
	if config.MinSendInterval <= 0 {
		config.MinSendInterval = time.Second
	}
	if config.NetworkTimeout <= 0 {
		config.NetworkTimeout = time.Minute
	}
	return &Dispatcher{
		accounts:  accounts,
		outbound:  outbound,
		transport: transport,
		limiters:  NewAccountLimiters(config.MinSendInterval),
		config:    config,
		ops:       ops,
	}
}

// Send delivers one outbound message through its account. An
// already-terminal message is never re-sent; its current status is
// returned unchanged, which makes the whole operation safe to retry.
func (d *Dispatcher) Send(ctx context.Context, tenantID, messageID uint) (DeliveryResult, error) {
	message, err := d.outbound.GetByID(ctx, tenantID, messageID)
	if err != nil {
		return DeliveryResult{}, err
	}

	// Idempotency check before any I/O.
	if message.Status.Terminal() {
		return DeliveryResult{Status: message.Status, Attempts: message.AttemptCount}, nil
	}

	account, err := d.accounts.GetByID(ctx, tenantID, message.AccountID)
	if err != nil {
		return DeliveryResult{}, err
	}
	if !account.IsActive {
		return DeliveryResult{}, apperrors.ErrAccountInactive
	}

	// Decrypted secret stays on the stack for this attempt only.
	secret, err := d.accounts.Credential(ctx, tenantID, account.ID)
	if err != nil {
		if apperrors.IsVaultError(err) {
			d.ops.VaultFailure(tenantID, account.ID, err.Error())
		}
		return DeliveryResult{}, err
	}

	// Serialize sends per account.
	if err := d.limiters.Get(account.ID).Wait(ctx); err != nil {
		return DeliveryResult{}, fmt.Errorf("rate limit wait: %w", err)
	}

	attempts := 0
	operation := func() error {
		attempts++
		sendErr := d.transport.Send(ctx, account, secret, message)
		if sendErr == nil {
			return nil
		}
		if apperrors.IsPermanentDelivery(sendErr) {
			return backoff.Permanent(sendErr)
		}
		return sendErr
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.config.BackoffBase
	policy.MaxElapsedTime = 0

	sendErr := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(d.config.MaxAttempts-1)), ctx))

	if sendErr == nil {
		if err := d.outbound.MarkSent(ctx, tenantID, message.ID, time.Now().UTC(), attempts); err != nil {
			// The mail left the building but the commit lost a race with
			// another worker's terminal transition; surface, don't resend.
			return DeliveryResult{Status: models.OutboundSent, Attempts: attempts}, err
		}
		d.ops.Info("message dispatched",
			slog.Uint64("tenant_id", uint64(tenantID)),
			slog.Uint64("account_id", uint64(account.ID)),
			slog.Uint64("message_id", uint64(message.ID)),
			slog.Int("attempts", attempts))
		return DeliveryResult{Status: models.OutboundSent, Attempts: attempts}, nil
	}

	if apperrors.IsPermanentDelivery(sendErr) {
		d.ops.DeliveryFailure(tenantID, account.ID, message.ID, false, sendErr.Error())
		if err := d.outbound.MarkFailed(ctx, tenantID, message.ID, sendErr.Error(), attempts); err != nil {
			return DeliveryResult{Status: models.OutboundFailed, Attempts: attempts, Err: sendErr}, err
		}
		return DeliveryResult{Status: models.OutboundFailed, Attempts: attempts, Err: sendErr}, nil
	}

	// Transient and out of attempts: leave the message queued so a later
	// dispatch (after the caller's cool-down) can try again.
	d.ops.DeliveryFailure(tenantID, account.ID, message.ID, true, sendErr.Error())
	return DeliveryResult{Status: models.OutboundQueued, Attempts: attempts, Err: sendErr}, nil
}
