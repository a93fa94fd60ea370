package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
)

// Transport delivers one assembled message through an account's SMTP
// endpoint. It exists as an interface so the dispatcher can be tested
// without a live server.
type Transport interface {
	Send(ctx context.Context, account *models.MailAccount, secret string, message *models.OutboundMessage) error
}

// smtpTransport implements Transport over emersion/go-smtp
type smtpTransport struct {
	timeout time.Duration
}

// NewSMTPTransport creates a Transport with the given per-operation
// network timeout.
func NewSMTPTransport(timeout time.Duration) Transport {
	return &smtpTransport{timeout: timeout}
}

// Send opens a secured connection, authenticates and transmits the
// message. Errors are classified into transient/permanent delivery
// failures for the retry policy.
func (t *smtpTransport) Send(ctx context.Context, account *models.MailAccount, secret string, message *models.OutboundMessage) error {
	raw, err := buildMessage(account, message)
	if err != nil {
		return apperrors.NewPermanentDelivery(fmt.Errorf("failed to assemble message: %w", err), 0)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", account.SMTPAddr())
	if err != nil {
		return apperrors.NewTransientDelivery(fmt.Errorf("dial %s: %w", account.SMTPAddr(), err), 0)
	}

	// Bound the connection before the greeting is read; a peer that
	// stalls after accept must time out, not hang the goroutine.
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return apperrors.NewTransientDelivery(fmt.Errorf("bounding connection: %w", err), 0)
		}
	}

	tlsConfig := &tls.Config{ServerName: account.SMTPHost}

	var client *smtp.Client
	if account.SMTPTLS {
		// Implicit TLS on the configured port.
		client = smtp.NewClient(tls.Client(conn, tlsConfig))
	} else {
		// Plaintext connect, then STARTTLS. A peer that cannot negotiate
		// TLS fails the send rather than silently downgrading.
		var err error
		client, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			return classifySMTP(fmt.Errorf("starttls: %w", err))
		}
	}
	defer client.Close()

	if err := client.Auth(sasl.NewPlainClient("", account.Username, secret)); err != nil {
		// Rejected credentials are permanent; retrying cannot help.
		// A timeout before the server ever replied is not a rejection.
		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			return apperrors.NewPermanentDelivery(fmt.Errorf("auth: %w", err), smtpErr.Code)
		}
		return apperrors.NewTransientDelivery(fmt.Errorf("auth: %w", err), 0)
	}

	if err := client.SendMail(account.FromAddress, []string{message.Recipient}, bytes.NewReader(raw)); err != nil {
		return classifySMTP(err)
	}

	return client.Quit()
}

// buildMessage assembles the RFC 5322 wire form with enmime.
func buildMessage(account *models.MailAccount, message *models.OutboundMessage) ([]byte, error) {
	builder := enmime.Builder().
		From(account.Name, account.FromAddress).
		To("", message.Recipient).
		Subject(message.Subject).
		Header("Message-Id", fmt.Sprintf("<%s@%s>", uuid.NewString(), account.SMTPHost)).
		Date(time.Now().UTC())

	if message.BodyText != "" {
		builder = builder.Text([]byte(message.BodyText))
	}
	if message.BodyHTML != "" {
		builder = builder.HTML([]byte(message.BodyHTML))
	}

	part, err := builder.Build()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// classifySMTP maps a raw send error onto the delivery taxonomy:
// 4xx replies and transport failures are transient, 5xx replies are
// permanent.
func classifySMTP(err error) error {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		if smtpErr.Temporary() {
			return apperrors.NewTransientDelivery(err, smtpErr.Code)
		}
		return apperrors.NewPermanentDelivery(err, smtpErr.Code)
	}
	// Timeouts, resets and other transport errors may heal.
	return apperrors.NewTransientDelivery(err, 0)
}
