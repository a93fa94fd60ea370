package dispatch

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
)

// stalledListener accepts connections and never speaks, like a broken
// provider that completes the TCP handshake and then goes silent.
func stalledListener(t *testing.T) (host string, port int) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			defer conn.Close()
		}
	}()

	host, portStr, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	port, err = strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestSendTimesOutOnSilentGreeting(t *testing.T) {
	host, port := stalledListener(t)

	account := &models.MailAccount{
		ID:          1,
		TenantID:    1,
		Name:        "Sales",
		FromAddress: "sales@acme.test",
		Username:    "sales@acme.test",
		SMTPHost:    host,
		SMTPPort:    port,
		SMTPTLS:     true,
	}
	message := &models.OutboundMessage{
		Recipient: "jane@lead.test",
		Subject:   "Hi",
		BodyText:  "hello",
	}

	transport := NewSMTPTransport(100 * time.Millisecond)

	start := time.Now()
	err := transport.Send(context.Background(), account, "secret", message)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.False(t, apperrors.IsPermanentDelivery(err),
		"a stalled peer must not be classified permanent: %v", err)
	assert.Less(t, elapsed, 5*time.Second, "connection deadline did not fire")
}
