// Package logger provides secure logging for the dripmail workers.
package logger

import (
	"log/slog"
	"os"
	"time"
)

// OpsLogger logs operational events from the scheduler, dispatcher and
// sync worker. It ensures credentials and other sensitive data are
// never logged.
type OpsLogger struct {
	logger *slog.Logger
}

// NewOpsLogger creates a new OpsLogger with JSON output.
func NewOpsLogger(level slog.Level) *OpsLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return &OpsLogger{
		logger: slog.New(handler),
	}
}

// NewOpsLoggerWithHandler creates an OpsLogger with a custom handler.
func NewOpsLoggerWithHandler(handler slog.Handler) *OpsLogger {
	return &OpsLogger{
		logger: slog.New(handler),
	}
}

// VaultFailure logs an undecryptable credential. This is an operator
// alert: the affected account cannot send or sync until re-keyed.
// Never logs blob contents.
func (o *OpsLogger) VaultFailure(tenantID, accountID uint, reason string) {
	o.logger.Error("vault_failure",
		slog.String("event_type", "vault_failure"),
		slog.Uint64("tenant_id", uint64(tenantID)),
		slog.Uint64("account_id", uint64(accountID)),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// TenantViolation logs an attempted cross-tenant access. Always a
// programming or security error.
func (o *OpsLogger) TenantViolation(callerTenant, ownerTenant uint, resource string) {
	o.logger.Error("tenant_violation",
		slog.String("event_type", "tenant_violation"),
		slog.Uint64("caller_tenant", uint64(callerTenant)),
		slog.Uint64("owner_tenant", uint64(ownerTenant)),
		slog.String("resource", resource),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// DeliveryFailure logs a terminal outbound delivery failure.
func (o *OpsLogger) DeliveryFailure(tenantID, accountID, messageID uint, transient bool, detail string) {
	o.logger.Warn("delivery_failure",
		slog.String("event_type", "delivery_failure"),
		slog.Uint64("tenant_id", uint64(tenantID)),
		slog.Uint64("account_id", uint64(accountID)),
		slog.Uint64("message_id", uint64(messageID)),
		slog.Bool("transient", transient),
		slog.String("detail", detail),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// SyncFailure logs a failed sync tick for one account. The watermark
// was not advanced; the next tick retries from scratch.
func (o *OpsLogger) SyncFailure(tenantID, accountID uint, phase, reason string) {
	o.logger.Warn("sync_failure",
		slog.String("event_type", "sync_failure"),
		slog.Uint64("tenant_id", uint64(tenantID)),
		slog.Uint64("account_id", uint64(accountID)),
		slog.String("phase", phase),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// AuthFailure logs a failed API authentication attempt.
// Never logs the actual credentials.
func (o *OpsLogger) AuthFailure(ip, path, reason string) {
	o.logger.Warn("authentication_failure",
		slog.String("event_type", "auth_failure"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// OpsEvent logs a generic operational event, dropping sensitive keys.
func (o *OpsLogger) OpsEvent(eventType string, details map[string]string) {
	attrs := []any{
		slog.String("event_type", eventType),
		slog.Time("timestamp", time.Now().UTC()),
	}

	for k, v := range details {
		// Filter out sensitive keys
		if isSensitiveKey(k) {
			continue
		}
		attrs = append(attrs, slog.String(k, v))
	}

	o.logger.Info("ops_event", attrs...)
}

// Info logs an informational message.
func (o *OpsLogger) Info(msg string, args ...any) {
	o.logger.Info(msg, args...)
}

// Error logs an error message.
func (o *OpsLogger) Error(msg string, args ...any) {
	o.logger.Error(msg, args...)
}

// GetLogger returns the underlying slog.Logger.
func (o *OpsLogger) GetLogger() *slog.Logger {
	return o.logger
}

// ParseLevel maps a config log level string to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isSensitiveKey checks if a key might contain sensitive data.
func isSensitiveKey(key string) bool {
	sensitiveKeys := map[string]bool{
		"password":      true,
		"api_key":       true,
		"apikey":        true,
		"token":         true,
		"secret":        true,
		"authorization": true,
		"auth":          true,
		"credential":    true,
		"credentials":   true,
		"session":       true,
		"cookie":        true,
	}
	return sensitiveKeys[key]
}
