package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the worker process
type Config struct {
	// Database
	DatabaseURL string

	// Credential vault: hex-encoded 32-byte AES key
	VaultKey []byte

	// API
	APIPort        int
	APIKey         string
	AllowedOrigins string
	AppEnv         string

	// Scheduler
	SchedulerInterval time.Duration
	SchedulerWorkers  int
	// LeaseDuration is how far a claim bumps next_step_due before I/O
	LeaseDuration time.Duration
	// RetryCooldown reschedules a step after a transient delivery failure
	RetryCooldown time.Duration
	// MaxRetryWindow forces a lead to failed once a step has been
	// retrying transiently for this long
	MaxRetryWindow time.Duration

	// Sync worker
	SyncInterval time.Duration
	SyncWorkers  int
	SyncFolder   string
	// ArchiveDir keeps raw fetched messages on disk; empty disables
	// archiving.
	ArchiveDir string

	// Dispatch
	MinSendInterval time.Duration
	MaxSendAttempts int
	SendBackoffBase time.Duration
	NetworkTimeout  time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	// Required: VAULT_KEY (hex-encoded 32 bytes)
	keyHex := os.Getenv("VAULT_KEY")
	if keyHex == "" {
		return nil, fmt.Errorf("VAULT_KEY is required but not set")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("VAULT_KEY must be hex-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("VAULT_KEY must decode to 32 bytes, got %d", len(key))
	}
	cfg.VaultKey = key

	cfg.APIPort, err = intEnv("API_PORT", 8080)
	if err != nil {
		return nil, err
	}

	cfg.SchedulerInterval, err = durationEnv("SCHEDULER_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.SchedulerWorkers, err = intEnv("SCHEDULER_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	cfg.LeaseDuration, err = durationEnv("LEASE_DURATION", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.RetryCooldown, err = durationEnv("RETRY_COOLDOWN", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.MaxRetryWindow, err = durationEnv("MAX_RETRY_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg.SyncInterval, err = durationEnv("SYNC_INTERVAL", 3*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.SyncWorkers, err = intEnv("SYNC_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	cfg.SyncFolder = os.Getenv("SYNC_FOLDER")
	if cfg.SyncFolder == "" {
		cfg.SyncFolder = "INBOX"
	}
	cfg.ArchiveDir = os.Getenv("ARCHIVE_DIR")

	cfg.MinSendInterval, err = durationEnv("MIN_SEND_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.MaxSendAttempts, err = intEnv("MAX_SEND_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	cfg.SendBackoffBase, err = durationEnv("SEND_BACKOFF_BASE", 2*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.NetworkTimeout, err = durationEnv("NETWORK_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	// LOG_LEVEL (default: info)
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// Security configuration
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = os.Getenv("APP_ENV")
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production-specific validation
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if len(c.VaultKey) != 32 {
		return fmt.Errorf("VaultKey must be 32 bytes")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.SchedulerInterval <= 0 || c.SyncInterval <= 0 {
		return fmt.Errorf("scheduler and sync intervals must be positive")
	}
	if c.SchedulerWorkers <= 0 || c.SyncWorkers <= 0 {
		return fmt.Errorf("worker pool sizes must be positive")
	}
	if c.MaxSendAttempts <= 0 {
		return fmt.Errorf("MaxSendAttempts must be positive")
	}
	if c.LeaseDuration <= 0 {
		return fmt.Errorf("LeaseDuration must be positive")
	}
	if c.MaxRetryWindow < c.RetryCooldown {
		return fmt.Errorf("MaxRetryWindow must be at least RetryCooldown")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Duration("scheduler_interval", c.SchedulerInterval),
		slog.Int("scheduler_workers", c.SchedulerWorkers),
		slog.Duration("lease_duration", c.LeaseDuration),
		slog.Duration("retry_cooldown", c.RetryCooldown),
		slog.Duration("max_retry_window", c.MaxRetryWindow),
		slog.Duration("sync_interval", c.SyncInterval),
		slog.Int("sync_workers", c.SyncWorkers),
		slog.String("sync_folder", c.SyncFolder),
		slog.Duration("min_send_interval", c.MinSendInterval),
		slog.Int("max_send_attempts", c.MaxSendAttempts),
		slog.Duration("network_timeout", c.NetworkTimeout),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("vault_key_set", len(c.VaultKey) > 0),
	)
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", name, err)
	}
	return v, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", name, err)
	}
	return v, nil
}
