package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/api"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/config"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/database"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/dispatch"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/imapsync"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/logger"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/repository"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/scheduler"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/storage"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/vault"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ops := logger.NewOpsLogger(logger.ParseLevel(cfg.LogLevel))
	log := ops.GetLogger()
	cfg.LogConfig(log)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	credentialVault, err := vault.New(cfg.VaultKey)
	if err != nil {
		return fmt.Errorf("initializing vault: %w", err)
	}

	accounts := repository.NewAccountRepository(db, credentialVault)
	campaigns := repository.NewCampaignRepository(db)
	leads := repository.NewLeadRepository(db)
	outbound := repository.NewOutboundRepository(db)
	inbound := repository.NewInboundRepository(db)
	logs := repository.NewLogRepository(db)

	hub := websocket.NewHub(log)
	go hub.Run()

	dispatcher := dispatch.New(accounts, outbound,
		dispatch.NewSMTPTransport(cfg.NetworkTimeout),
		dispatch.Config{
			MinSendInterval: cfg.MinSendInterval,
			MaxAttempts:     cfg.MaxSendAttempts,
			BackoffBase:     cfg.SendBackoffBase,
			NetworkTimeout:  cfg.NetworkTimeout,
		}, ops)

	sched := scheduler.New(accounts, campaigns, leads, outbound, logs, dispatcher,
		scheduler.Config{
			Interval:       cfg.SchedulerInterval,
			Workers:        cfg.SchedulerWorkers,
			Lease:          cfg.LeaseDuration,
			RetryCooldown:  cfg.RetryCooldown,
			MaxRetryWindow: cfg.MaxRetryWindow,
		}, ops)

	var archive storage.Archive
	if cfg.ArchiveDir != "" {
		archive, err = storage.NewLocalArchive(cfg.ArchiveDir)
		if err != nil {
			return fmt.Errorf("initializing message archive: %w", err)
		}
	}

	syncWorker := imapsync.NewWorker(accounts, inbound, leads, logs,
		imapsync.NewIMAPFetcher(0, cfg.NetworkTimeout), hub,
		imapsync.Config{
			Interval: cfg.SyncInterval,
			Workers:  cfg.SyncWorkers,
			Folder:   cfg.SyncFolder,
			Archive:  archive,
		}, ops)

	sched.Start()
	defer sched.Stop()
	syncWorker.Start()
	defer syncWorker.Stop()

	router := api.NewRouter(&api.RouterConfig{
		DB:             db,
		Inbound:        inbound,
		Campaigns:      campaigns,
		Enroller:       sched,
		Hub:            hub,
		Scheduler:      sched,
		SyncWorker:     syncWorker,
		ForceTick:      sched.ForceTick,
		ForceSync:      syncWorker.ForceSync,
		Logger:         log,
		APIKey:         cfg.APIKey,
		AllowedOrigins: splitOrigins(cfg.AllowedOrigins),
		AppEnv:         cfg.AppEnv,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info("api listening", "addr", addr)
		if err := router.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error("api shutdown", "error", err)
	}

	// Deferred Stop calls drain the background loops before the
	// database connection closes.
	return nil
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
