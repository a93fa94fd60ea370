// Package imapsync pulls new mailbox messages into local storage. Each
// account carries a UID watermark; a sync tick fetches everything above
// it, persists with dedupe, and only then advances the watermark, so a
// crashed tick re-fetches instead of losing mail.
package imapsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/logger"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/repository"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/storage"
)

// Notifier receives newly stored inbound messages, typically to push
// them to connected clients. Implementations must not block.
type Notifier interface {
	NotifyInbound(message *models.InboundMessage)
}

// Config holds sync worker settings.
type Config struct {
	// Interval between sync ticks.
	Interval time.Duration
	// Workers bounds concurrent account syncs within a tick.
	Workers int
	// Folder to sync, usually INBOX.
	Folder string
	// TickTimeout bounds one whole tick.
	TickTimeout time.Duration
	// Archive keeps the original message bytes on disk. Nil disables
	// archiving.
	Archive storage.Archive
}

// Worker periodically syncs all active accounts.
type Worker struct {
	accounts repository.AccountRepository
	inbound  repository.InboundRepository
	leads    repository.LeadRepository
	logs     repository.LogRepository
	fetcher  Fetcher
	notifier Notifier
	config   Config
	ops      *logger.OpsLogger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewWorker creates a sync worker. notifier may be nil.
func NewWorker(
	accounts repository.AccountRepository,
	inbound repository.InboundRepository,
	leads repository.LeadRepository,
	logs repository.LogRepository,
	fetcher Fetcher,
	notifier Notifier,
	config Config,
	ops *logger.OpsLogger,
) *Worker {
	if config.Interval <= 0 {
		config.Interval = 3 * time.Minute
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Folder == "" {
		config.Folder = "INBOX"
	}
	if config.TickTimeout <= 0 {
		config.TickTimeout = 5 * time.Minute
	}

	return &Worker{
		accounts: accounts,
		inbound:  inbound,
		leads:    leads,
		logs:     logs,
		fetcher:  fetcher,
		notifier: notifier,
		config:   config,
		ops:      ops,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sync loop.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.syncLoop()

	w.ops.Info("sync worker started",
		slog.Duration("interval", w.config.Interval),
		slog.Int("workers", w.config.Workers),
		slog.String("folder", w.config.Folder))
}

// Stop gracefully stops the background sync loop.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	w.ops.Info("sync worker stopped")
}

// IsRunning reports whether the loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// ForceSync triggers an immediate tick outside the schedule.
func (w *Worker) ForceSync() {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if !running {
		w.ops.Info("force sync called but worker is not running")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.config.TickTimeout)
		defer cancel()
		w.SyncAll(ctx)
	}()
}

func (w *Worker) syncLoop() {
	defer w.wg.Done()

	w.tick()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Worker) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.TickTimeout)
	defer cancel()
	w.SyncAll(ctx)
}

// SyncAll syncs every active account, bounded by the worker limit.
// Failures are per account; one broken mailbox never blocks the rest.
func (w *Worker) SyncAll(ctx context.Context) {
	accounts, err := w.accounts.ListAllActive(ctx)
	if err != nil {
		w.ops.Error("listing accounts for sync", slog.Any("error", err))
		return
	}
	if len(accounts) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Workers)

	for i := range accounts {
		account := accounts[i]
		g.Go(func() error {
			if err := w.SyncAccount(gctx, &account); err != nil {
				w.ops.SyncFailure(account.TenantID, account.ID, syncPhase(err), err.Error())
			}
			// Errors are reported, never propagated, so sibling
			// accounts keep syncing.
			return nil
		})
	}
	_ = g.Wait()
}

// SyncAccount runs one watermark-based sync pass for a single account.
// The watermark moves only after the whole fetched batch is persisted.
func (w *Worker) SyncAccount(ctx context.Context, account *models.MailAccount) error {
	secret, err := w.accounts.Credential(ctx, account.TenantID, account.ID)
	if err != nil {
		if apperrors.IsVaultError(err) {
			w.ops.VaultFailure(account.TenantID, account.ID, err.Error())
		}
		return apperrors.NewSyncError(err, account.ID, "credential")
	}

	raws, err := w.fetcher.Fetch(ctx, account, secret, w.config.Folder, account.LastSyncUID)
	if err != nil {
		return err
	}
	if len(raws) == 0 {
		return nil
	}

	stored := 0
	skipped := 0
	highest := account.LastSyncUID
	for i := range raws {
		raw := &raws[i]

		message, parseErr := ParseInbound(account, w.config.Folder, raw)
		if parseErr != nil {
			// Unparsable mail is logged and skipped; it still counts
			// toward the watermark so it is not re-fetched forever.
			w.ops.Error("skipping unparsable message",
				slog.Uint64("account_id", uint64(account.ID)),
				slog.Uint64("uid", uint64(raw.UID)),
				slog.Any("error", parseErr))
			skipped++
			highest = raw.UID
			continue
		}

		if w.config.Archive != nil {
			path, archiveErr := w.config.Archive.Store(account.TenantID, account.ID, raw.UID, raw.Body)
			if archiveErr != nil {
				// The parsed copy still lands in the database, only
				// the original bytes are lost.
				w.ops.Error("archiving raw message",
					slog.Uint64("account_id", uint64(account.ID)),
					slog.Uint64("uid", uint64(raw.UID)),
					slog.Any("error", archiveErr))
			} else {
				message.RawPath = path
			}
		}

		created, storeErr := w.inbound.CreateIfAbsent(ctx, message)
		if storeErr != nil {
			// Abort without advancing the watermark; the next tick
			// re-fetches this batch and dedupe absorbs the overlap.
			return apperrors.NewSyncError(storeErr, account.ID, "persist")
		}
		highest = raw.UID

		if !created {
			continue
		}
		stored++

		w.handleReply(ctx, account, message)
		if w.notifier != nil {
			w.notifier.NotifyInbound(message)
		}
	}

	if highest > account.LastSyncUID {
		if err := w.accounts.UpdateWatermark(ctx, account.TenantID, account.ID, highest); err != nil {
			return apperrors.NewSyncError(err, account.ID, "watermark")
		}
		account.LastSyncUID = highest
	}

	w.ops.Info("account synced",
		slog.Uint64("tenant_id", uint64(account.TenantID)),
		slog.Uint64("account_id", uint64(account.ID)),
		slog.Int("stored", stored),
		slog.Int("skipped", skipped),
		slog.Uint64("watermark", uint64(highest)))
	return nil
}

// handleReply opts a lead out of its campaign when the sender is an
// enrolled lead and the step they are replying to exits on reply.
func (w *Worker) handleReply(ctx context.Context, account *models.MailAccount, message *models.InboundMessage) {
	if message.SenderEmail == "" || message.SenderEmail == account.FromAddress {
		return
	}

	leads, err := w.leads.ActiveByEmail(ctx, account.TenantID, message.SenderEmail)
	if err != nil {
		w.ops.Error("lead lookup for reply detection",
			slog.Uint64("tenant_id", uint64(account.TenantID)),
			slog.Any("error", err))
		return
	}

	for i := range leads {
		lead := &leads[i]
		if lead.CurrentStep == 0 {
			// Nothing was sent to this lead yet.
			continue
		}
		step := lead.Campaign.StepAt(lead.CurrentStep - 1)
		if step == nil || !step.ExitOnReply {
			continue
		}

		if err := w.leads.Terminate(ctx, account.TenantID, lead.ID, models.LeadOptedOut); err != nil {
			if !apperrors.IsNotFound(err) {
				w.ops.Error("opting out replied lead",
					slog.Uint64("lead_id", uint64(lead.ID)),
					slog.Any("error", err))
			}
			continue
		}

		leadID := lead.ID
		_ = w.logs.Append(ctx, &models.CampaignLogEntry{
			TenantID:       account.TenantID,
			CampaignLeadID: &leadID,
			StepIndex:      lead.CurrentStep - 1,
			Outcome:        models.OutcomeOptedOut,
			Detail:         "reply received from " + message.SenderEmail,
		})

		w.ops.Info("lead opted out on reply",
			slog.Uint64("tenant_id", uint64(account.TenantID)),
			slog.Uint64("campaign_id", uint64(lead.CampaignID)),
			slog.Uint64("lead_id", uint64(lead.ID)))
	}
}

func syncPhase(err error) string {
	var syncErr *apperrors.SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Phase
	}
	return "sync"
}
