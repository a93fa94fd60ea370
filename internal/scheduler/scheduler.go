// Package scheduler walks enrolled leads through their campaign steps.
// Coordination is lease-based: a tick claims a due lead with one
// conditional update, so several worker processes can run the same loop
// against the same database without double sends.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/dispatch"
	apperrors "github.com/welldanyogia/webrana-dripmail-backend/internal/errors"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/logger"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
	"github.com/welldanyogia/webrana-dripmail-backend/internal/repository"
)

// Sender delivers one queued outbound message. Satisfied by
// dispatch.Dispatcher.
type Sender interface {
	Send(ctx context.Context, tenantID, messageID uint) (dispatch.DeliveryResult, error)
}

// Config holds scheduler loop settings.
type Config struct {
	// Interval between ticks.
	Interval time.Duration
	// Workers bounds concurrent lead processing within a tick.
	Workers int
	// Lease is how long a claimed lead is invisible to other workers.
	Lease time.Duration
	// RetryCooldown delays the next attempt after a transient failure.
	RetryCooldown time.Duration
	// MaxRetryWindow bounds how long a step may keep retrying before
	// the lead is failed.
	MaxRetryWindow time.Duration
	// BatchLimit caps due leads per tick.
	BatchLimit int
	// TickTimeout bounds one whole tick.
	TickTimeout time.Duration
}

// Scheduler runs the campaign step state machine.
type Scheduler struct {
	accounts  repository.AccountRepository
	campaigns repository.CampaignRepository
	leads     repository.LeadRepository
	outbound  repository.OutboundRepository
	logs      repository.LogRepository
	sender    Sender
	config    Config
	ops       *logger.OpsLogger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// New creates a Scheduler.
func New(
	accounts repository.AccountRepository,
	campaigns repository.CampaignRepository,
	leads repository.LeadRepository,
	outbound repository.OutboundRepository,
	logs repository.LogRepository,
	sender Sender,
	config Config,
	ops *logger.OpsLogger,
) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Lease <= 0 {
		config.Lease = 5 * time.Minute
	}
	if config.RetryCooldown <= 0 {
		config.RetryCooldown = 15 * time.Minute
	}
	if config.MaxRetryWindow <= 0 {
		config.MaxRetryWindow = 24 * time.Hour
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = 100
	}
	if config.TickTimeout <= 0 {
		config.TickTimeout = 5 * time.Minute
	}

	return &Scheduler{
		accounts:  accounts,
		campaigns: campaigns,
		leads:     leads,
		outbound:  outbound,
		logs:      logs,
		sender:    sender,
		config:    config,
		ops:       ops,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background scheduling loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runLoop()

	s.ops.Info("scheduler started",
		slog.Duration("interval", s.config.Interval),
		slog.Int("workers", s.config.Workers),
		slog.Duration("lease", s.config.Lease))
}

// Stop gracefully stops the scheduling loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.ops.Info("scheduler stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ForceTick triggers an immediate tick outside the schedule.
func (s *Scheduler) ForceTick() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		s.ops.Info("force tick called but scheduler is not running")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.TickTimeout)
		defer cancel()
		s.Tick(ctx)
	}()
}

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.config.TickTimeout)
			s.Tick(ctx)
			cancel()
		}
	}
}

// Tick processes every due lead once. Lease conflicts are expected
// under concurrency and are silently skipped.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.leads.Due(ctx, now, s.config.BatchLimit)
	if err != nil {
		s.ops.Error("selecting due leads", slog.Any("error", err))
		return
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for i := range due {
		lead := due[i]
		g.Go(func() error {
			if err := s.processLead(gctx, &lead); err != nil && !apperrors.IsLeaseConflict(err) {
				s.ops.Error("processing lead",
					slog.Uint64("tenant_id", uint64(lead.TenantID)),
					slog.Uint64("lead_id", uint64(lead.ID)),
					slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// processLead claims one due lead and runs a single step transition.
func (s *Scheduler) processLead(ctx context.Context, lead *models.CampaignLead) error {
	if lead.NextStepDue == nil {
		return nil
	}

	// The claim is the concurrency gate: it only succeeds when the due
	// stamp still matches what this tick observed.
	if err := s.leads.Claim(ctx, lead.TenantID, lead.ID, *lead.NextStepDue, s.config.Lease); err != nil {
		return err
	}

	campaign, err := s.campaigns.GetByID(ctx, lead.TenantID, lead.CampaignID)
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignActive {
		// Paused or completed campaigns hold their leads in place; the
		// lease bump already deferred this lead.
		s.logStep(ctx, lead, lead.CurrentStep, models.OutcomeSkipped, "campaign not active")
		return nil
	}

	step := campaign.StepAt(lead.CurrentStep)
	if step == nil {
		return s.completeLead(ctx, lead)
	}

	// A sent row for this (lead, step) means a previous worker crashed
	// after delivery but before advancing; advance instead of resending.
	alreadySent, err := s.outbound.SentExistsForStep(ctx, lead.TenantID, lead.ID, step.StepIndex)
	if err != nil {
		return err
	}
	if alreadySent {
		return s.advanceLead(ctx, lead, campaign)
	}

	account, err := s.accounts.GetByID(ctx, lead.TenantID, campaign.AccountID)
	if err != nil {
		return err
	}

	// A queued row from an earlier attempt is re-dispatched as-is so a
	// retried step owns exactly one pending message.
	message, err := s.outbound.QueuedForStep(ctx, lead.TenantID, lead.ID, step.StepIndex)
	if err != nil {
		return err
	}
	if message == nil {
		rendered := renderStep(step, lead, account)
		leadID := lead.ID
		stepIndex := step.StepIndex
		message = &models.OutboundMessage{
			AccountID:      campaign.AccountID,
			TenantID:       lead.TenantID,
			CampaignLeadID: &leadID,
			StepIndex:      &stepIndex,
			Recipient:      lead.LeadEmail,
			Subject:        rendered.Subject,
			BodyText:       rendered.BodyText,
			BodyHTML:       rendered.BodyHTML,
		}
		if err := s.outbound.Create(ctx, message); err != nil {
			return err
		}
	}

	result, err := s.sender.Send(ctx, lead.TenantID, message.ID)
	if err != nil {
		// Infrastructure failure before or during delivery; treat like
		// a transient delivery failure so the step is retried.
		return s.retryOrFail(ctx, lead, step, message, err)
	}

	switch result.Status {
	case models.OutboundSent:
		s.logStep(ctx, lead, step.StepIndex, models.OutcomeSent,
			fmt.Sprintf("delivered to %s in %d attempt(s)", lead.LeadEmail, result.Attempts))
		return s.advanceLead(ctx, lead, campaign)

	case models.OutboundFailed:
		s.logStep(ctx, lead, step.StepIndex, models.OutcomeFailed, errDetail(result.Err))
		return s.leads.Terminate(ctx, lead.TenantID, lead.ID, models.LeadFailed)

	default:
		return s.retryOrFail(ctx, lead, step, message, result.Err)
	}
}

// advanceLead moves the cursor past a delivered step, completing the
// lead when the campaign has no further step.
func (s *Scheduler) advanceLead(ctx context.Context, lead *models.CampaignLead, campaign *models.Campaign) error {
	next := campaign.StepAt(lead.CurrentStep + 1)
	if next == nil {
		lead.CurrentStep++
		return s.completeLead(ctx, lead)
	}

	nextDue := time.Now().UTC().Add(next.Delay())
	return s.leads.AdvanceStep(ctx, lead.TenantID, lead.ID, lead.CurrentStep+1, nextDue)
}

func (s *Scheduler) completeLead(ctx context.Context, lead *models.CampaignLead) error {
	if err := s.leads.Terminate(ctx, lead.TenantID, lead.ID, models.LeadCompleted); err != nil {
		return err
	}
	s.logStep(ctx, lead, lead.CurrentStep, models.OutcomeCompleted, "sequence finished")
	return nil
}

// retryOrFail reschedules a transiently failed step inside the retry
// window and fails the lead once the window is exhausted, finalizing
// the pending outbound row so no queued message outlives its lead.
func (s *Scheduler) retryOrFail(ctx context.Context, lead *models.CampaignLead, step *models.CampaignStep, message *models.OutboundMessage, cause error) error {
	now := time.Now().UTC()

	if lead.FirstRetryAt != nil && now.Sub(*lead.FirstRetryAt) > s.config.MaxRetryWindow {
		detail := "retry window exhausted: " + errDetail(cause)
		if err := s.outbound.MarkFailed(ctx, lead.TenantID, message.ID, detail, message.AttemptCount); err != nil && !apperrors.IsAlreadyTerminal(err) {
			s.ops.Error("finalizing exhausted outbound message",
				slog.Uint64("tenant_id", uint64(lead.TenantID)),
				slog.Uint64("message_id", uint64(message.ID)),
				slog.Any("error", err))
		}
		s.logStep(ctx, lead, step.StepIndex, models.OutcomeFailed, detail)
		return s.leads.Terminate(ctx, lead.TenantID, lead.ID, models.LeadFailed)
	}

	s.logStep(ctx, lead, step.StepIndex, models.OutcomeRetried, errDetail(cause))
	return s.leads.ScheduleRetry(ctx, lead.TenantID, lead.ID, now.Add(s.config.RetryCooldown), now)
}

// Enroll inserts a lead into a campaign and, when the campaign is
// active, arms it for the first step immediately.
func (s *Scheduler) Enroll(ctx context.Context, tenantID, campaignID uint, email, name string) (*models.CampaignLead, error) {
	campaign, err := s.campaigns.GetByID(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}

	lead := &models.CampaignLead{
		TenantID:   tenantID,
		CampaignID: campaign.ID,
		LeadEmail:  email,
		LeadName:   name,
	}
	if err := s.leads.Enroll(ctx, lead); err != nil {
		return nil, err
	}

	if campaign.Status == models.CampaignActive {
		if err := s.leads.Activate(ctx, tenantID, lead.ID, time.Now().UTC()); err != nil {
			return nil, err
		}
		lead.Status = models.LeadActive
	}

	s.logStep(ctx, lead, 0, models.OutcomeEnrolled, "enrolled "+email)
	return lead, nil
}

func (s *Scheduler) logStep(ctx context.Context, lead *models.CampaignLead, stepIndex int, outcome models.LogOutcome, detail string) {
	leadID := lead.ID
	entry := &models.CampaignLogEntry{
		TenantID:       lead.TenantID,
		CampaignLeadID: &leadID,
		StepIndex:      stepIndex,
		Outcome:        outcome,
		Detail:         detail,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.ops.Error("appending campaign log",
			slog.Uint64("lead_id", uint64(lead.ID)),
			slog.Any("error", err))
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
