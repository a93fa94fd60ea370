package models

import (
	"time"
)

// LogOutcome classifies a campaign audit event.
type LogOutcome string

const (
	OutcomeEnrolled  LogOutcome = "enrolled"
	OutcomeSent      LogOutcome = "sent"
	OutcomeFailed    LogOutcome = "failed"
	OutcomeSkipped   LogOutcome = "skipped"
	OutcomeRetried   LogOutcome = "retried"
	OutcomeCompleted LogOutcome = "completed"
	OutcomeOptedOut  LogOutcome = "opted_out"
)

// CampaignLogEntry is the append-only audit trail of scheduler
// decisions. CampaignLeadID is nullable so the trail survives a lead
// being anonymized.
type CampaignLogEntry struct {
	ID             uint  `gorm:"primaryKey" json:"id"`
	TenantID       uint  `gorm:"not null;index" json:"tenant_id"`
	CampaignLeadID *uint `gorm:"index" json:"campaign_lead_id,omitempty"`

	StepIndex int        `gorm:"not null" json:"step_index"`
	Outcome   LogOutcome `gorm:"not null;size:16;index" json:"outcome"`
	Detail    string     `gorm:"size:2000" json:"detail,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name for CampaignLogEntry
func (CampaignLogEntry) TableName() string {
	return "campaign_log_entries"
}
