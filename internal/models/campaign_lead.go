package models

import (
	"time"
)

// LeadStatus is the per-lead scheduling state machine:
// pending -> active -> {completed | failed | opted_out}.
type LeadStatus string

const (
	LeadPending   LeadStatus = "pending"
	LeadActive    LeadStatus = "active"
	LeadCompleted LeadStatus = "completed"
	LeadFailed    LeadStatus = "failed"
	LeadOptedOut  LeadStatus = "opted_out"
)

// Terminal reports whether the scheduler will never touch the lead again.
func (s LeadStatus) Terminal() bool {
	return s == LeadCompleted || s == LeadFailed || s == LeadOptedOut
}

// CampaignLead is the durable cursor of one lead walking a campaign's
// step sequence. Invariant: NextStepDue is nil exactly when the status
// is terminal. Rows are never deleted; terminal leads remain for audit.
type CampaignLead struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	CampaignID uint `gorm:"not null;index;uniqueIndex:idx_lead_campaign_email" json:"campaign_id"`
	TenantID   uint `gorm:"not null;index" json:"tenant_id"`

	LeadEmail string `gorm:"not null;size:255;index;uniqueIndex:idx_lead_campaign_email" json:"lead_email"`
	LeadName  string `gorm:"size:255" json:"lead_name,omitempty"`

	Status      LeadStatus `gorm:"not null;size:16;default:pending;index" json:"status"`
	CurrentStep int        `gorm:"not null;default:0" json:"current_step"`

	// NextStepDue doubles as the scheduler's lease: claiming a lead bumps
	// it forward atomically so a concurrent tick cannot pick it up again.
	NextStepDue *time.Time `gorm:"index" json:"next_step_due,omitempty"`

	// FirstRetryAt marks the start of the transient-failure retry window
	// for the current step; nil when the step has not failed transiently.
	FirstRetryAt *time.Time `json:"first_retry_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Campaign Campaign `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for CampaignLead
func (CampaignLead) TableName() string {
	return "campaign_leads"
}
