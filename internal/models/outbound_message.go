package models

import (
	"time"
)

// OutboundStatus is the delivery lifecycle of an OutboundMessage.
type OutboundStatus string

const (
	OutboundQueued OutboundStatus = "queued"
	OutboundSent   OutboundStatus = "sent"
	OutboundFailed OutboundStatus = "failed"
)

// Terminal reports whether no further delivery attempt may change the status.
func (s OutboundStatus) Terminal() bool {
	return s == OutboundSent || s == OutboundFailed
}

// OutboundMessage represents a single email to be delivered through a
// mail account. The row id doubles as the dispatch idempotency key: the
// dispatcher refuses to transmit a message whose status is already
// terminal, and the queued->sent transition is the single commit point.
type OutboundMessage struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	AccountID uint `gorm:"not null;index" json:"account_id"`
	TenantID  uint `gorm:"not null;index" json:"tenant_id"`

	// Campaign provenance; nil for direct compose.
	CampaignLeadID *uint `gorm:"index:idx_outbound_lead_step" json:"campaign_lead_id,omitempty"`
	StepIndex      *int  `gorm:"index:idx_outbound_lead_step" json:"step_index,omitempty"`

	Recipient string `gorm:"not null;size:255" json:"recipient"`
	Subject   string `gorm:"size:998" json:"subject"`
	BodyText  string `json:"body_text,omitempty"`
	BodyHTML  string `json:"body_html,omitempty"`

	Status       OutboundStatus `gorm:"not null;size:16;default:queued;index" json:"status"`
	AttemptCount int            `gorm:"default:0" json:"attempt_count"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	ErrorDetail  string         `gorm:"size:2000" json:"error_detail,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Account MailAccount `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for OutboundMessage
func (OutboundMessage) TableName() string {
	return "outbound_messages"
}
