package models

import (
	"time"
)

// CampaignStatus is the lifecycle of a Campaign definition.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Campaign is a tenant-owned drip sequence: an ordered list of timed
// steps applied to each enrolled lead. Campaign and step rows are
// written by the CRM collaborator; the scheduler only reads them.
type Campaign struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	TenantID uint `gorm:"not null;index" json:"tenant_id"`

	// AccountID selects the mail account campaign sends go through.
	AccountID uint `gorm:"not null;index" json:"account_id"`

	Name   string         `gorm:"not null;size:255" json:"name"`
	Status CampaignStatus `gorm:"not null;size:16;default:draft;index" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Steps []CampaignStep `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	Leads []CampaignLead `gorm:"foreignKey:CampaignID" json:"-"`
}

// TableName returns the table name for Campaign
func (Campaign) TableName() string {
	return "campaigns"
}

// StepAt returns the step with the given index, or nil when the
// sequence is exhausted. Steps are expected preloaded in index order.
func (c *Campaign) StepAt(index int) *CampaignStep {
	for i := range c.Steps {
		if c.Steps[i].StepIndex == index {
			return &c.Steps[i]
		}
	}
	return nil
}

// CampaignStep defines one message in a drip sequence. DelayHours is
// measured from the completion of the previous step (zero for the
// first step means send immediately on enrollment).
type CampaignStep struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	CampaignID uint `gorm:"not null;index;uniqueIndex:idx_step_campaign_index" json:"campaign_id"`
	StepIndex  int  `gorm:"not null;uniqueIndex:idx_step_campaign_index" json:"step_index"`

	DelayHours int `gorm:"not null;default:0" json:"delay_hours"`

	SubjectTemplate  string `gorm:"not null;size:998" json:"subject_template"`
	BodyTextTemplate string `json:"body_text_template,omitempty"`
	BodyHTMLTemplate string `json:"body_html_template,omitempty"`

	// ExitOnReply opts the lead out of the remaining sequence when a
	// reply from the lead is seen by the sync worker.
	ExitOnReply bool `gorm:"default:false" json:"exit_on_reply"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for CampaignStep
func (CampaignStep) TableName() string {
	return "campaign_steps"
}

// Delay returns the step delay as a duration.
func (s *CampaignStep) Delay() time.Duration {
	return time.Duration(s.DelayHours) * time.Hour
}
