package models

import (
	"time"
)

// MailAccount represents a tenant-owned mail account used for outbound
// dispatch (SMTP) and inbound synchronization (IMAP). The credential is
// stored only as a vault-encrypted blob; plaintext never reaches the
// database.
type MailAccount struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	TenantID uint `gorm:"not null;index" json:"tenant_id"`

	Name        string `gorm:"size:255" json:"name,omitempty"`
	FromAddress string `gorm:"not null;size:255" json:"from_address"`
	Username    string `gorm:"not null;size:255" json:"username"`

	SMTPHost string `gorm:"not null;size:255" json:"smtp_host"`
	SMTPPort int    `gorm:"not null" json:"smtp_port"`
	SMTPTLS  bool   `gorm:"default:true" json:"smtp_tls"`

	IMAPHost string `gorm:"not null;size:255" json:"imap_host"`
	IMAPPort int    `gorm:"not null" json:"imap_port"`
	IMAPTLS  bool   `gorm:"default:true" json:"imap_tls"`

	// EncryptedSecret and SecretIV together form the vault blob. They are
	// stored as two columns so the ciphertext boundary is never parsed out
	// of a delimited string.
	EncryptedSecret []byte `gorm:"not null" json:"-"`
	SecretIV        []byte `gorm:"not null" json:"-"`

	// IsActive gates both dispatch and sync. Accounts are deactivated
	// rather than deleted so message history keeps a valid owner.
	IsActive bool `gorm:"default:true;index" json:"is_active"`

	// LastSyncUID is the sync watermark: the highest IMAP UID already
	// persisted for this account. It only ever moves forward.
	LastSyncUID uint32 `gorm:"default:0" json:"last_sync_uid"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	InboundMessages  []InboundMessage  `gorm:"foreignKey:AccountID" json:"-"`
	OutboundMessages []OutboundMessage `gorm:"foreignKey:AccountID" json:"-"`
}

// TableName returns the table name for MailAccount
func (MailAccount) TableName() string {
	return "mail_accounts"
}

// SMTPAddr returns the host:port dial address for outbound dispatch.
func (a *MailAccount) SMTPAddr() string {
	return joinHostPort(a.SMTPHost, a.SMTPPort)
}

// IMAPAddr returns the host:port dial address for mailbox sync.
func (a *MailAccount) IMAPAddr() string {
	return joinHostPort(a.IMAPHost, a.IMAPPort)
}
