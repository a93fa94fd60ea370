package models

import (
	"fmt"
	"time"
)

// InboundMessage represents an email pulled from a mail account's inbox
// by the sync worker. The (account_id, message_id) pair is unique so a
// re-sync of the same mailbox never duplicates rows.
type InboundMessage struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	AccountID uint `gorm:"not null;index;uniqueIndex:idx_inbound_account_message" json:"account_id"`
	TenantID  uint `gorm:"not null;index" json:"tenant_id"`

	Folder string `gorm:"not null;size:255;default:INBOX" json:"folder"`

	// MessageID is the protocol-level Message-ID header; UID is the IMAP
	// UID the message carried when fetched. Dedup keys off MessageID
	// because UIDs can be renumbered by the server.
	MessageID string `gorm:"not null;size:998;uniqueIndex:idx_inbound_account_message" json:"message_id"`
	UID       uint32 `gorm:"not null" json:"uid"`

	Subject     string `json:"subject,omitempty"`
	SenderEmail string `gorm:"not null;size:255;index" json:"sender_email"`
	SenderName  string `gorm:"size:255" json:"sender_name,omitempty"`
	Recipients  string `gorm:"size:2000" json:"recipients,omitempty"`
	Snippet     string `gorm:"size:255" json:"snippet,omitempty"`
	BodyText    string `json:"body_text,omitempty"`
	BodyHTML    string `json:"body_html,omitempty"`
	RawHeaders  string `json:"raw_headers,omitempty"`

	// RawPath points at the archived original bytes, empty when
	// archiving is disabled.
	RawPath string `gorm:"size:512" json:"raw_path,omitempty"`

	IsRead     bool      `gorm:"default:false" json:"is_read"`
	ReceivedAt time.Time `gorm:"not null;index" json:"received_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	Account MailAccount `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for InboundMessage
func (InboundMessage) TableName() string {
	return "inbound_messages"
}

// InboundMessageListItem is a lightweight version for inbox list views
type InboundMessageListItem struct {
	ID          uint      `json:"id"`
	AccountID   uint      `json:"account_id"`
	Folder      string    `json:"folder"`
	SenderEmail string    `json:"sender_email"`
	SenderName  string    `json:"sender_name,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Snippet     string    `json:"snippet,omitempty"`
	IsRead      bool      `json:"is_read"`
	ReceivedAt  time.Time `json:"received_at"`
}

func joinHostPort(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
