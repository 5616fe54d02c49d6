package models

import "gorm.io/gorm"

// Mailbox is the receiving identity for a workspace. Inbound mail is routed
// to a workspace by matching the recipient address against FromEmail.
type Mailbox struct {
	gorm.Model
	WorkspaceID string `gorm:"not null;index" json:"workspace_id"`
	FromEmail   string `gorm:"not null;index" json:"from_email"`
	FromName    string `json:"from_name"`

	// Relations
	Threads []Thread `gorm:"foreignKey:MailboxID" json:"threads,omitempty"`
}
