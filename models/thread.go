package models

import (
	"time"

	"gorm.io/gorm"
)

// Thread statuses
const (
	ThreadOpen   = "open"
	ThreadClosed = "closed"
)

// Message directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message lifecycle statuses. A message only moves forward along
// received -> draft -> approved -> sent; failed is reachable from any
// non-terminal status and nothing moves after sent except recording failure.
const (
	MessageReceived = "received"
	MessageDraft    = "draft"
	MessageApproved = "approved"
	MessageSent     = "sent"
	MessageFailed   = "failed"
)

// Thread is a single conversation on one mailbox.
type Thread struct {
	gorm.Model
	WorkspaceID   string     `gorm:"not null;index" json:"workspace_id"`
	MailboxID     uint       `gorm:"not null;index" json:"mailbox_id"`
	ContactID     *uint      `gorm:"index" json:"contact_id"`
	Subject       string     `json:"subject"`
	Status        string     `gorm:"default:'open'" json:"status"`
	LastMessageAt *time.Time `json:"last_message_at"`

	// Relations
	Mailbox  Mailbox   `json:"-"`
	Messages []Message `gorm:"foreignKey:ThreadID" json:"messages,omitempty"`
}

// Message belongs to exactly one thread. ProviderMessageID is the transport's
// identifier and stays empty until the message is actually sent (inbound
// messages carry the provider ID they arrived with). InReplyTo is a weak
// reference by external message identifier, used to stitch reply chains.
type Message struct {
	gorm.Model
	WorkspaceID       string `gorm:"not null;index" json:"workspace_id"`
	ThreadID          uint   `gorm:"not null;index" json:"thread_id"`
	Direction         string `gorm:"not null" json:"direction"`
	Status            string `gorm:"not null;default:'received'" json:"status"`
	ProviderMessageID string `gorm:"index" json:"provider_message_id"`
	InReplyTo         string `json:"in_reply_to"`
	Subject           string `json:"subject"`
	Text              string `gorm:"type:text" json:"text"`
	HTML              string `gorm:"type:text" json:"html"`
	FailureReason     string `json:"failure_reason,omitempty"`

	Headers     []MessageHeader          `gorm:"type:jsonb;serializer:json" json:"headers,omitempty"`
	Attachments []map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"attachments,omitempty"`

	// Relations
	Thread Thread `json:"-"`
}

// MessageHeader mirrors the provider webhook's name/value header pairs.
type MessageHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}
