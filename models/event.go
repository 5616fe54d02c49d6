package models

import (
	"time"
)

// Event types emitted by the domain services.
const (
	EventContactCreated   = "contact.created"
	EventActivityCreated  = "crm.activity.created"
	EventCompanyUpserted  = "crm.company.upserted"
	EventEmailInbound     = "email.inbound"
	EventDraftCreated     = "email.draft.created"
	EventSequenceCreated  = "email.sequence.created"
	EventWorkflowCreated  = "workflow.created"
	EventWorkflowEnabled  = "workflow.enabled"
	EventWorkflowDisabled = "workflow.disabled"
	EventWorkflowRun      = "workflow.run.started"
)

// Event is the append-only audit record. Rows are write-once: nothing in the
// codebase updates or deletes them, and there is intentionally no DeletedAt.
type Event struct {
	ID          uint                   `gorm:"primarykey" json:"id"`
	WorkspaceID string                 `gorm:"not null;index" json:"workspace_id"`
	Type        string                 `gorm:"not null;index" json:"type"`
	Data        map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"data"`
	CreatedAt   time.Time              `json:"created_at"`
}
