package models

import "gorm.io/gorm"

// Contact represents a person known to a workspace, keyed by email.
// Contacts are tombstoned via gorm's soft delete, never hard-removed, so the
// audit trail in events stays resolvable.
type Contact struct {
	gorm.Model
	WorkspaceID string `gorm:"not null;index:idx_contacts_workspace_email" json:"workspace_id"`
	Email       string `gorm:"not null;index:idx_contacts_workspace_email" json:"email"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`

	// Free-form attributes, shallow-merged on upsert
	Meta map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"meta"`
}
