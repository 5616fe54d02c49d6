package models

import "gorm.io/gorm"

// Sequence represents an automated outreach sequence created through the
// email.createSequence capability.
type Sequence struct {
	gorm.Model
	WorkspaceID string `gorm:"not null;index" json:"workspace_id"`
	Name        string `gorm:"not null" json:"name"`
	Status      string `gorm:"default:'draft'" json:"status"` // draft, active, paused

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep is one step in a sequence.
type SequenceStep struct {
	gorm.Model
	SequenceID uint   `gorm:"not null;index" json:"sequence_id"`
	StepNumber int    `gorm:"not null" json:"step_number"`
	DelayDays  int    `gorm:"default:0" json:"delay_days"`
	Subject    string `json:"subject"`
	Body       string `gorm:"type:text" json:"body"`
}
