package models

import (
	"flowdesk/graph"

	"gorm.io/gorm"
)

// Automation is a workflow definition registered with the external
// orchestration engine. Enabled is the local activation flag; it is flipped
// only after an engine call was attempted, so it tracks what we asked the
// engine to do (see workflow.Service).
type Automation struct {
	gorm.Model
	WorkspaceID      string `gorm:"not null;index" json:"workspace_id"`
	Name             string `gorm:"not null" json:"name"`
	Backend          string `gorm:"not null" json:"backend"`
	EngineWorkflowID string `gorm:"index" json:"engine_workflow_id"`
	Enabled          bool   `gorm:"default:false" json:"enabled"`

	// Node/edge graph stored as JSON
	Spec graph.Spec `gorm:"type:jsonb;serializer:json" json:"spec"`
}
