package models

import "gorm.io/gorm"

// RecordEvent appends one audit event. Events are the only historical record
// of side effects, so every mutating service call goes through here exactly
// once.
func RecordEvent(db *gorm.DB, workspaceID, eventType string, data map[string]interface{}) error {
	return db.Create(&Event{
		WorkspaceID: workspaceID,
		Type:        eventType,
		Data:        data,
	}).Error
}
