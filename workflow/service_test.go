package workflow

import (
	"context"
	"fmt"
	"testing"

	"flowdesk/apperr"
	"flowdesk/config"
	"flowdesk/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

func eventTypes(t *testing.T, db *gorm.DB, workspaceID string) []string {
	t.Helper()
	var events []models.Event
	require.NoError(t, db.Where("workspace_id = ?", workspaceID).
		Order("id ASC").Find(&events).Error)
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestServiceCreate(t *testing.T) {
	db := newTestDB(t)
	adapter := NewNoopAdapter()
	svc := NewService(db, adapter)

	info, err := svc.Create(context.Background(), "ws_1", "Lead intake", twoNodeSpec())
	require.NoError(t, err)
	assert.NotZero(t, info.AutomationID)
	assert.False(t, info.Degraded)

	var automation models.Automation
	require.NoError(t, db.First(&automation, info.AutomationID).Error)
	assert.False(t, automation.Enabled, "new automations start disabled")
	assert.Equal(t, info.EngineWorkflowID, automation.EngineWorkflowID)
	assert.Len(t, automation.Spec.Nodes, 2)

	assert.Equal(t, []string{models.EventWorkflowCreated}, eventTypes(t, db, "ws_1"))
}

func TestServiceCreateRejectsInvalidGraph(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, NewNoopAdapter())

	bad := twoNodeSpec()
	bad.Nodes = nil
	_, err := svc.Create(context.Background(), "ws_1", "Broken", bad)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	var count int64
	db.Model(&models.Automation{}).Count(&count)
	assert.Zero(t, count)
}

func TestServiceRunRequiresEnabled(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, NewNoopAdapter())

	info, err := svc.Create(context.Background(), "ws_1", "Lead intake", twoNodeSpec())
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), "ws_1", info.AutomationID, nil)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotEnabled))

	require.NoError(t, svc.Enable(context.Background(), "ws_1", info.AutomationID))
	run, err := svc.Run(context.Background(), "ws_1", info.AutomationID,
		map[string]interface{}{"lead": "jane@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)

	assert.Equal(t, []string{
		models.EventWorkflowCreated,
		models.EventWorkflowEnabled,
		models.EventWorkflowRun,
	}, eventTypes(t, db, "ws_1"))
}

func TestServiceEnableIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	adapter := NewNoopAdapter()
	svc := NewService(db, adapter)

	info, err := svc.Create(context.Background(), "ws_1", "Lead intake", twoNodeSpec())
	require.NoError(t, err)

	require.NoError(t, svc.Enable(context.Background(), "ws_1", info.AutomationID))
	require.NoError(t, svc.Enable(context.Background(), "ws_1", info.AutomationID))

	// Second enable must not emit another event.
	assert.Equal(t, []string{
		models.EventWorkflowCreated,
		models.EventWorkflowEnabled,
	}, eventTypes(t, db, "ws_1"))
	assert.True(t, adapter.Active[info.EngineWorkflowID])
}

func TestServiceDisable(t *testing.T) {
	db := newTestDB(t)
	adapter := NewNoopAdapter()
	svc := NewService(db, adapter)

	info, err := svc.Create(context.Background(), "ws_1", "Lead intake", twoNodeSpec())
	require.NoError(t, err)
	require.NoError(t, svc.Enable(context.Background(), "ws_1", info.AutomationID))
	require.NoError(t, svc.Disable(context.Background(), "ws_1", info.AutomationID))

	var automation models.Automation
	require.NoError(t, db.First(&automation, info.AutomationID).Error)
	assert.False(t, automation.Enabled)
	assert.False(t, adapter.Active[info.EngineWorkflowID])
}

func TestServiceWorkspaceScoping(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, NewNoopAdapter())

	info, err := svc.Create(context.Background(), "ws_1", "Lead intake", twoNodeSpec())
	require.NoError(t, err)

	err = svc.Enable(context.Background(), "ws_other", info.AutomationID)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func TestServiceList(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, NewNoopAdapter())

	_, err := svc.Create(context.Background(), "ws_1", "First", twoNodeSpec())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "ws_2", "Other workspace", twoNodeSpec())
	require.NoError(t, err)

	automations, err := svc.List("ws_1")
	require.NoError(t, err)
	require.Len(t, automations, 1)
	assert.Equal(t, "First", automations[0].Name)
}
