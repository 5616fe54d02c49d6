package workflow

import (
	"context"
	"log"
	"os"

	"flowdesk/apperr"
	"flowdesk/graph"
	"flowdesk/models"

	"gorm.io/gorm"
)

// Service owns Automation rows and keeps them in step with the engine. The
// local Enabled flag is authoritative; engine calls are best-effort.
type Service struct {
	DB      *gorm.DB
	Adapter Adapter
	Logger  *log.Logger
}

func NewService(db *gorm.DB, adapter Adapter) *Service {
	return &Service{
		DB:      db,
		Adapter: adapter,
		Logger:  log.New(os.Stdout, "WORKFLOW: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// CreateInfo describes a newly created automation.
type CreateInfo struct {
	AutomationID     uint
	EngineWorkflowID string
	Degraded         bool
}

// Create validates the graph, deploys it to the engine and persists the
// automation disabled. New automations never fire until explicitly enabled.
func (s *Service) Create(ctx context.Context, workspaceID, name string, spec graph.Spec) (*CreateInfo, error) {
	if name != "" && spec.Name == "" {
		spec.Name = name
	}
	if err := spec.Validate(); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if name == "" {
		name = spec.Name
	}

	created, err := s.Adapter.Create(ctx, spec, workspaceID)
	if err != nil {
		return nil, err
	}

	automation := models.Automation{
		WorkspaceID:      workspaceID,
		Name:             name,
		Backend:          "n8n",
		EngineWorkflowID: created.WorkflowID,
		Enabled:          false,
		Spec:             spec,
	}
	if err := s.DB.Create(&automation).Error; err != nil {
		return nil, err
	}

	if err := models.RecordEvent(s.DB, workspaceID, models.EventWorkflowCreated, map[string]interface{}{
		"automation_id":      automation.ID,
		"engine_workflow_id": created.WorkflowID,
		"name":               name,
		"degraded":           created.Degraded,
	}); err != nil {
		return nil, err
	}

	if created.Degraded {
		s.Logger.Printf("⚠️  Automation %d (%s) created with local placeholder %s", automation.ID, name, created.WorkflowID)
	}
	return &CreateInfo{
		AutomationID:     automation.ID,
		EngineWorkflowID: created.WorkflowID,
		Degraded:         created.Degraded,
	}, nil
}

// Run triggers one execution of an enabled automation.
func (s *Service) Run(ctx context.Context, workspaceID string, automationID uint, payload map[string]interface{}) (*RunResult, error) {
	automation, err := s.get(workspaceID, automationID)
	if err != nil {
		return nil, err
	}
	if !automation.Enabled {
		return nil, apperr.NotEnabled("automation %d is disabled", automationID)
	}

	run, err := s.Adapter.Run(ctx, automation.EngineWorkflowID, payload)
	if err != nil {
		return nil, err
	}

	if err := models.RecordEvent(s.DB, workspaceID, models.EventWorkflowRun, map[string]interface{}{
		"automation_id": automation.ID,
		"run_id":        run.RunID,
		"degraded":      run.Degraded,
	}); err != nil {
		return nil, err
	}
	return &run, nil
}

// RunStatus reports the state of one execution.
func (s *Service) RunStatus(ctx context.Context, runID string) (RunStatus, error) {
	return s.Adapter.Status(ctx, runID)
}

// Enable flips the automation on. Enabling twice is a no-op.
func (s *Service) Enable(ctx context.Context, workspaceID string, automationID uint) error {
	return s.setEnabled(ctx, workspaceID, automationID, true, models.EventWorkflowEnabled)
}

// Disable flips the automation off.
func (s *Service) Disable(ctx context.Context, workspaceID string, automationID uint) error {
	return s.setEnabled(ctx, workspaceID, automationID, false, models.EventWorkflowDisabled)
}

func (s *Service) setEnabled(ctx context.Context, workspaceID string, automationID uint, enabled bool, eventType string) error {
	automation, err := s.get(workspaceID, automationID)
	if err != nil {
		return err
	}
	if automation.Enabled == enabled {
		return nil
	}

	if enabled {
		_ = s.Adapter.Enable(ctx, automation.EngineWorkflowID)
	} else {
		_ = s.Adapter.Disable(ctx, automation.EngineWorkflowID)
	}

	automation.Enabled = enabled
	if err := s.DB.Save(automation).Error; err != nil {
		return err
	}
	return models.RecordEvent(s.DB, workspaceID, eventType, map[string]interface{}{
		"automation_id": automation.ID,
	})
}

// Delete removes the automation locally and best-effort on the engine.
func (s *Service) Delete(ctx context.Context, workspaceID string, automationID uint) error {
	automation, err := s.get(workspaceID, automationID)
	if err != nil {
		return err
	}
	_ = s.Adapter.Delete(ctx, automation.EngineWorkflowID)
	return s.DB.Delete(automation).Error
}

// List returns the workspace's automations, newest first.
func (s *Service) List(workspaceID string) ([]models.Automation, error) {
	var automations []models.Automation
	err := s.DB.Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Find(&automations).Error
	return automations, err
}

func (s *Service) get(workspaceID string, automationID uint) (*models.Automation, error) {
	var automation models.Automation
	err := s.DB.Where("id = ? AND workspace_id = ?", automationID, workspaceID).
		First(&automation).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("automation %d not found", automationID)
	}
	if err != nil {
		return nil, err
	}
	return &automation, nil
}
