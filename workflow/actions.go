package workflow

import (
	"context"

	"flowdesk/graph"
	"flowdesk/registry"
)

// Action inputs and outputs. Tags double as the registry schema.

type CreateActionInput struct {
	Name string     `json:"name" validate:"required"`
	Spec graph.Spec `json:"spec" validate:"required"`
}

type CreateActionOutput struct {
	WorkflowID       uint   `json:"workflowId" validate:"required"`
	EngineWorkflowID string `json:"engineWorkflowId" validate:"required"`
	Degraded         bool   `json:"degraded"`
}

type RunActionInput struct {
	WorkflowID uint                   `json:"workflowId" validate:"required"`
	Payload    map[string]interface{} `json:"payload"`
}

type RunActionOutput struct {
	RunID    string `json:"runId" validate:"required"`
	Degraded bool   `json:"degraded"`
}

type ToggleActionInput struct {
	WorkflowID uint `json:"workflowId" validate:"required"`
}

type ToggleActionOutput struct {
	WorkflowID uint `json:"workflowId" validate:"required"`
	Enabled    bool `json:"enabled"`
}

// RegisterActions exposes the workflow service through the action registry.
func RegisterActions(r *registry.Registry, svc *Service) error {
	caps := []registry.Capability{
		{
			Name:        "workflow.create",
			Description: "Deploy a workflow graph to the orchestration engine",
			Input:       CreateActionInput{},
			Output:      CreateActionOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				in := input.(*CreateActionInput)
				info, err := svc.Create(ctx, actx.WorkspaceID, in.Name, in.Spec)
				if err != nil {
					return nil, err
				}
				return &CreateActionOutput{
					WorkflowID:       info.AutomationID,
					EngineWorkflowID: info.EngineWorkflowID,
					Degraded:         info.Degraded,
				}, nil
			},
		},
		{
			Name:        "workflow.run",
			Description: "Trigger one execution of an enabled workflow",
			Input:       RunActionInput{},
			Output:      RunActionOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				in := input.(*RunActionInput)
				run, err := svc.Run(ctx, actx.WorkspaceID, in.WorkflowID, in.Payload)
				if err != nil {
					return nil, err
				}
				return &RunActionOutput{RunID: run.RunID, Degraded: run.Degraded}, nil
			},
		},
		{
			Name:        "workflow.enable",
			Description: "Allow a workflow to fire",
			Input:       ToggleActionInput{},
			Output:      ToggleActionOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				in := input.(*ToggleActionInput)
				if err := svc.Enable(ctx, actx.WorkspaceID, in.WorkflowID); err != nil {
					return nil, err
				}
				return &ToggleActionOutput{WorkflowID: in.WorkflowID, Enabled: true}, nil
			},
		},
		{
			Name:        "workflow.disable",
			Description: "Stop a workflow from firing",
			Input:       ToggleActionInput{},
			Output:      ToggleActionOutput{},
			Handler: func(ctx context.Context, actx registry.Context, input interface{}) (interface{}, error) {
				in := input.(*ToggleActionInput)
				if err := svc.Disable(ctx, actx.WorkspaceID, in.WorkflowID); err != nil {
					return nil, err
				}
				return &ToggleActionOutput{WorkflowID: in.WorkflowID, Enabled: false}, nil
			},
		},
	}

	for _, cap := range caps {
		if err := r.Register(cap); err != nil {
			return err
		}
	}
	return nil
}
