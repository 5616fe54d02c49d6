// Package workflow manages automations: persisting workflow graphs, pushing
// them to the orchestration engine through an Adapter, and running them.
package workflow

import (
	"context"

	"flowdesk/graph"
)

// RunStatus is the closed set of execution states reported upstream,
// whatever vocabulary the engine itself uses.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusError   RunStatus = "error"
)

// CreateResult reports the engine-side identifier for a deployed workflow.
// Degraded is set when the engine was unreachable and a local placeholder ID
// was issued instead; callers must surface it, not hide it.
type CreateResult struct {
	WorkflowID string
	Degraded   bool
}

// RunResult identifies one execution of a workflow.
type RunResult struct {
	RunID    string
	Degraded bool
}

// Adapter is the boundary to the orchestration engine. Implementations
// translate engine-agnostic graphs into the engine's native format.
type Adapter interface {
	Create(ctx context.Context, spec graph.Spec, workspaceID string) (CreateResult, error)
	Run(ctx context.Context, workflowID string, payload map[string]interface{}) (RunResult, error)
	Status(ctx context.Context, runID string) (RunStatus, error)
	Enable(ctx context.Context, workflowID string) error
	Disable(ctx context.Context, workflowID string) error
	Delete(ctx context.Context, workflowID string) error
}
