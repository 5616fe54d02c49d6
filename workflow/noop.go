package workflow

import (
	"context"
	"fmt"
	"sync"

	"flowdesk/graph"
)

// NoopAdapter is an in-memory Adapter used when no engine is configured and
// in tests. It accepts everything and remembers what it was told.
type NoopAdapter struct {
	mu      sync.Mutex
	seq     int
	Created map[string]graph.Spec
	Active  map[string]bool
	Runs    map[string]string // run ID -> workflow ID
}

func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{
		Created: make(map[string]graph.Spec),
		Active:  make(map[string]bool),
		Runs:    make(map[string]string),
	}
}

func (a *NoopAdapter) Create(ctx context.Context, spec graph.Spec, workspaceID string) (CreateResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	id := fmt.Sprintf("noop_%d", a.seq)
	a.Created[id] = spec
	return CreateResult{WorkflowID: id}, nil
}

func (a *NoopAdapter) Run(ctx context.Context, workflowID string, payload map[string]interface{}) (RunResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	runID := fmt.Sprintf("noop_run_%d", a.seq)
	a.Runs[runID] = workflowID
	return RunResult{RunID: runID}, nil
}

func (a *NoopAdapter) Status(ctx context.Context, runID string) (RunStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.Runs[runID]; !ok {
		return StatusError, fmt.Errorf("unknown run %s", runID)
	}
	return StatusSuccess, nil
}

func (a *NoopAdapter) Enable(ctx context.Context, workflowID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Active[workflowID] = true
	return nil
}

func (a *NoopAdapter) Disable(ctx context.Context, workflowID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Active[workflowID] = false
	return nil
}

func (a *NoopAdapter) Delete(ctx context.Context, workflowID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.Created, workflowID)
	delete(a.Active, workflowID)
	return nil
}
