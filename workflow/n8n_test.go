package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flowdesk/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoNodeSpec() graph.Spec {
	return graph.Spec{
		Name: "Inbound lead intake",
		Nodes: []graph.Node{
			{ID: "n1", Kind: graph.KindWebhook, Name: "Inbound Webhook",
				Parameters: map[string]interface{}{"path": "lead-intake"}},
			{ID: "n2", Kind: graph.KindCode, Name: "Classify"},
		},
		Edges: []graph.Edge{{Source: "n1", Target: "n2"}},
	}
}

func TestTranslate(t *testing.T) {
	wf := translate(twoNodeSpec())

	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, "n8n-nodes-base.webhook", wf.Nodes[0].Type)
	assert.Equal(t, "n8n-nodes-base.code", wf.Nodes[1].Type)
	assert.Equal(t, [2]int{0, 100}, wf.Nodes[0].Position)
	assert.Equal(t, [2]int{250, 100}, wf.Nodes[1].Position)
	assert.Equal(t, "lead-intake", wf.Nodes[0].Parameters["path"])

	// Connections are keyed by node name, not id.
	conns, ok := wf.Connections["Inbound Webhook"]
	require.True(t, ok)
	require.Len(t, conns["main"][0], 1)
	assert.Equal(t, "Classify", conns["main"][0][0].Node)
}

func TestTranslateUnknownKindBecomesNoOp(t *testing.T) {
	spec := graph.Spec{
		Name:  "Odd",
		Nodes: []graph.Node{{ID: "n1", Kind: "quantum-teleport"}},
	}

	wf := translate(spec)
	require.Len(t, wf.Nodes, 1)
	assert.Equal(t, "n8n-nodes-base.noOp", wf.Nodes[0].Type)
	assert.Equal(t, "Node 1", wf.Nodes[0].Name)
}

func TestN8NCreate(t *testing.T) {
	var gotKey string
	var gotBody n8nWorkflow
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/workflows", r.URL.Path)
		gotKey = r.Header.Get("X-N8N-API-KEY")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"id": "wf_abc"})
	}))
	defer srv.Close()

	adapter := NewN8NAdapter(srv.URL, "secret-key")
	res, err := adapter.Create(context.Background(), twoNodeSpec(), "ws_1")
	require.NoError(t, err)

	assert.Equal(t, "wf_abc", res.WorkflowID)
	assert.False(t, res.Degraded)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "Inbound lead intake", gotBody.Name)
	assert.Len(t, gotBody.Nodes, 2)
}

func TestN8NCreateDegradesWhenUnreachable(t *testing.T) {
	// Connects to a port nothing listens on.
	adapter := NewN8NAdapter("http://127.0.0.1:1", "")

	res, err := adapter.Create(context.Background(), twoNodeSpec(), "ws_1")
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.True(t, strings.HasPrefix(res.WorkflowID, "local_"))
}

func TestN8NRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/workflows/wf_abc/execute", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"lead": "jane@example.com"}, body["data"])
		json.NewEncoder(w).Encode(map[string]string{"executionId": "exec_9"})
	}))
	defer srv.Close()

	adapter := NewN8NAdapter(srv.URL, "")
	run, err := adapter.Run(context.Background(), "wf_abc",
		map[string]interface{}{"lead": "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "exec_9", run.RunID)
	assert.False(t, run.Degraded)
}

func TestN8NRunDegradesWhenUnreachable(t *testing.T) {
	adapter := NewN8NAdapter("http://127.0.0.1:1", "")

	run, err := adapter.Run(context.Background(), "wf_abc", nil)
	require.NoError(t, err)
	assert.True(t, run.Degraded)
	assert.True(t, strings.HasPrefix(run.RunID, "local_run_"))
}

func TestN8NStatus(t *testing.T) {
	statuses := map[string]string{
		"exec_running": "running",
		"exec_ok":      "success",
		"exec_bad":     "crashed",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/executions/")
		json.NewEncoder(w).Encode(map[string]string{"status": statuses[id]})
	}))
	defer srv.Close()

	adapter := NewN8NAdapter(srv.URL, "")

	st, err := adapter.Status(context.Background(), "exec_running")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st)

	st, err = adapter.Status(context.Background(), "exec_ok")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, st)

	st, err = adapter.Status(context.Background(), "exec_bad")
	require.NoError(t, err)
	assert.Equal(t, StatusError, st)
}

func TestN8NStatusTransportErrorSurfaces(t *testing.T) {
	adapter := NewN8NAdapter("http://127.0.0.1:1", "")

	st, err := adapter.Status(context.Background(), "exec_1")
	assert.Error(t, err)
	assert.Equal(t, StatusError, st)
}

func TestN8NEnableSwallowsEngineFailure(t *testing.T) {
	adapter := NewN8NAdapter("http://127.0.0.1:1", "")

	assert.NoError(t, adapter.Enable(context.Background(), "wf_abc"))
	assert.NoError(t, adapter.Disable(context.Background(), "wf_abc"))
	assert.NoError(t, adapter.Delete(context.Background(), "wf_abc"))
}
