package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() Spec {
	return Spec{
		Name: "Lead intake",
		Nodes: []Node{
			{ID: "a", Kind: KindWebhook, Name: "Webhook"},
			{ID: "b", Kind: KindEmail, Name: "Reply"},
		},
		Edges: []Edge{{Source: "a", Target: "b"}},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validSpec().Validate())
}

func TestValidateRequiresName(t *testing.T) {
	s := validSpec()
	s.Name = ""
	assert.Error(t, s.Validate())
}

func TestValidateRequiresNodes(t *testing.T) {
	s := validSpec()
	s.Nodes = nil
	assert.Error(t, s.Validate())
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	s := validSpec()
	s.Nodes = append(s.Nodes, Node{ID: "a", Kind: KindCode})
	assert.Error(t, s.Validate())
}

func TestValidateRejectsMissingNodeID(t *testing.T) {
	s := validSpec()
	s.Nodes[1].ID = ""
	assert.Error(t, s.Validate())
}

func TestValidateRejectsDanglingEdges(t *testing.T) {
	s := validSpec()
	s.Edges = []Edge{{Source: "a", Target: "ghost"}}
	assert.Error(t, s.Validate())

	s.Edges = []Edge{{Source: "ghost", Target: "b"}}
	assert.Error(t, s.Validate())
}

func TestEffectiveKind(t *testing.T) {
	assert.Equal(t, KindEmail, Node{Kind: KindEmail}.EffectiveKind())
	assert.Equal(t, KindPassthrough, Node{Kind: "somebody-elses-node"}.EffectiveKind())
	assert.Equal(t, KindPassthrough, Node{}.EffectiveKind())
}

func TestSpecJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(validSpec())
	require.NoError(t, err)

	var decoded Spec
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, validSpec(), decoded)

	// Node kind rides in the "type" field on the wire.
	assert.Contains(t, string(raw), `"type":"webhook"`)
}
