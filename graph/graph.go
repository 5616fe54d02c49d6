// Package graph defines the abstract node/edge workflow graphs that
// automations are described with. The graph is engine-agnostic; the workflow
// package translates it into whatever shape the orchestration engine wants.
package graph

import (
	"fmt"
)

// NodeKind is the closed set of node types the system understands. Anything
// else is carried through as KindPassthrough so a graph authored against a
// newer engine still round-trips.
type NodeKind string

const (
	KindWebhook     NodeKind = "webhook"
	KindEmail       NodeKind = "email"
	KindHTTP        NodeKind = "http"
	KindCode        NodeKind = "code"
	KindIf          NodeKind = "if"
	KindSwitch      NodeKind = "switch"
	KindMerge       NodeKind = "merge"
	KindWait        NodeKind = "wait"
	KindStart       NodeKind = "start"
	KindPassthrough NodeKind = "passthrough"
)

var knownKinds = map[NodeKind]bool{
	KindWebhook: true, KindEmail: true, KindHTTP: true, KindCode: true,
	KindIf: true, KindSwitch: true, KindMerge: true, KindWait: true,
	KindStart: true, KindPassthrough: true,
}

// Node is one step in a workflow graph.
type Node struct {
	ID         string                 `json:"id"`
	Kind       NodeKind               `json:"type"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Edge connects two nodes by their declared IDs.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Spec is a complete workflow graph.
type Spec struct {
	Name     string   `json:"name"`
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Triggers []string `json:"triggers,omitempty"`
}

// EffectiveKind returns the node's effective kind, folding unknown tags into
// KindPassthrough.
func (n Node) EffectiveKind() NodeKind {
	if knownKinds[n.Kind] {
		return n.Kind
	}
	return KindPassthrough
}

// Validate checks the graph's structural invariants: nodes need IDs, IDs must
// be unique, and every edge must reference declared nodes.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("workflow spec requires a name")
	}
	if len(s.Nodes) == 0 {
		return fmt.Errorf("workflow %q has no nodes", s.Name)
	}
	ids := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ID == "" {
			return fmt.Errorf("workflow %q: node %d has no id", s.Name, i)
		}
		if ids[n.ID] {
			return fmt.Errorf("workflow %q: duplicate node id %q", s.Name, n.ID)
		}
		ids[n.ID] = true
	}
	for i, e := range s.Edges {
		if !ids[e.Source] {
			return fmt.Errorf("workflow %q: edge %d references unknown source %q", s.Name, i, e.Source)
		}
		if !ids[e.Target] {
			return fmt.Errorf("workflow %q: edge %d references unknown target %q", s.Name, i, e.Target)
		}
	}
	return nil
}
