// Package planner turns a plain-language business description into a
// provisioning plan: which modules to light up and which workflows to deploy.
// Classification is deliberately dumb keyword matching; the plan format is
// what matters, the classifier is replaceable.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"flowdesk/graph"
	"flowdesk/registry"
)

// Plan is a provisioning proposal. Workflows are deployed via the action
// registry when the plan is applied.
type Plan struct {
	BusinessType string       `json:"business_type"`
	Modules      []string     `json:"modules"`
	Actions      []string     `json:"actions"`
	Workflows    []graph.Spec `json:"workflows"`
}

// ApplyResult reports what happened when a plan was executed.
type ApplyResult struct {
	Attempted   int      `json:"attempted"`
	Deployed    int      `json:"deployed"`
	WorkflowIDs []uint   `json:"workflow_ids"`
	Errors      []string `json:"errors,omitempty"`
}

type Planner struct {
	Registry *registry.Registry
	Logger   *log.Logger
}

func New(r *registry.Registry) *Planner {
	return &Planner{
		Registry: r,
		Logger:   log.New(os.Stdout, "PLANNER: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

var realtorKeywords = []string{"realtor", "real estate", "property", "listing", "broker", "inquiry"}

// CreatePlan classifies the description and returns the matching plan.
// Unrecognized businesses get the default inbox plan.
func (p *Planner) CreatePlan(description string) Plan {
	lowered := strings.ToLower(description)
	for _, kw := range realtorKeywords {
		if strings.Contains(lowered, kw) {
			return realtorPlan()
		}
	}
	return defaultPlan()
}

// Apply deploys every workflow in the plan through workflow.create. A single
// failed deployment is logged and skipped; Apply only errors when nothing
// could be deployed at all.
func (p *Planner) Apply(ctx context.Context, actx registry.Context, plan Plan) (*ApplyResult, error) {
	result := &ApplyResult{Attempted: len(plan.Workflows)}

	for _, spec := range plan.Workflows {
		out, err := p.Registry.Call(ctx, "workflow.create", map[string]interface{}{
			"name": spec.Name,
			"spec": spec,
		}, actx)
		if err != nil {
			p.Logger.Printf("⚠️  Could not deploy workflow %q: %v", spec.Name, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", spec.Name, err))
			continue
		}
		result.Deployed++
		if id := workflowIDFrom(out); id != 0 {
			result.WorkflowIDs = append(result.WorkflowIDs, id)
		}
	}

	if result.Attempted > 0 && result.Deployed == 0 {
		return result, fmt.Errorf("no workflows could be deployed: %s", strings.Join(result.Errors, "; "))
	}
	return result, nil
}

// workflowIDFrom digs the automation ID out of whatever output struct the
// workflow.create capability returned, without depending on its concrete
// type.
func workflowIDFrom(out interface{}) uint {
	raw, err := json.Marshal(out)
	if err != nil {
		return 0
	}
	var v struct {
		WorkflowID uint `json:"workflowId"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	return v.WorkflowID
}

func realtorPlan() Plan {
	return Plan{
		BusinessType: "realtor",
		Modules:      []string{"crm", "email", "workflow"},
		Actions: []string{
			"crm.createContact",
			"crm.addActivity",
			"email.send",
			"workflow.run",
		},
		Workflows: []graph.Spec{
			{
				Name: "Inbound lead intake",
				Nodes: []graph.Node{
					{ID: "intake", Kind: graph.KindWebhook, Name: "Inbound Webhook",
						Parameters: map[string]interface{}{"path": "lead-intake"}},
					{ID: "classify", Kind: graph.KindCode, Name: "Classify Inquiry"},
					{ID: "contact", Kind: graph.KindHTTP, Name: "Create Contact",
						Parameters: map[string]interface{}{"action": "crm.createContact"}},
					{ID: "draft", Kind: graph.KindHTTP, Name: "Draft Reply",
						Parameters: map[string]interface{}{"action": "email.draft"}},
				},
				Edges: []graph.Edge{
					{Source: "intake", Target: "classify"},
					{Source: "classify", Target: "contact"},
					{Source: "contact", Target: "draft"},
				},
				Triggers: []string{"email.inbound"},
			},
		},
	}
}

func defaultPlan() Plan {
	return Plan{
		BusinessType: "general",
		Modules:      []string{"crm", "email"},
		Actions: []string{
			"crm.createContact",
			"email.send",
		},
		Workflows: []graph.Spec{
			{
				Name: "Inbound acknowledgment",
				Nodes: []graph.Node{
					{ID: "intake", Kind: graph.KindWebhook, Name: "Inbound Webhook",
						Parameters: map[string]interface{}{"path": "inbound"}},
					{ID: "ack", Kind: graph.KindEmail, Name: "Acknowledge"},
				},
				Edges: []graph.Edge{
					{Source: "intake", Target: "ack"},
				},
				Triggers: []string{"email.inbound"},
			},
		},
	}
}
