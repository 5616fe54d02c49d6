// Package registry implements the action registry: named, schema-typed
// capabilities that callers invoke without knowing which service implements
// them. Input is validated before the handler runs and output after it
// returns, so a handler can neither see malformed input nor leak a malformed
// result.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"flowdesk/apperr"

	"github.com/go-playground/validator/v10"
)

// Context identifies who is calling. It is passed to handlers unmodified;
// handlers must scope every query to Context.WorkspaceID.
type Context struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	RequestID   string `json:"request_id,omitempty"`
}

// Handler executes a capability. input is a pointer to the capability's
// input struct, already decoded and validated.
type Handler func(ctx context.Context, actx Context, input interface{}) (interface{}, error)

// Capability declares a named action. Input and Output are prototype struct
// values whose `validate` tags define the schema.
type Capability struct {
	Name        string
	Description string
	Input       interface{}
	Output      interface{}
	Handler     Handler
}

// Descriptor is the introspection view returned by List.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Input       interface{} `json:"input"`
	Output      interface{} `json:"output"`
}

// Registry holds capabilities. It is effect-free itself and safe for
// concurrent use.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
	validate     *validator.Validate
}

func New() *Registry {
	return &Registry{
		capabilities: make(map[string]Capability),
		validate:     validator.New(),
	}
}

// Register adds a capability. Registering twice under one name is a wiring
// bug, not a runtime condition, so it fails rather than overwrites.
func (r *Registry) Register(cap Capability) error {
	if cap.Name == "" {
		return fmt.Errorf("capability requires a name")
	}
	if cap.Handler == nil {
		return fmt.Errorf("capability %s requires a handler", cap.Name)
	}
	if !isStructPrototype(cap.Input) || !isStructPrototype(cap.Output) {
		return fmt.Errorf("capability %s requires struct input/output prototypes", cap.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.capabilities[cap.Name]; exists {
		return fmt.Errorf("capability %s already registered", cap.Name)
	}
	r.capabilities[cap.Name] = cap
	return nil
}

// MustRegister is Register for process-start wiring, where a failure is
// unrecoverable.
func (r *Registry) MustRegister(cap Capability) {
	if err := r.Register(cap); err != nil {
		panic(err)
	}
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.capabilities[name]
	return ok
}

func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.capabilities))
	for _, cap := range r.capabilities {
		out = append(out, Descriptor{
			Name:        cap.Name,
			Description: cap.Description,
			Input:       cap.Input,
			Output:      cap.Output,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call validates input against the capability's schema, runs the handler and
// validates its output. Validation failures never reach the handler; an
// output that violates its own schema is reported as a contract violation
// rather than a caller error.
func (r *Registry) Call(ctx context.Context, name string, input interface{}, actx Context) (interface{}, error) {
	r.mu.RLock()
	cap, ok := r.capabilities[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.UnknownCapability(name)
	}

	decoded, err := decodeInto(input, cap.Input)
	if err != nil {
		return nil, apperr.Validation("invalid input for %s: %v", name, err)
	}
	if err := r.validate.Struct(decoded); err != nil {
		return nil, apperr.Validation("invalid input for %s: %v", name, err)
	}

	output, err := cap.Handler(ctx, actx, decoded)
	if err != nil {
		return nil, err
	}

	if err := r.checkOutput(cap, output); err != nil {
		return nil, err
	}
	return output, nil
}

func (r *Registry) checkOutput(cap Capability, output interface{}) error {
	if output == nil {
		return apperr.ContractViolation("%s returned no output", cap.Name)
	}
	want := structType(cap.Output)
	got := structType(output)
	if got != want {
		return apperr.ContractViolation("%s returned %v, declared %v", cap.Name, got, want)
	}
	if err := r.validate.Struct(output); err != nil {
		return apperr.ContractViolation("%s output violates its schema: %v", cap.Name, err)
	}
	return nil
}

// decodeInto round-trips src through JSON into a fresh instance of the
// prototype's type, so callers can hand over maps, raw JSON or typed structs
// interchangeably.
func decodeInto(src interface{}, prototype interface{}) (interface{}, error) {
	dst := reflect.New(structType(prototype)).Interface()
	if src == nil {
		return dst, nil
	}

	var raw []byte
	switch v := src.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		var err error
		raw, err = json.Marshal(src)
		if err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

func structType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func isStructPrototype(v interface{}) bool {
	t := structType(v)
	return t != nil && t.Kind() == reflect.Struct
}
