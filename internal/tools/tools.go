// Package tools provides the tool registry and the failure-isolating invoker
// used by the agent loop.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Handler executes one tool invocation with validated arguments.
type Handler interface {
	Execute(ctx context.Context, args Args) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// Execute calls f(ctx, args).
func (f HandlerFunc) Execute(ctx context.Context, args Args) (any, error) {
	return f(ctx, args)
}

// Parameter types understood by the argument validator.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Parameter defines a tool parameter with validation rules.
type Parameter struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description" yaml:"description"`
	Required    bool     `json:"required" yaml:"required"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// Spec is the static metadata advertised to the model for one tool.
type Spec struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters"`
}

// JSONSchema renders the parameter list as a JSON-schema object.
func (s Spec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Parameters))
	required := make([]string, 0)

	for _, p := range s.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       TypeObject,
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type entry struct {
	spec    Spec
	handler Handler
	order   int
}

// Registry maps tool names to handlers. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*entry
	nextSeq int
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*entry),
	}
}

// Register adds a tool. Registering an existing name replaces its spec and
// handler but keeps its original position in Specs.
func (r *Registry) Register(spec Spec, handler Handler) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler is nil", name)
	}
	spec.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tools[name]; ok {
		existing.spec = spec
		existing.handler = handler
		return nil
	}

	r.tools[name] = &entry{spec: spec, handler: handler, order: r.nextSeq}
	r.nextSeq++
	return nil
}

// MustRegister adds a tool, panicking on error.
func (r *Registry) MustRegister(spec Spec, handler Handler) {
	if err := r.Register(spec, handler); err != nil {
		panic(err)
	}
}

// Lookup resolves a tool by name.
func (r *Registry) Lookup(name string) (Handler, Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return nil, Spec{}, false
	}
	return e.handler, e.spec, true
}

// Specs returns every registered spec in registration order.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*entry, 0, len(r.tools))
	for _, e := range r.tools {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	specs := make([]Spec, len(entries))
	for i, e := range entries {
		specs[i] = e.spec
	}
	return specs
}

// List returns all registered tool names in registration order.
func (r *Registry) List() []string {
	specs := r.Specs()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// GenerateToolsPrompt describes the registered tools in plain text, for models
// or operators that need a readable catalogue next to the structured specs.
func (r *Registry) GenerateToolsPrompt() string {
	specs := r.Specs()
	if len(specs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, firstLine(s.Description))
		for _, p := range s.Parameters {
			req := ""
			if p.Required {
				req = " (required)"
			}
			fmt.Fprintf(&b, "    %s %s%s: %s\n", p.Name, p.Type, req, p.Description)
		}
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
