package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/xeipuuv/gojsonschema"
)

type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          ToolFunc
	Retryable   bool // Safe to run again after a transient failure
	// Mutates marks tools that edit files. Successful calls count as
	// progress for loop detection and compaction bookkeeping.
	Mutates  bool
	Category string // e.g. "filesystem", "search", "editing", "reasoning"
}

// ValidateArgs validates the provided arguments against the tool's JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	if t.SchemaJSON == "" {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(t.SchemaJSON), gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return &ToolValidationError{ToolName: t.Name, Errors: msgs}
	}
	return nil
}

type ToolRegistry map[string]Tool

// Register adds tools, replacing any with the same name.
func (r ToolRegistry) Register(tools ...Tool) {
	for _, t := range tools {
		r[t.Name] = t
	}
}

// Names returns the registered tool names in sorted order.
func (r ToolRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Schemas returns provider schemas in a stable order.
func (r ToolRegistry) Schemas() []ToolSchema {
	s := make([]ToolSchema, 0, len(r))
	for _, name := range r.Names() {
		t := r[name]
		s = append(s, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
			Retryable:   t.Retryable,
		})
	}
	return s
}

// FilterByCategory returns a new registry containing only tools of the given categories.
func (r ToolRegistry) FilterByCategory(categories ...string) ToolRegistry {
	filtered := make(ToolRegistry)
	for name, tool := range r {
		if slices.Contains(categories, tool.Category) {
			filtered[name] = tool
		}
	}
	return filtered
}

// IsMutating reports whether name is a registered file-editing tool.
func (r ToolRegistry) IsMutating(name string) bool {
	return r[name].Mutates
}
