package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/engine"
)

// Plan collects the delegations a planning worker issues during its run.
type Plan struct {
	mu          sync.Mutex
	delegations []agent.Delegation
}

// Delegations returns a copy of the collected delegations.
func (p *Plan) Delegations() []agent.Delegation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.delegations)
}

func (p *Plan) add(d agent.Delegation) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delegations = append(p.delegations, d)
	return len(p.delegations)
}

func delegateImpl(plan *Plan, known func(string) bool, args map[string]any) (string, error) {
	roleName, _ := args["role"].(string)
	role, err := agent.ParseRole(roleName)
	if err != nil {
		return "", err
	}
	if !role.Specialist() {
		return "", fmt.Errorf("role %s cannot receive delegated work", role)
	}
	desc, _ := args["description"].(string)
	if desc == "" {
		return "", fmt.Errorf("description cannot be empty")
	}

	d := agent.Delegation{Role: role, Description: desc}
	if ids, ok := args["files"].([]any); ok {
		for _, v := range ids {
			s, ok := v.(string)
			if !ok {
				return "", fmt.Errorf("files must contain strings")
			}
			if known != nil && !known(s) {
				return "", fmt.Errorf("unknown file %q: use list_files to see available paths", s)
			}
			d.FileIDs = append(d.FileIDs, s)
		}
	}
	if prefs, ok := args["preferences"].(map[string]any); ok {
		d.Preferences = make(map[string]string, len(prefs))
		for k, v := range prefs {
			d.Preferences[k] = fmt.Sprint(v)
		}
	}

	n := plan.add(d)
	out, err := json.Marshal(map[string]any{
		"status":      "queued",
		"role":        role,
		"files":       d.FileIDs,
		"delegations": n,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewDelegateTool creates the delegate tool. known reports whether a file
// path exists and may be nil.
func NewDelegateTool(plan *Plan, known func(string) bool) engine.Tool {
	return engine.Tool{
		Name: "delegate",
		Description: `Assign a sub-task to a specialist. Use one delegation per concern, listing every file the specialist must edit. Delegations start after you call respond.

Roles: liquid, css, javascript, json, general.`,
		SchemaJSON: `{"type":"object","properties":{
			"role":{"type":"string","enum":["liquid","css","javascript","json","general"]},
			"description":{"type":"string","minLength":1,"description":"What the specialist must change"},
			"files":{"type":"array","items":{"type":"string"},"description":"Files the specialist works on"},
			"preferences":{"type":"object","description":"Optional stylistic preferences"}
		},"required":["role","description"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return delegateImpl(plan, known, args)
		},
		Retryable: false,
		Category:  "delegation",
	}
}
