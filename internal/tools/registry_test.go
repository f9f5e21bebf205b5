package tools

import (
	"slices"
	"testing"

	"github.com/prime30/synapse-sub013/internal/engine"
	"github.com/prime30/synapse-sub013/internal/tools/reasoning"
	"github.com/prime30/synapse-sub013/internal/workspace"
)

func TestNewToolRegistry(t *testing.T) {
	env := Env{Workspace: workspace.New(nil), Plan: &reasoning.Plan{}}

	tests := []struct {
		name string
		set  engine.ToolSet
		want []string
	}{
		{
			name: "planner",
			set:  engine.ToolSet{Filesystem: true, Search: true, Reasoning: true, Delegation: true},
			want: []string{"delegate", "grep", "list_files", "read_file", "respond", "search_code", "think"},
		},
		{
			name: "specialist",
			set:  engine.ToolSet{Filesystem: true, Search: true, Editing: true, Reasoning: true},
			want: []string{"grep", "list_files", "read_file", "respond", "search_code", "search_replace", "think", "write_file"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, release := NewToolRegistry(env, tt.set)
			defer func() {
				if err := release(); err != nil {
					t.Errorf("release: %v", err)
				}
			}()
			if got := reg.Names(); !slices.Equal(got, tt.want) {
				t.Errorf("Names() = %v, want %v", got, tt.want)
			}
		})
	}

	reg, _ := NewToolRegistry(env, engine.ToolSet{Editing: true})
	if !reg.IsMutating("search_replace") || !reg.IsMutating("write_file") {
		t.Error("editing tools must be marked as mutating")
	}
}
