// Package tools assembles the tool registries workers run with.
package tools

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/engine"
	"github.com/prime30/synapse-sub013/internal/tools/editing"
	"github.com/prime30/synapse-sub013/internal/tools/filesystem"
	"github.com/prime30/synapse-sub013/internal/tools/reasoning"
	"github.com/prime30/synapse-sub013/internal/tools/search"
	"github.com/prime30/synapse-sub013/internal/workspace"
)

// Env carries what the tools act on.
type Env struct {
	Workspace *workspace.Workspace
	// Plan receives delegations. Required when ToolSet.Delegation is set.
	Plan   *reasoning.Plan
	Logger *zap.Logger
}

// NewToolRegistry creates a registry with the tools enabled in set. release
// frees what the tools hold and must be called once the run is over.
func NewToolRegistry(env Env, set engine.ToolSet) (reg engine.ToolRegistry, release func() error) {
	reg = make(engine.ToolRegistry)
	ws := env.Workspace
	var closers []io.Closer

	if set.Filesystem {
		reg.Register(
			filesystem.NewReadFileTool(ws),
			filesystem.NewListFilesTool(ws),
		)
	}
	if set.Search {
		codeSearch, index := search.NewCodeSearchTool(ws)
		reg.Register(search.NewGrepTool(ws), codeSearch)
		closers = append(closers, index)
	}
	if set.Editing {
		reg.Register(
			editing.NewSearchReplaceTool(ws),
			editing.NewWriteTool(ws),
		)
	}
	if set.Reasoning {
		reg.Register(
			reasoning.NewThinkTool(env.Logger),
			reasoning.NewRespondTool(),
		)
	}
	if set.Delegation && env.Plan != nil {
		known := func(p string) bool {
			_, err := ws.Read(p)
			return err == nil
		}
		reg.Register(reasoning.NewDelegateTool(env.Plan, known))
	}
	return reg, func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}
}
