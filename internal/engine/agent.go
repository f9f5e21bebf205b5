package engine

import (
	"context"
)

// Agent binds an LLM, a tool registry and a system prompt into a runnable
// worker loop.
type Agent struct {
	llm          LLMClient
	tools        ToolRegistry
	config       EngineConfig
	hooks        Hooks
	systemPrompt string
}

// NewAgent returns an agent. hooks may be nil.
func NewAgent(llm LLMClient, tools ToolRegistry, cfg EngineConfig, systemPrompt string, hooks ...Hook) *Agent {
	return &Agent{
		llm:          llm,
		tools:        tools,
		config:       cfg,
		hooks:        Hooks(hooks),
		systemPrompt: systemPrompt,
	}
}

// Run executes one task message and returns the final state. The state is
// returned even when err is non-nil so callers can inspect partial history.
func (a *Agent) Run(ctx context.Context, userMessage string) (*State, error) {
	st := &State{
		History: []ChatMessage{
			{Role: RoleSystem, Content: a.systemPrompt},
			{Role: RoleUser, Content: userMessage},
		},
		Model:         a.config.Model,
		MaxSteps:      a.config.MaxSteps,
		FailureCounts: make(map[string]int),
	}
	err := Run(ctx, a.llm, a.tools, st, a.hooks, a.config)
	return st, err
}

// Tools returns the agent's registry.
func (a *Agent) Tools() ToolRegistry { return a.tools }
