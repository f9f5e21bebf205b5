package engine

import (
	"context"
	"time"
)

// Hook observes the engine loop. Hooks must not block for long; they run on
// the loop goroutine.
type Hook interface {
	OnStepStart(ctx context.Context, st *State)
	OnBeforeLLM(ctx context.Context, st *State, messages []ChatMessage, toolSchemas []ToolSchema)
	OnAfterLLM(ctx context.Context, st *State, resp LLMResponse)
	OnToolCall(ctx context.Context, st *State, call ToolCall)
	OnToolResult(ctx context.Context, st *State, call ToolCall, result string, err error)
	// OnCompaction fires after older history was summarized. edits is the
	// number of successful edits since the previous compaction.
	OnCompaction(ctx context.Context, st *State, before, after []ChatMessage, edits int)
	OnRetryAttempt(ctx context.Context, st *State, attempt int, maxAttempts int, delay time.Duration, err error)
	OnSoftCapReached(ctx context.Context, st *State, err error)
	OnDone(ctx context.Context, st *State)
}

// NopHook lets you implement any hook you need.
type NopHook struct{}

func (NopHook) OnStepStart(context.Context, *State)                                     {}
func (NopHook) OnBeforeLLM(context.Context, *State, []ChatMessage, []ToolSchema)        {}
func (NopHook) OnAfterLLM(context.Context, *State, LLMResponse)                         {}
func (NopHook) OnToolCall(context.Context, *State, ToolCall)                            {}
func (NopHook) OnToolResult(context.Context, *State, ToolCall, string, error)           {}
func (NopHook) OnCompaction(context.Context, *State, []ChatMessage, []ChatMessage, int) {}
func (NopHook) OnRetryAttempt(context.Context, *State, int, int, time.Duration, error)  {}
func (NopHook) OnSoftCapReached(context.Context, *State, error)                         {}
func (NopHook) OnDone(context.Context, *State)                                          {}
