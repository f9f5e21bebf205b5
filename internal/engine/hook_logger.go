package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoggerHook writes engine progress to a zap logger.
type LoggerHook struct{ L *zap.Logger }

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func (h LoggerHook) OnStepStart(_ context.Context, st *State) {
	h.L.Debug("step start", zap.Int("step", st.Step))
}
func (h LoggerHook) OnBeforeLLM(_ context.Context, st *State, msgs []ChatMessage, toolSchemas []ToolSchema) {
	h.L.Debug("llm request",
		zap.Int("step", st.Step),
		zap.Int("messages", len(msgs)),
		zap.Int("tools", len(toolSchemas)),
		zap.Int("cumulative_tokens", st.Totals.Total))
}
func (h LoggerHook) OnAfterLLM(_ context.Context, st *State, r LLMResponse) {
	h.L.Debug("llm response",
		zap.String("finish", r.FinishReason),
		zap.Int("tool_calls", len(r.ToolCalls)),
		zap.Int("prompt_tokens", r.Usage.Prompt),
		zap.Int("completion_tokens", r.Usage.Completion))
}
func (h LoggerHook) OnToolCall(_ context.Context, _ *State, c ToolCall) {
	h.L.Debug("tool call", zap.String("tool", c.Name), zap.Any("args", c.Args))
}
func (h LoggerHook) OnToolResult(_ context.Context, _ *State, c ToolCall, result string, err error) {
	if err != nil {
		h.L.Info("tool error", zap.String("tool", c.Name), zap.Error(err))
		return
	}
	h.L.Debug("tool result", zap.String("tool", c.Name), zap.String("result", preview(result, 100)))
}
func (h LoggerHook) OnCompaction(_ context.Context, st *State, before, after []ChatMessage, edits int) {
	h.L.Info("history compacted",
		zap.Int("before", len(before)),
		zap.Int("after", len(after)),
		zap.Int("edits_since_last", edits),
		zap.Int("compactions", st.Compactions))
}
func (h LoggerHook) OnRetryAttempt(_ context.Context, st *State, attempt int, maxAttempts int, delay time.Duration, err error) {
	st.Retries++
	h.L.Warn("retry", zap.Int("attempt", attempt), zap.Int("max", maxAttempts), zap.Duration("delay", delay), zap.Error(err))
}
func (h LoggerHook) OnSoftCapReached(_ context.Context, _ *State, err error) {
	h.L.Warn("soft cap reached", zap.Error(err))
}
func (h LoggerHook) OnDone(_ context.Context, st *State) {
	h.L.Debug("done", zap.Int("steps", st.Step), zap.Int("tokens", st.Totals.Total))
}
