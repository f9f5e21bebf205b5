package engine

import (
	"context"
	"fmt"
	"time"
)

// RespondTool is the tool a worker calls to finish its run.
const RespondTool = "respond"

func retryConfig(opts ChatOptions) RetryConfig {
	if opts.RetryConfig != nil {
		return *opts.RetryConfig
	}
	return DefaultRetryConfig()
}

func executeTool(ctx context.Context, call ToolCall, reg ToolRegistry) (string, error) {
	t, ok := reg[call.Name]
	if !ok {
		return "", fmt.Errorf("tool not found: %s (available tools: %v)", call.Name, reg.Names())
	}
	if call.Error != "" {
		return "", fmt.Errorf("malformed call to %s: %s", call.Name, call.Error)
	}
	if err := t.ValidateArgs(call.Args); err != nil {
		return "", fmt.Errorf("validation failed for tool %s: %w", call.Name, err)
	}
	result, err := t.Fn(ctx, call.Args)
	if err != nil {
		return "", fmt.Errorf("execution failed for tool %s: %w", call.Name, err)
	}
	return result, nil
}

type toolOutcome struct {
	result string
	err    error
}

// executeToolWithTimeout bounds one tool call. On timeout the call keeps
// running in the background and its result is discarded.
func executeToolWithTimeout(ctx context.Context, call ToolCall, reg ToolRegistry, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		return executeTool(ctx, call, reg)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan toolOutcome, 1)
	go func() {
		res, err := executeTool(tctx, call, reg)
		done <- toolOutcome{res, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("tool %s timed out after %s", call.Name, timeout)
	}
}

func callLLMWithRetry(ctx context.Context, llm LLMClient, msgs []ChatMessage, schemas []ToolSchema, opts ChatOptions, hooks Hooks, st *State) (LLMResponse, error) {
	rc := retryConfig(opts)
	return RetryLLMCall(ctx, rc.LLMPolicy, llm, st.Model, msgs, schemas, opts,
		func(attempt int, delay time.Duration, err error) {
			hooks.OnRetryAttempt(ctx, st, attempt, rc.LLMPolicy.MaxRetries, delay, err)
		})
}

// executeToolCalls runs calls one at a time and appends their results to
// history. Calls are sequential so a cancelled context stops the remaining
// calls of the same step.
func executeToolCalls(ctx context.Context, calls []ToolCall, reg ToolRegistry, cfg EngineConfig, hooks Hooks, st *State) error {
	rc := retryConfig(cfg.Chat)
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return err
		}
		hooks.OnToolCall(ctx, st, call)
		st.ToolCallCount++

		res, err := RetryToolCall(ctx, rc.ToolPolicy, cfg.ToolTimeout, call, reg,
			func(attempt int, delay time.Duration, retryErr error) {
				hooks.OnRetryAttempt(ctx, st, attempt, rc.ToolPolicy.MaxRetries, delay, retryErr)
			})

		content := res
		if err != nil {
			content = "ERROR: " + err.Error()
			st.FailureCounts[failureKey(call)]++
		} else if reg.IsMutating(call.Name) {
			st.EditsSinceCompaction++
		}

		id := call.ID
		if id == "" {
			id = call.Name
		}
		st.Append(ChatMessage{Role: RoleTool, Name: id, Content: content})
		hooks.OnToolResult(ctx, st, call, content, err)

		if call.Name == RespondTool && err == nil {
			st.Done = true
			st.Final = call.Args
			return nil
		}
	}
	return nil
}

func failureKey(call ToolCall) string {
	if p, ok := call.Args["file_path"].(string); ok {
		return call.Name + ":" + p
	}
	return call.Name
}

func stepOnce(ctx context.Context, llm LLMClient, reg ToolRegistry, st *State, hooks Hooks, cfg EngineConfig) error {
	hooks.OnStepStart(ctx, st)

	if err := maybeCompact(ctx, llm, st, hooks, cfg.Compaction); err != nil {
		return WrapWithContext(err, st, "compaction", "")
	}

	schemas := reg.Schemas()
	hooks.OnBeforeLLM(ctx, st, st.History, schemas)

	resp, err := callLLMWithRetry(ctx, llm, st.History, schemas, cfg.Chat, hooks, st)
	if err != nil {
		return WrapWithContext(err, st, "llm_call", "")
	}

	st.Totals.Add(resp.Usage)
	msg := resp.Assistant
	msg.Role = RoleAssistant
	msg.ToolCalls = resp.ToolCalls
	st.Append(msg)
	hooks.OnAfterLLM(ctx, st, resp)

	if len(resp.ToolCalls) == 0 {
		st.Done = true
		return nil
	}

	if err := executeToolCalls(ctx, resp.ToolCalls, reg, cfg, hooks, st); err != nil {
		return WrapWithContext(err, st, "tool_execution", "")
	}
	return nil
}
