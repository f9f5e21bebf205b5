package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// Mock tool function
func mockToolFn(ctx context.Context, args map[string]any) (string, error) {
	if val, ok := args["should_error"]; ok && val.(bool) {
		return "", errors.New("mock error")
	}
	return "success", nil
}

// scriptedLLM replays canned responses and records every request.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []LLMResponse
	requests  [][]ChatMessage
}

func (s *scriptedLLM) Chat(_ context.Context, _ string, msgs []ChatMessage, _ []ToolSchema, _ ChatOptions) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, append([]ChatMessage(nil), msgs...))
	if len(s.responses) == 0 {
		return LLMResponse{Assistant: ChatMessage{Role: RoleAssistant, Content: "done"}, FinishReason: "stop"}, nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

func toolStep(calls ...ToolCall) LLMResponse {
	return LLMResponse{Assistant: ChatMessage{Role: RoleAssistant}, ToolCalls: calls, FinishReason: "tool_calls"}
}

func newTestRegistry() ToolRegistry {
	reg := make(ToolRegistry)
	reg.Register(
		Tool{
			Name:       "mock_tool",
			Fn:         mockToolFn,
			SchemaJSON: `{"type": "object", "properties": {"should_error": {"type": "boolean"}}}`,
		},
		Tool{Name: "write_file", Fn: mockToolFn, Mutates: true},
		Tool{Name: RespondTool, Fn: func(context.Context, map[string]any) (string, error) { return "ok", nil }},
	)
	return reg
}

func TestExecuteTool(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()

	tests := []struct {
		name    string
		call    ToolCall
		want    string
		wantErr bool
	}{
		{
			name: "success",
			call: ToolCall{Name: "mock_tool", Args: map[string]any{"should_error": false}},
			want: "success",
		},
		{
			name:    "tool execution error",
			call:    ToolCall{Name: "mock_tool", Args: map[string]any{"should_error": true}},
			wantErr: true,
		},
		{
			name:    "schema violation",
			call:    ToolCall{Name: "mock_tool", Args: map[string]any{"should_error": "yes"}},
			wantErr: true,
		},
		{
			name:    "malformed call",
			call:    ToolCall{Name: "mock_tool", Error: "truncated arguments"},
			wantErr: true,
		},
		{
			name:    "tool not found",
			call:    ToolCall{Name: "non_existent_tool", Args: map[string]any{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := executeTool(ctx, tt.call, reg)
			if (err != nil) != tt.wantErr {
				t.Errorf("executeTool() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("executeTool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecuteToolCalls(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry()
	cfg := DefaultEngineConfig()

	tests := []struct {
		name       string
		calls      []ToolCall
		wantLen    int
		wantErrors int
		wantEdits  int
		wantDone   bool
	}{
		{
			name:    "single success",
			calls:   []ToolCall{{ID: "call_1", Name: "mock_tool", Args: map[string]any{}}},
			wantLen: 1,
		},
		{
			name:       "error result is recorded",
			calls:      []ToolCall{{ID: "call_2", Name: "mock_tool", Args: map[string]any{"should_error": true}}},
			wantLen:    1,
			wantErrors: 1,
		},
		{
			name:      "edit counts as progress",
			calls:     []ToolCall{{ID: "call_3", Name: "write_file", Args: map[string]any{}}},
			wantLen:   1,
			wantEdits: 1,
		},
		{
			name: "respond stops the step",
			calls: []ToolCall{
				{ID: "call_4", Name: RespondTool, Args: map[string]any{"summary": "x"}},
				{ID: "call_5", Name: "mock_tool", Args: map[string]any{}},
			},
			wantLen:  1,
			wantDone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &State{Model: "test-model", FailureCounts: map[string]int{}}
			if err := executeToolCalls(ctx, tt.calls, reg, cfg, Hooks{}, st); err != nil {
				t.Fatalf("executeToolCalls() unexpected error: %v", err)
			}
			if len(st.History) != tt.wantLen {
				t.Errorf("History length = %d, want %d", len(st.History), tt.wantLen)
			}
			errCount := 0
			for _, m := range st.History {
				if strings.HasPrefix(m.Content, "ERROR: ") {
					errCount++
				}
			}
			if errCount != tt.wantErrors {
				t.Errorf("error results = %d, want %d", errCount, tt.wantErrors)
			}
			if st.EditsSinceCompaction != tt.wantEdits {
				t.Errorf("EditsSinceCompaction = %d, want %d", st.EditsSinceCompaction, tt.wantEdits)
			}
			if st.Done != tt.wantDone {
				t.Errorf("Done = %v, want %v", st.Done, tt.wantDone)
			}
		})
	}
}

func TestExecuteToolCallsStopsWhenCancelled(t *testing.T) {
	reg := newTestRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	var seen int
	hook := cancelAfterHook{n: 1, cancel: cancel, seen: &seen}
	st := &State{FailureCounts: map[string]int{}}
	calls := []ToolCall{
		{ID: "1", Name: "mock_tool", Args: map[string]any{}},
		{ID: "2", Name: "mock_tool", Args: map[string]any{}},
	}
	err := executeToolCalls(ctx, calls, reg, DefaultEngineConfig(), Hooks{hook}, st)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if seen != 1 {
		t.Errorf("tool results seen = %d, want 1", seen)
	}
}

type cancelAfterHook struct {
	NopHook
	n      int
	cancel context.CancelFunc
	seen   *int
}

func (h cancelAfterHook) OnToolResult(context.Context, *State, ToolCall, string, error) {
	*h.seen++
	if *h.seen >= h.n {
		h.cancel()
	}
}

func TestToolTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	reg := ToolRegistry{}
	reg.Register(Tool{Name: "slow", Fn: func(ctx context.Context, _ map[string]any) (string, error) {
		<-block
		return "late", nil
	}})

	start := time.Now()
	_, err := executeToolWithTimeout(context.Background(), ToolCall{Name: "slow"}, reg, 20*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v, want timeout", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
}

func TestRunUntilRespond(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{
		toolStep(ToolCall{ID: "a", Name: "mock_tool", Args: map[string]any{}}),
		toolStep(ToolCall{ID: "b", Name: RespondTool, Args: map[string]any{"summary": "all good"}}),
	}}
	st := &State{History: []ChatMessage{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "task"}}}

	cfg := DefaultEngineConfig()
	cfg.Compaction.Enabled = false
	if err := Run(context.Background(), llm, newTestRegistry(), st, Hooks{}, cfg); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !st.Done || st.Final["summary"] != "all good" {
		t.Errorf("Done=%v Final=%v", st.Done, st.Final)
	}
	if st.Step != 2 {
		t.Errorf("Step = %d, want 2", st.Step)
	}
}

func TestRunStepLimit(t *testing.T) {
	var responses []LLMResponse
	for i := 0; i < 5; i++ {
		responses = append(responses, toolStep(ToolCall{ID: "x", Name: "mock_tool", Args: map[string]any{}}))
	}
	llm := &scriptedLLM{responses: responses}
	st := &State{MaxSteps: 3}

	cfg := DefaultEngineConfig()
	cfg.Compaction.Enabled = false
	err := Run(context.Background(), llm, newTestRegistry(), st, Hooks{}, cfg)
	if !IsSoftCapError(err) {
		t.Fatalf("err = %v, want soft cap", err)
	}
}

type compactionRecorder struct {
	NopHook
	edits []int
}

func (c *compactionRecorder) OnCompaction(_ context.Context, _ *State, _, _ []ChatMessage, edits int) {
	c.edits = append(c.edits, edits)
}

func TestMaybeCompact(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Assistant: ChatMessage{Role: RoleAssistant, Content: "sum"}}}}
	st := &State{
		History: []ChatMessage{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "task"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1", Name: "mock_tool"}}},
			{Role: RoleTool, Name: "1", Content: "r1"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "2", Name: "mock_tool"}}},
			{Role: RoleTool, Name: "2", Content: "r2"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "3", Name: "mock_tool"}}},
			{Role: RoleTool, Name: "3", Content: "r3"},
		},
		EditsSinceCompaction: 2,
	}
	rec := &compactionRecorder{}
	cfg := CompactionConfig{Enabled: true, Threshold: 4, KeepRecent: 2}

	if err := maybeCompact(context.Background(), llm, st, Hooks{rec}, cfg); err != nil {
		t.Fatalf("maybeCompact() error = %v", err)
	}
	if len(st.History) != 5 {
		t.Fatalf("History length = %d, want 5", len(st.History))
	}
	if !strings.Contains(st.History[2].Content, "sum") {
		t.Errorf("summary message = %q", st.History[2].Content)
	}
	if st.History[3].Role != RoleAssistant {
		t.Errorf("kept history starts with %s", st.History[3].Role)
	}
	if st.Compactions != 1 || st.EditsSinceCompaction != 0 {
		t.Errorf("Compactions=%d EditsSinceCompaction=%d", st.Compactions, st.EditsSinceCompaction)
	}
	if len(rec.edits) != 1 || rec.edits[0] != 2 {
		t.Errorf("OnCompaction edits = %v, want [2]", rec.edits)
	}
}

func TestCompactionSplitSkipsToolResults(t *testing.T) {
	h := []ChatMessage{
		{Role: RoleSystem}, {Role: RoleUser},
		{Role: RoleAssistant}, {Role: RoleTool}, {Role: RoleTool}, {Role: RoleAssistant},
	}
	if got := compactionSplit(h, 3); got != 5 {
		t.Errorf("compactionSplit() = %d, want 5", got)
	}
}
