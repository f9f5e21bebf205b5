package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/engine"
)

func TestMain(m *testing.M) {
	// bleve starts its analysis workers at package init.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/blevesearch/bleve_index_api.AnalysisWorker"),
	)
}

// scriptedLLM replays canned responses and records every request.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []engine.LLMResponse
	requests  [][]engine.ChatMessage
}

func (s *scriptedLLM) Chat(_ context.Context, _ string, msgs []engine.ChatMessage, _ []engine.ToolSchema, _ engine.ChatOptions) (engine.LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, append([]engine.ChatMessage(nil), msgs...))
	if len(s.responses) == 0 {
		return engine.LLMResponse{Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: "done"}, FinishReason: "stop"}, nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func toolStep(calls ...engine.ToolCall) engine.LLMResponse {
	return engine.LLMResponse{Assistant: engine.ChatMessage{Role: engine.RoleAssistant}, ToolCalls: calls, FinishReason: "tool_calls"}
}

func call(id, name string, args map[string]any) engine.ToolCall {
	return engine.ToolCall{ID: id, Name: name, Args: args}
}

func reply(text string) engine.LLMResponse {
	return engine.LLMResponse{Assistant: engine.ChatMessage{Role: engine.RoleAssistant, Content: text}, FinishReason: "stop"}
}

// recorder is an EventSink that keeps every event it accepts.
type recorder struct {
	mu     sync.Mutex
	events []agent.Event
	refuse bool
}

func (r *recorder) Emit(_ context.Context, ev agent.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.refuse {
		return agent.ErrHalted
	}
	return nil
}

const baseCSS = "body {\n  color: red;\n}\n"

func cssTask(role agent.Role) agent.Task {
	return agent.Task{
		ID:          "t1",
		ExecutionID: "e1",
		Role:        role,
		Instruction: "Make the body text blue",
		Context: agent.Context{
			Files: []agent.FileSnapshot{{ID: "assets/base.css", Name: "assets/base.css", Content: baseCSS, Version: "1"}},
		},
	}
}

func TestSpecialistProducesPatchedChange(t *testing.T) {
	llm := &scriptedLLM{responses: []engine.LLMResponse{
		toolStep(call("c1", "search_replace", map[string]any{
			"file_path":  "assets/base.css",
			"old_string": "color: red;",
			"new_string": "color: blue;",
		})),
		toolStep(call("c2", engine.RespondTool, map[string]any{"summary": "Made the text blue", "confidence": 0.9})),
	}}
	sink := &recorder{}

	s := NewSpecialist(llm, WithLogger(zaptest.NewLogger(t)))
	res, err := s.Run(context.Background(), cssTask(agent.RoleCSS), sink)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Made the text blue", res.Summary)
	require.Len(t, res.Changes, 1)
	ch := res.Changes[0]
	assert.Equal(t, "assets/base.css", ch.FileID)
	assert.Equal(t, baseCSS, ch.OriginalContent)
	assert.Contains(t, ch.ProposedContent, "color: blue;")
	assert.NotEmpty(t, ch.Patches)
	assert.InDelta(t, 0.9, ch.Confidence, 1e-9)

	require.Len(t, sink.events, 2)
	assert.Equal(t, agent.EventToolCall, sink.events[0].Kind)
	assert.Equal(t, "search_replace", sink.events[0].Tool)
	assert.True(t, sink.events[0].IsEdit)
	assert.False(t, sink.events[0].IsError)
	assert.False(t, sink.events[1].IsEdit)
}

func TestSpecialistReportsFailedToolCalls(t *testing.T) {
	llm := &scriptedLLM{responses: []engine.LLMResponse{
		toolStep(call("c1", "search_replace", map[string]any{
			"file_path":  "assets/base.css",
			"old_string": "footer .newsletter { display: grid; }",
			"new_string": "footer .newsletter { display: flex; }",
		})),
		toolStep(call("c2", engine.RespondTool, map[string]any{"summary": "Could not find the rule"})),
	}}
	sink := &recorder{}

	res, err := NewSpecialist(llm).Run(context.Background(), cssTask(agent.RoleCSS), sink)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Changes)
	require.NotEmpty(t, sink.events)
	assert.True(t, sink.events[0].IsError)
}

func TestSpecialistStopsWhenHalted(t *testing.T) {
	llm := &scriptedLLM{responses: []engine.LLMResponse{
		toolStep(call("c1", "read_file", map[string]any{"path": "assets/base.css"})),
		toolStep(call("c2", "read_file", map[string]any{"path": "assets/base.css"})),
		toolStep(call("c3", "read_file", map[string]any{"path": "assets/base.css"})),
	}}
	sink := &recorder{refuse: true}

	_, err := NewSpecialist(llm).Run(context.Background(), cssTask(agent.RoleCSS), sink)
	require.ErrorIs(t, err, agent.ErrHalted)
	assert.Equal(t, 1, llm.calls())
	assert.Len(t, sink.events, 1)
}

func TestProjectManagerDelegates(t *testing.T) {
	llm := &scriptedLLM{responses: []engine.LLMResponse{
		toolStep(call("c1", "delegate", map[string]any{
			"role":        "css",
			"description": "Set the body color to blue",
			"files":       []any{"assets/base.css"},
		})),
		toolStep(call("c2", engine.RespondTool, map[string]any{"summary": "Delegated the color change"})),
	}}

	res, err := NewSpecialist(llm).Run(context.Background(), cssTask(agent.RoleProjectManager), &recorder{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Changes)
	require.Len(t, res.Delegations, 1)
	assert.Equal(t, agent.RoleCSS, res.Delegations[0].Role)
	assert.Equal(t, []string{"assets/base.css"}, res.Delegations[0].FileIDs)

	system := llm.requests[0][0].Content
	assert.Contains(t, system, "project manager")
}

func TestSoftCap(t *testing.T) {
	edit := call("c1", "search_replace", map[string]any{
		"file_path":  "assets/base.css",
		"old_string": "color: red;",
		"new_string": "color: blue;",
	})
	read := call("c1", "read_file", map[string]any{"path": "assets/base.css"})

	tests := []struct {
		name        string
		step        engine.ToolCall
		wantSuccess bool
	}{
		{name: "partial changes are kept", step: edit, wantSuccess: true},
		{name: "no changes fails", step: read, wantSuccess: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{responses: []engine.LLMResponse{toolStep(tt.step)}}
			cfg := engine.DefaultEngineConfig()
			cfg.MaxSteps = 1

			res, err := NewSpecialist(llm, WithEngineConfig(cfg)).Run(context.Background(), cssTask(agent.RoleCSS), &recorder{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, res.Success)
			if tt.wantSuccess {
				require.Len(t, res.Changes, 1)
				assert.LessOrEqual(t, res.Changes[0].Confidence, softCapConfidence)
				return
			}
			require.NotNil(t, res.Error)
			assert.Equal(t, "soft_cap", res.Error.Code)
			assert.False(t, res.Error.Recoverable)
		})
	}
}

func TestSpecialistReturnsLLMErrors(t *testing.T) {
	boom := errors.New("400 bad request: invalid model")
	llm := engine.LLMClient(failingLLM{err: boom})

	_, err := NewSpecialist(llm).Run(context.Background(), cssTask(agent.RoleCSS), &recorder{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

type failingLLM struct{ err error }

func (f failingLLM) Chat(context.Context, string, []engine.ChatMessage, []engine.ToolSchema, engine.ChatOptions) (engine.LLMResponse, error) {
	return engine.LLMResponse{}, f.err
}

func TestToolSetFor(t *testing.T) {
	for _, role := range agent.Roles() {
		set, err := toolSetFor(role)
		switch {
		case role == agent.RoleReview:
			assert.Error(t, err, role.String())
		case role == agent.RoleProjectManager:
			require.NoError(t, err)
			assert.True(t, set.Delegation)
			assert.False(t, set.Editing)
		default:
			require.NoError(t, err, role.String())
			assert.True(t, set.Editing, role.String())
			assert.False(t, set.Delegation, role.String())
		}
	}
}

func TestTaskMessage(t *testing.T) {
	task := cssTask(agent.RoleCSS)
	task.Context.Design = "Brand blue is #1a4d8f."
	task.Delegations = []agent.Delegation{{Role: agent.RoleCSS, Description: "Recolor body text"}}

	msg := TaskMessage(task)
	assert.True(t, strings.HasPrefix(msg, "TASK:\nMake the body text blue\n"))
	assert.Contains(t, msg, "- assets/base.css (3 lines)")
	assert.Contains(t, msg, "DESIGN NOTES:\nBrand blue is #1a4d8f.")
	assert.Contains(t, msg, "- css: Recolor body text")
	assert.NotContains(t, msg, "PROJECT MEMORY")
}

func TestReviewer(t *testing.T) {
	change := agent.CodeChange{
		FileID:          "assets/base.css",
		FileName:        "assets/base.css",
		OriginalContent: baseCSS,
		ProposedContent: strings.Replace(baseCSS, "red", "blue", 1),
		Reasoning:       "Brand color",
		Confidence:      0.8,
	}

	tests := []struct {
		name         string
		reply        string
		wantErr      bool
		wantApproved bool
		wantFindings int
	}{
		{
			name:         "fenced verdict",
			reply:        "Here you go:\n```json\n{\"approved\": true, \"summary\": \"Looks good\"}\n```",
			wantApproved: true,
		},
		{
			name:         "bare object after prose",
			reply:        `Verdict: {"approved": false, "summary": "Breaks the header", "findings": [{"severity": "major", "file": "assets/base.css", "line": 2, "description": "Contrast too low", "category": "accessibility"}]} thanks`,
			wantFindings: 1,
		},
		{
			name:    "unknown severity",
			reply:   `{"approved": true, "summary": "ok", "findings": [{"severity": "blocker", "file": "a", "description": "x"}]}`,
			wantErr: true,
		},
		{
			name:    "missing summary",
			reply:   `{"approved": true}`,
			wantErr: true,
		},
		{
			name:    "no json",
			reply:   "I approve.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{responses: []engine.LLMResponse{reply(tt.reply)}}
			r := NewReviewer(llm, WithLogger(zaptest.NewLogger(t)))

			got, err := r.Review(context.Background(), []agent.CodeChange{change})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantApproved, got.Approved)
			assert.Len(t, got.Findings, tt.wantFindings)

			require.Len(t, llm.requests, 1)
			prompt := llm.requests[0][1].Content
			assert.Contains(t, prompt, "+  color: blue;")
			assert.Contains(t, prompt, "Reasoning: Brand color")
		})
	}
}
