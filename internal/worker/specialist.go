// Package worker provides LLM-backed implementations of the coordinator's
// worker and reviewer contracts.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/engine"
	"github.com/prime30/synapse-sub013/internal/prompts"
	"github.com/prime30/synapse-sub013/internal/tools"
	"github.com/prime30/synapse-sub013/internal/tools/reasoning"
	"github.com/prime30/synapse-sub013/internal/workspace"
)

// softCapConfidence is reported for partial work of a run stopped by a soft
// cap, so it is always sent for approval.
const softCapConfidence = 0.3

// Specialist runs one task through the engine over a private workspace.
// The same Specialist serves every role; the role selects the prompt and
// the tool set.
type Specialist struct {
	llm   engine.LLMClient
	cfg   engine.EngineConfig
	log   *zap.Logger
	rules string
}

// Option configures a Specialist.
type Option func(*Specialist)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Specialist) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEngineConfig replaces the engine configuration.
func WithEngineConfig(cfg engine.EngineConfig) Option {
	return func(s *Specialist) { s.cfg = cfg }
}

// WithRules appends project rules to every system prompt.
func WithRules(rules string) Option {
	return func(s *Specialist) { s.rules = rules }
}

// NewSpecialist returns a Specialist using llm.
func NewSpecialist(llm engine.LLMClient, opts ...Option) *Specialist {
	s := &Specialist{llm: llm, cfg: engine.DefaultEngineConfig(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// toolSetFor selects the tools of a role. Only specialists may edit and
// only the project manager may delegate.
func toolSetFor(role agent.Role) (engine.ToolSet, error) {
	switch role {
	case agent.RoleProjectManager:
		return engine.ToolSet{Filesystem: true, Search: true, Reasoning: true, Delegation: true}, nil
	case agent.RoleLiquid, agent.RoleCSS, agent.RoleJavaScript, agent.RoleJSON, agent.RoleGeneral:
		return engine.ToolSet{Filesystem: true, Search: true, Editing: true, Reasoning: true}, nil
	case agent.RoleReview:
		return engine.ToolSet{}, fmt.Errorf("role %s is served by the reviewer", role)
	default:
		return engine.ToolSet{}, fmt.Errorf("unknown role %s", role)
	}
}

// Run executes task. It returns agent.ErrHalted when the coordinator stopped
// the run through sink.
func (s *Specialist) Run(ctx context.Context, task agent.Task, sink agent.EventSink) (agent.Result, error) {
	set, err := toolSetFor(task.Role)
	if err != nil {
		return agent.Result{}, err
	}
	system, err := prompts.ForRole(task.Role, s.rules)
	if err != nil {
		return agent.Result{}, err
	}

	log := s.log.With(
		zap.String("execution_id", task.ExecutionID),
		zap.String("task_id", task.ID),
		zap.String("role", task.Role.String()))

	ws := workspace.New(task.Context.Files)
	var plan *reasoning.Plan
	if set.Delegation {
		plan = &reasoning.Plan{}
	}
	reg, release := tools.NewToolRegistry(tools.Env{Workspace: ws, Plan: plan, Logger: log}, set)
	defer func() {
		if err := release(); err != nil {
			log.Warn("failed to release tools", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	relay := &eventHook{sink: sink, reg: reg, stop: cancel, log: log}

	loop := engine.NewAgent(s.llm, reg, s.cfg, system, engine.LoggerHook{L: log}, relay)
	st, err := loop.Run(ctx, TaskMessage(task))
	if relay.halted() {
		log.Info("run halted by coordinator", zap.Int("step", st.Step))
		return agent.Result{TaskID: task.ID, Role: task.Role}, agent.ErrHalted
	}

	res := agent.Result{TaskID: task.ID, Role: task.Role}
	summary, confidence := reasoning.ParseFinal(st.Final)
	if summary == "" {
		summary = lastAssistantText(st.History)
	}

	switch {
	case err == nil:
	case engine.IsSoftCapError(err) && len(ws.Changed()) > 0:
		log.Warn("soft cap reached with partial changes", zap.Error(err))
		summary = strings.TrimSpace(summary + "\n\nStopped early: " + err.Error())
		confidence = min(confidence, softCapConfidence)
	case engine.IsSoftCapError(err):
		res.Error = &agent.Error{Code: "soft_cap", Message: err.Error()}
		return res, nil
	default:
		return res, err
	}

	res.Success = true
	res.Summary = summary
	res.Changes = ws.Changes(summary, confidence)
	if plan != nil {
		res.Delegations = plan.Delegations()
	}
	log.Info("run finished",
		zap.Int("steps", st.Step),
		zap.Int("tool_calls", st.ToolCallCount),
		zap.Int("changes", len(res.Changes)),
		zap.Int("delegations", len(res.Delegations)),
		zap.Float64("confidence", confidence),
		zap.Int("tokens", st.Totals.Total))
	return res, nil
}

func lastAssistantText(history []engine.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if m := history[i]; m.Role == engine.RoleAssistant && strings.TrimSpace(m.Content) != "" {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

// eventHook forwards engine activity to the coordinator and stops the run
// once the coordinator refuses an event.
type eventHook struct {
	engine.NopHook
	sink agent.EventSink
	reg  engine.ToolRegistry
	stop context.CancelCauseFunc
	log  *zap.Logger

	stopped bool
}

func (h *eventHook) halted() bool { return h.stopped }

func (h *eventHook) emit(ctx context.Context, ev agent.Event) {
	if h.stopped {
		return
	}
	if err := h.sink.Emit(ctx, ev); err != nil {
		if !errors.Is(err, agent.ErrHalted) {
			h.log.Warn("event rejected", zap.String("kind", string(ev.Kind)), zap.Error(err))
			return
		}
		h.stopped = true
		h.stop(agent.ErrHalted)
	}
}

func (h *eventHook) OnAfterLLM(ctx context.Context, _ *engine.State, resp engine.LLMResponse) {
	if text := strings.TrimSpace(resp.Assistant.Content); text != "" {
		h.emit(ctx, agent.Event{Kind: agent.EventAssistantMessage, Text: text})
	}
}

func (h *eventHook) OnToolResult(ctx context.Context, _ *engine.State, call engine.ToolCall, result string, err error) {
	h.emit(ctx, agent.Event{
		Kind:    agent.EventToolCall,
		Tool:    call.Name,
		Input:   call.Args,
		Output:  result,
		IsError: err != nil,
		IsEdit:  h.reg.IsMutating(call.Name),
	})
}

func (h *eventHook) OnCompaction(ctx context.Context, _ *engine.State, _, _ []engine.ChatMessage, edits int) {
	h.emit(ctx, agent.Event{Kind: agent.EventCompaction, EditsSinceCompaction: edits})
}
