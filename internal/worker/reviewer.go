package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/engine"
	"github.com/prime30/synapse-sub013/internal/patch"
	"github.com/prime30/synapse-sub013/internal/prompts"
)

// reviewSchema is the reply contract of the review prompt.
const reviewSchema = `{
	"type": "object",
	"required": ["approved", "summary"],
	"properties": {
		"approved": {"type": "boolean"},
		"summary": {"type": "string"},
		"findings": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["severity", "file", "description"],
				"properties": {
					"severity": {"enum": ["critical", "major", "minor", "suggestion"]},
					"file": {"type": "string"},
					"line": {"type": "integer", "minimum": 1},
					"description": {"type": "string"},
					"suggestion": {"type": "string"},
					"category": {"type": "string"}
				}
			}
		}
	}
}`

var (
	jsonFence = regexp.MustCompile("```(?:json)?\\s*\\n([\\s\\S]*?)\\n```")

	errNoVerdict = errors.New("review reply contains no JSON object")
)

// maxDiffBytes bounds the diff text of a single file sent to the reviewer.
const maxDiffBytes = 24_000

// Reviewer asks an LLM for a verdict over an execution's changes.
type Reviewer struct {
	llm    engine.LLMClient
	cfg    engine.EngineConfig
	log    *zap.Logger
	schema *gojsonschema.Schema
}

// NewReviewer returns a Reviewer. It accepts the same options as
// NewSpecialist; WithRules is ignored.
func NewReviewer(llm engine.LLMClient, opts ...Option) *Reviewer {
	s := NewSpecialist(llm, opts...)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(reviewSchema))
	if err != nil {
		panic(fmt.Sprintf("review schema: %v", err))
	}
	return &Reviewer{llm: llm, cfg: s.cfg, log: s.log, schema: schema}
}

// Review sends one unified diff per change and parses the verdict.
func (r *Reviewer) Review(ctx context.Context, changes []agent.CodeChange) (agent.ReviewResult, error) {
	system, err := prompts.ForRole(agent.RoleReview, "")
	if err != nil {
		return agent.ReviewResult{}, err
	}
	msgs := []engine.ChatMessage{
		{Role: engine.RoleSystem, Content: system},
		{Role: engine.RoleUser, Content: reviewMessage(changes)},
	}

	resp, err := engine.RetryLLMCall(ctx, r.cfg.Retry.LLMPolicy, r.llm, r.cfg.Model, msgs, nil, r.cfg.Chat,
		func(attempt int, delay time.Duration, err error) {
			r.log.Warn("retrying review", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		})
	if err != nil {
		return agent.ReviewResult{}, fmt.Errorf("review call: %w", err)
	}

	verdict, err := r.parse(resp.Assistant.Content)
	if err != nil {
		r.log.Warn("unusable review reply", zap.Error(err), zap.Int("reply_len", len(resp.Assistant.Content)))
		return agent.ReviewResult{}, err
	}
	r.log.Info("review finished",
		zap.Bool("approved", verdict.Approved),
		zap.Int("findings", len(verdict.Findings)),
		zap.Int("tokens", resp.Usage.Total))
	return verdict, nil
}

func (r *Reviewer) parse(reply string) (agent.ReviewResult, error) {
	raw, ok := extractJSON(reply)
	if !ok {
		return agent.ReviewResult{}, errNoVerdict
	}
	res, err := r.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return agent.ReviewResult{}, fmt.Errorf("review reply: %w", err)
	}
	if !res.Valid() {
		var msgs []string
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return agent.ReviewResult{}, fmt.Errorf("review reply does not match schema: %s", strings.Join(msgs, "; "))
	}
	var verdict agent.ReviewResult
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return agent.ReviewResult{}, fmt.Errorf("review reply: %w", err)
	}
	return verdict, nil
}

// extractJSON returns the first fenced JSON block, or else the first JSON
// object in text.
func extractJSON(text string) (string, bool) {
	if m := jsonFence.FindStringSubmatch(text); len(m) > 1 {
		if body := strings.TrimSpace(m[1]); strings.HasPrefix(body, "{") {
			return body, true
		}
	}
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "{")
	if start == -1 {
		return "", false
	}
	dec := json.NewDecoder(strings.NewReader(trimmed[start:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", false
	}
	return string(raw), true
}

func reviewMessage(changes []agent.CodeChange) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Review %d proposed change(s).\n", len(changes))
	for _, c := range changes {
		fmt.Fprintf(&sb, "\n### %s (confidence %.2f)\n", c.FileName, c.Confidence)
		if reason := strings.TrimSpace(c.Reasoning); reason != "" {
			fmt.Fprintf(&sb, "Reasoning: %s\n", reason)
		}
		diff := patch.UnifiedDiff(c.FileName, c.OriginalContent, c.ProposedContent)
		if len(diff) > maxDiffBytes {
			diff = diff[:maxDiffBytes] + "\n... diff truncated ...\n"
		}
		sb.WriteString("```diff\n")
		sb.WriteString(diff)
		if !strings.HasSuffix(diff, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	}
	return sb.String()
}
