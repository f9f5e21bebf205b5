package reasoning

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prime30/synapse-sub013/internal/engine"
)

// DefaultConfidence is assumed when a worker finishes without stating one.
const DefaultConfidence = 0.8

// RespondResult is the output of the respond tool. The engine keeps the
// call's arguments as the run's final answer.
type RespondResult struct {
	Status       string   `json:"status"`
	Summary      string   `json:"summary"`
	Confidence   float64  `json:"confidence"`
	FilesChanged []string `json:"files_changed,omitempty"`
}

func respondImpl(summary string, confidence float64, filesChanged []string) (string, error) {
	if summary == "" {
		return "", fmt.Errorf("summary cannot be empty")
	}
	if confidence < 0 || confidence > 1 {
		return "", fmt.Errorf("confidence must be between 0 and 1, got %v", confidence)
	}
	resultJSON, err := json.Marshal(RespondResult{
		Status:       "complete",
		Summary:      summary,
		Confidence:   confidence,
		FilesChanged: filesChanged,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(resultJSON), nil
}

// ParseFinal extracts summary and confidence from the respond arguments
// kept in engine.State.Final.
func ParseFinal(final map[string]any) (summary string, confidence float64) {
	summary, _ = final["summary"].(string)
	confidence = DefaultConfidence
	if c, ok := final["confidence"].(float64); ok && c >= 0 && c <= 1 {
		confidence = c
	}
	return summary, confidence
}

// NewRespondTool creates the respond tool that ends a worker's run.
func NewRespondTool() engine.Tool {
	return engine.Tool{
		Name:        engine.RespondTool,
		Description: `Finish the task. Give a concise summary of what was done and your confidence (0 to 1) that the changes are correct and complete. Low confidence sends the result to a human for approval.`,
		SchemaJSON:  `{"type":"object","properties":{"summary":{"type":"string","description":"What was accomplished (2-4 sentences)"},"confidence":{"type":"number","minimum":0,"maximum":1},"files_changed":{"type":"array","items":{"type":"string"}}},"required":["summary"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			summary, ok := args["summary"].(string)
			if !ok {
				return "", fmt.Errorf("summary must be a string")
			}
			confidence := DefaultConfidence
			if c, ok := args["confidence"].(float64); ok {
				confidence = c
			}
			var filesChanged []string
			if fc, ok := args["files_changed"].([]any); ok {
				for _, f := range fc {
					if s, ok := f.(string); ok {
						filesChanged = append(filesChanged, s)
					}
				}
			}
			return respondImpl(summary, confidence, filesChanged)
		},
		Retryable: true,
		Category:  "reasoning",
	}
}
