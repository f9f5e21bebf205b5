package reasoning

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/engine"
)

func thinkImpl(log *zap.Logger, reasoning string) (string, error) {
	log.Debug("agent reasoning", zap.String("reasoning", reasoning))

	resultJSON, err := json.Marshal(map[string]any{"status": "noted"})
	if err != nil {
		return "", err
	}
	return string(resultJSON), nil
}

// NewThinkTool creates the think tool. It records reasoning without side
// effects; log may be nil.
func NewThinkTool(log *zap.Logger) engine.Tool {
	if log == nil {
		log = zap.NewNop()
	}
	return engine.Tool{
		Name: "think",
		Description: `Record your reasoning before acting. Use it after reading the task to state your approach, before an edit to say what you will change, and when choosing between options.

Example:
think({"reasoning": "The header section renders the logo twice. I will remove the second render tag in sections/header.liquid."})`,
		SchemaJSON: `{"type":"object","properties":{"reasoning":{"type":"string","description":"Your reasoning. Name files and selectors when relevant."},"reason":{"type":"string","description":"Alias for 'reasoning'"}},"required":[]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			var reasoning string
			if r, ok := args["reasoning"].(string); ok {
				reasoning = r
			} else if r, ok := args["reason"].(string); ok {
				reasoning = r
			} else {
				return "", fmt.Errorf("either 'reasoning' or 'reason' must be provided as a string")
			}
			if reasoning == "" {
				return "", fmt.Errorf("reasoning cannot be empty")
			}
			return thinkImpl(log, reasoning)
		},
		Retryable: true,
		Category:  "reasoning",
	}
}
