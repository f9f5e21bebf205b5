package engine

import "time"

// CompactionConfig defines when message history is summarized.
type CompactionConfig struct {
	Enabled bool
	// Threshold is the history length (excluding the system prompt) that
	// triggers a compaction.
	Threshold int
	// KeepRecent messages are never summarized.
	KeepRecent int
	// TruncateToolsAt caps tool output in the summarizer transcript.
	TruncateToolsAt int
}

// DefaultCompactionConfig returns sensible default compaction configuration.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		Enabled:         true,
		Threshold:       40,
		KeepRecent:      16,
		TruncateToolsAt: 4000,
	}
}

// EngineConfig holds all engine configuration options.
type EngineConfig struct {
	Model       string
	MaxSteps    int
	ToolTimeout time.Duration // per tool call, 0 disables
	Retry       RetryConfig
	Compaction  CompactionConfig
	Chat        ChatOptions
}

// DefaultEngineConfig returns a default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxSteps:    30,
		ToolTimeout: 60 * time.Second,
		Retry:       DefaultRetryConfig(),
		Compaction:  DefaultCompactionConfig(),
		Chat:        ChatOptions{Temperature: 0.2, MaxOutputTokens: 4096},
	}
}

// DefaultRetryConfig returns sensible default retry policies.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		LLMPolicy: RetryPolicy{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		ToolPolicy: RetryPolicy{
			MaxRetries:   2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}
