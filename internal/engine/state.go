package engine

// State is the mutable record of one engine run.
type State struct {
	History  []ChatMessage // Conversation history
	Step     int           // Current step (increments only on success)
	Retries  int           // Retry attempts (tracked separately from steps)
	Done     bool          // True once the model answered or called respond
	Model    string
	MaxSteps int
	Totals   Usage // Accumulated token usage across all calls

	ToolCallCount int            // Total tool calls this run (for soft caps)
	FailureCounts map[string]int // Failures per tool/file (for soft caps)

	// Final is the payload of the respond tool, if it was called.
	Final map[string]any

	Compactions          int
	EditsSinceCompaction int
}

func (s *State) Append(msg ChatMessage) { s.History = append(s.History, msg) }
