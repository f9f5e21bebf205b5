package engine

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MaxToolCallsPerRun       = 40 // Maximum total tool calls in one worker run
	MaxSearchReplaceFailures = 3  // Maximum search_replace failures per file
)

// SoftCapError indicates that a soft limit was reached during execution.
// Soft caps stop a run with guidance instead of failing it abruptly.
type SoftCapError struct {
	Type    string // "tool_call_limit", "edit_failure_limit", "step_limit"
	Message string
}

func (e *SoftCapError) Error() string {
	return fmt.Sprintf("soft cap reached (%s): %s", e.Type, e.Message)
}

// IsSoftCapError checks if an error is a SoftCapError.
func IsSoftCapError(err error) bool {
	var sc *SoftCapError
	return errors.As(err, &sc)
}

func checkSoftCaps(st *State) error {
	if st.ToolCallCount >= MaxToolCallsPerRun {
		return &SoftCapError{
			Type:    "tool_call_limit",
			Message: fmt.Sprintf("reached %d tool calls; narrow the task or split it into delegations", MaxToolCallsPerRun),
		}
	}
	for key, count := range st.FailureCounts {
		if strings.HasPrefix(key, "search_replace:") && count >= MaxSearchReplaceFailures {
			file := strings.TrimPrefix(key, "search_replace:")
			return &SoftCapError{
				Type:    "edit_failure_limit",
				Message: fmt.Sprintf("failed to edit %s %d times; rewrite the file with write_file instead", file, count),
			}
		}
	}
	return nil
}
