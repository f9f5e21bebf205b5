// Package agent holds the values exchanged between the coordinator, its
// workers and the review step.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/prime30/synapse-sub013/internal/patch"
)

// ErrHalted is returned to a worker whose budget was cancelled by the
// coordinator. The worker must stop issuing tool calls.
var ErrHalted = errors.New("worker halted by coordinator")

// CodePatch is a search/replace pair justifying part of a CodeChange.
type CodePatch = patch.Patch

// LineRange restricts where a change's patches may apply.
type LineRange = patch.LineRange

// FileSnapshot is a file's content as seen when a task was issued.
type FileSnapshot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Version string `json:"version,omitempty"`
}

// Message is one entry of a conversation log.
type Message struct {
	From    string    `json:"from"`
	To      string    `json:"to,omitempty"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Context is the bundle a worker receives with its task.
type Context struct {
	Files        []FileSnapshot `json:"files,omitempty"`
	Conversation []Message      `json:"conversation,omitempty"`
	Diagnostics  string         `json:"diagnostics,omitempty"`
	Design       string         `json:"design,omitempty"`
	Memory       string         `json:"memory,omitempty"`
}

// File returns the snapshot with the given id.
func (c Context) File(id string) (FileSnapshot, bool) {
	for _, f := range c.Files {
		if f.ID == id {
			return f, true
		}
	}
	return FileSnapshot{}, false
}

// Delegation is a coordinator-bound request for a child task.
type Delegation struct {
	Role        Role              `json:"role"`
	Description string            `json:"description"`
	FileIDs     []string          `json:"file_ids"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// Task is one instruction for one worker. Tasks are not modified after
// dispatch; a retry or escalation issues a new Task.
type Task struct {
	ID          string       `json:"id"`
	ExecutionID string       `json:"execution_id"`
	ParentID    string       `json:"parent_id,omitempty"`
	Role        Role         `json:"role"`
	Instruction string       `json:"instruction"`
	Context     Context      `json:"context"`
	Delegations []Delegation `json:"delegations,omitempty"`
	Attempt     int          `json:"attempt"`
	Escalated   bool         `json:"escalated,omitempty"`
}

// CodeChange is a worker's proposed rewrite of one file.
type CodeChange struct {
	FileID          string      `json:"file_id"`
	FileName        string      `json:"file_name"`
	OriginalContent string      `json:"original_content"`
	ProposedContent string      `json:"proposed_content"`
	Patches         []CodePatch `json:"patches,omitempty"`
	Reasoning       string      `json:"reasoning,omitempty"`
	Confidence      float64     `json:"confidence"`
	Lines           *LineRange  `json:"lines,omitempty"`
}

// Error describes a failed worker run.
type Error struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Result is what a worker returns for a Task.
type Result struct {
	TaskID      string       `json:"task_id"`
	Role        Role         `json:"role"`
	Success     bool         `json:"success"`
	Changes     []CodeChange `json:"changes,omitempty"`
	Delegations []Delegation `json:"delegations,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Error       *Error       `json:"error,omitempty"`
}

// EventKind distinguishes the observations a worker reports while running.
type EventKind string

const (
	EventToolCall         EventKind = "tool_call"
	EventAssistantMessage EventKind = "assistant_message"
	EventCompaction       EventKind = "compaction"
)

// Event is one observation from a running worker.
type Event struct {
	Kind   EventKind      `json:"kind"`
	TaskID string         `json:"task_id"`
	Tool   string         `json:"tool,omitempty"`
	Input  map[string]any `json:"input,omitempty"`
	Output string         `json:"output,omitempty"`
	// IsError marks failed or timed-out tool calls.
	IsError bool   `json:"is_error,omitempty"`
	IsEdit  bool   `json:"is_edit,omitempty"`
	Text    string `json:"text,omitempty"`
	// EditsSinceCompaction is set for compaction events.
	EditsSinceCompaction int `json:"edits_since_compaction,omitempty"`
}

// EventSink receives worker events. Emit blocks until the event has been
// processed and returns ErrHalted once the worker must stop.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Severity grades a review finding.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityMajor      Severity = "major"
	SeverityMinor      Severity = "minor"
	SeveritySuggestion Severity = "suggestion"
)

// Blocking reports whether the finding prevents automatic completion.
func (s Severity) Blocking() bool {
	return s == SeverityCritical || s == SeverityMajor
}

// ReviewFinding is one issue raised by the review step.
type ReviewFinding struct {
	Severity    Severity `json:"severity"`
	File        string   `json:"file"`
	Line        *int     `json:"line,omitempty"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
	Category    string   `json:"category"`
}

// ReviewResult is the review step's verdict over an execution's changes.
type ReviewResult struct {
	Approved bool            `json:"approved"`
	Findings []ReviewFinding `json:"findings,omitempty"`
	Summary  string          `json:"summary"`
}
