package coordinator

import (
	"maps"
	"slices"
	"time"

	"github.com/prime30/synapse-sub013/internal/agent"
)

// WorkerRef identifies one dispatched task.
type WorkerRef struct {
	TaskID    string     `json:"task_id"`
	ParentID  string     `json:"parent_id,omitempty"`
	Role      agent.Role `json:"role"`
	Attempt   int        `json:"attempt"`
	Escalated bool       `json:"escalated,omitempty"`
}

// FileResult is the final tracked content of a file an execution changed.
type FileResult struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	BaseVersion string `json:"base_version,omitempty"`
	Created     bool   `json:"created,omitempty"`
	// Version is set once the content has been written to the store.
	Version string `json:"version,omitempty"`
}

// ExecutionState is a snapshot of one execution. Snapshots are copies and
// never change after they are returned.
type ExecutionState struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Instruction string `json:"instruction"`
	Status      Status `json:"status"`

	ActiveWorkers    []WorkerRef     `json:"active_workers,omitempty"`
	CompletedWorkers []WorkerRef     `json:"completed_workers,omitempty"`
	Messages         []agent.Message `json:"messages,omitempty"`

	ProposedChanges map[agent.Role][]agent.CodeChange `json:"proposed_changes,omitempty"`
	Files           []FileResult                      `json:"files,omitempty"`

	FileErrors   []FileError         `json:"file_errors,omitempty"`
	WorkerErrors []TaskError         `json:"worker_errors,omitempty"`
	Loops        []LoopRecord        `json:"loops,omitempty"`
	Diagnostics  []string            `json:"diagnostics,omitempty"`
	Review       *agent.ReviewResult `json:"review,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`
	// Err is the failure cause; it wraps one of the package sentinels.
	Err error `json:"-"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// Changes returns every accepted change in role order.
func (s ExecutionState) Changes() []agent.CodeChange {
	var out []agent.CodeChange
	for _, r := range agent.Roles() {
		out = append(out, s.ProposedChanges[r]...)
	}
	return out
}

// Duration is the wall-clock time of a finished execution.
func (s ExecutionState) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

func (s ExecutionState) clone() ExecutionState {
	out := s
	out.ActiveWorkers = slices.Clone(s.ActiveWorkers)
	out.CompletedWorkers = slices.Clone(s.CompletedWorkers)
	out.Messages = slices.Clone(s.Messages)
	out.Files = slices.Clone(s.Files)
	out.FileErrors = slices.Clone(s.FileErrors)
	out.WorkerErrors = slices.Clone(s.WorkerErrors)
	out.Loops = slices.Clone(s.Loops)
	out.Diagnostics = slices.Clone(s.Diagnostics)
	if s.ProposedChanges != nil {
		out.ProposedChanges = maps.Clone(s.ProposedChanges)
		for r, cs := range out.ProposedChanges {
			out.ProposedChanges[r] = slices.Clone(cs)
		}
	}
	if s.Review != nil {
		rv := *s.Review
		rv.Findings = slices.Clone(s.Review.Findings)
		out.Review = &rv
	}
	return out
}
