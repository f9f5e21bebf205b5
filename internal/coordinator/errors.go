package coordinator

import (
	"errors"
	"fmt"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/filestore"
	"github.com/prime30/synapse-sub013/internal/patch"
	"github.com/prime30/synapse-sub013/internal/stuck"
)

var (
	ErrStuckLoop        = errors.New("worker stuck in a loop")
	ErrWorkerFailed     = errors.New("worker failed")
	ErrRetriesExhausted = errors.New("worker retries exhausted")
	ErrCancelled        = errors.New("execution cancelled")
	ErrTimeout          = errors.New("execution timed out")
	ErrUnknownRole      = errors.New("no worker registered for role")
	ErrTerminal         = errors.New("execution already finished")
	ErrNotFound         = errors.New("execution not found")
	ErrBusy             = errors.New("execution has active workers")

	errUnavailable = errors.New("file unavailable")
)

// FileErrorKind classifies a failure local to one file.
type FileErrorKind string

const (
	FilePatchNotFound   FileErrorKind = "patch_not_found"
	FilePatchAmbiguous  FileErrorKind = "patch_ambiguous"
	FileVersionConflict FileErrorKind = "version_conflict"
	FileInvalidChange   FileErrorKind = "invalid_change"
	FileUnavailable     FileErrorKind = "unavailable"
	FileWriteFailed     FileErrorKind = "write_failed"
)

// FileError reports a change that could not be applied to one file. It does
// not fail the execution; the caller may retry that file alone.
type FileError struct {
	FileID  string        `json:"file_id"`
	TaskID  string        `json:"task_id,omitempty"`
	Role    agent.Role    `json:"role,omitempty"`
	Kind    FileErrorKind `json:"kind"`
	Message string        `json:"message"`
	// PatchIndex is the failing patch for patch errors, -1 otherwise.
	PatchIndex int `json:"patch_index"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.FileID, e.Kind, e.Message)
}

// TaskError is a failed worker run as reported to the caller.
type TaskError struct {
	TaskID      string     `json:"task_id"`
	Role        agent.Role `json:"role"`
	Attempt     int        `json:"attempt"`
	Code        string     `json:"code"`
	Message     string     `json:"message"`
	Recoverable bool       `json:"recoverable"`
	Retried     bool       `json:"retried"`
}

// LoopRecord is a loop detected in a worker's activity and what was done
// about it.
type LoopRecord struct {
	TaskID  string        `json:"task_id"`
	Role    agent.Role    `json:"role"`
	Pattern stuck.Pattern `json:"pattern"`
	Reason  string        `json:"reason"`
	// Action is "escalated" or "failed".
	Action string `json:"action"`
}

// classifyApplyError maps a patch or store error to a FileErrorKind.
func classifyApplyError(err error) (FileErrorKind, int) {
	idx := -1
	var pe *patch.PatchError
	if errors.As(err, &pe) {
		idx = pe.Index
	}
	switch {
	case patch.IsAmbiguous(err):
		return FilePatchAmbiguous, idx
	case patch.IsNotFound(err):
		return FilePatchNotFound, idx
	case errors.Is(err, filestore.ErrVersionConflict):
		return FileVersionConflict, idx
	case errors.Is(err, errUnavailable), errors.Is(err, filestore.ErrNotFound):
		return FileUnavailable, idx
	default:
		return FileInvalidChange, idx
	}
}
