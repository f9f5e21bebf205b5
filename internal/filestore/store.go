// Package filestore provides versioned file storage for executions.
//
// Every write returns a new version token. Writers pass the version they
// last read so that concurrent modifications are detected instead of lost.
package filestore

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrVersionConflict = errors.New("file version conflict")
)

// AnyVersion disables the version check on Write.
const AnyVersion = ""

// File is a stored file with its current version token.
type File struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Version string `json:"version"`
}

// Store is the file store contract used by the coordinator.
type Store interface {
	Read(ctx context.Context, id string) (File, error)
	// Write stores content when the current version equals expected and
	// returns the new version. Use AnyVersion to write unconditionally.
	Write(ctx context.Context, id, content, expected string) (string, error)
	List(ctx context.Context) ([]string, error)
}

// ConflictError reports the versions involved in a rejected write.
type ConflictError struct {
	ID       string
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: %s expected version %q, found %q", ErrVersionConflict, e.ID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrVersionConflict }

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
