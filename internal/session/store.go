// Package session persists finished executions per project so later runs
// can be listed and receive a memory of earlier work.
package session

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/prime30/synapse-sub013/internal/coordinator"
)

// ErrNotFound is returned by Load for an unknown execution.
var ErrNotFound = errors.New("session not found")

// Store handles persistence of execution records.
type Store struct {
	basePath string
	now      func() time.Time
}

// NewStore creates a store under configPath/sessions. configPath is
// typically the user config directory.
func NewStore(configPath string) *Store {
	return &Store{
		basePath: filepath.Join(configPath, "sessions"),
		now:      time.Now,
	}
}

// ProjectHash generates a consistent hash for a project path.
func ProjectHash(projectPath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(projectPath)))
	return hex.EncodeToString(hash[:])[:12]
}

func (s *Store) file(projectHash, id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid execution id %q", id)
	}
	return filepath.Join(s.basePath, projectHash, id+".json"), nil
}

// Save persists the final state of an execution for projectPath.
func (s *Store) Save(projectPath string, st coordinator.ExecutionState) (*Record, error) {
	rec := &Record{
		ProjectPath: filepath.Clean(projectPath),
		ProjectHash: ProjectHash(projectPath),
		Title:       Title(st.Instruction),
		Summary:     Summarize(st),
		SavedAt:     s.now(),
		State:       st,
	}
	path, err := s.file(rec.ProjectHash, st.ID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to write session file: %w", err)
	}
	return rec, nil
}

// Load retrieves the record of one execution.
func (s *Store) Load(id, projectPath string) (*Record, error) {
	path, err := s.file(ProjectHash(projectPath), id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &rec, nil
}

// List returns the records of a project, newest first. Unreadable files
// are skipped.
func (s *Store) List(projectPath string) ([]Meta, error) {
	dir := filepath.Join(s.basePath, ProjectHash(projectPath))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Meta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list session directory: %w", err)
	}

	metas := make([]Meta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		metas = append(metas, Meta{
			ID:        rec.State.ID,
			Title:     rec.Title,
			Status:    rec.State.Status,
			StartedAt: rec.State.StartedAt,
			SavedAt:   rec.SavedAt,
			Summary:   rec.Summary,
		})
	}

	slices.SortFunc(metas, func(a, b Meta) int {
		if c := b.SavedAt.Compare(a.SavedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return metas, nil
}

// Memory renders the summaries of the last n executions of a project,
// oldest first, for the memory field of a new request.
func (s *Store) Memory(projectPath string, n int) (string, error) {
	metas, err := s.List(projectPath)
	if err != nil || len(metas) == 0 || n <= 0 {
		return "", err
	}
	metas = metas[:min(n, len(metas))]
	slices.Reverse(metas)

	var sb strings.Builder
	for _, m := range metas {
		fmt.Fprintf(&sb, "- %s: %s\n", m.SavedAt.UTC().Format(time.DateOnly), m.Summary)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
