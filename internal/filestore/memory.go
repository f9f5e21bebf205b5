package filestore

import (
	"context"
	"slices"
	"strconv"
	"sync"
)

// MemoryStore keeps files in memory with monotonically increasing versions.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]memFile
}

type memFile struct {
	content string
	version int
}

// NewMemoryStore returns a store seeded with files (id -> content) at version 1.
func NewMemoryStore(files map[string]string) *MemoryStore {
	s := &MemoryStore{files: make(map[string]memFile, len(files))}
	for id, content := range files {
		s.files[id] = memFile{content: content, version: 1}
	}
	return s
}

func (s *MemoryStore) Read(ctx context.Context, id string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return File{}, notFound(id)
	}
	return File{ID: id, Content: f.content, Version: strconv.Itoa(f.version)}, nil
}

func (s *MemoryStore) Write(ctx context.Context, id, content, expected string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.files[id]
	actual := ""
	if ok {
		actual = strconv.Itoa(cur.version)
	}
	if expected != AnyVersion && expected != actual {
		return "", &ConflictError{ID: id, Expected: expected, Actual: actual}
	}
	next := memFile{content: content, version: cur.version + 1}
	s.files[id] = next
	return strconv.Itoa(next.version), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
