package coordinator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/filestore"
)

// trackedFile is the execution's view of one file. Changes are applied to
// current one at a time while mu is held.
type trackedFile struct {
	mu sync.Mutex

	id          string
	loaded      bool
	exists      bool
	base        string
	baseVersion string
	current     string
	touched     bool
}

func (f *trackedFile) changed() bool {
	return f.current != f.base || (!f.exists && f.touched)
}

// tracker holds the current content of every file an execution has seen.
// The map lock only guards membership; content is guarded per file.
type tracker struct {
	store filestore.Store

	mu    sync.Mutex
	files map[string]*trackedFile
}

func newTracker(store filestore.Store) *tracker {
	return &tracker{store: store, files: make(map[string]*trackedFile)}
}

func (t *tracker) entry(id string) *trackedFile {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[id]
	if !ok {
		f = &trackedFile{id: id}
		t.files[id] = f
	}
	return f
}

// with runs fn with the file locked, loading it from the store on first use.
// A file missing from the store is tracked as new with empty content.
func (t *tracker) with(ctx context.Context, id string, fn func(f *trackedFile) error) error {
	f := t.entry(id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		sf, err := t.store.Read(ctx, id)
		switch {
		case err == nil:
			f.exists = true
			f.base, f.current, f.baseVersion = sf.Content, sf.Content, sf.Version
		case errors.Is(err, filestore.ErrNotFound):
		default:
			return fmt.Errorf("%w: %s: %v", errUnavailable, id, err)
		}
		f.loaded = true
	}
	return fn(f)
}

// snapshot returns the current content of ids for a new task.
func (t *tracker) snapshot(ctx context.Context, ids []string) ([]agent.FileSnapshot, error) {
	out := make([]agent.FileSnapshot, 0, len(ids))
	for _, id := range ids {
		err := t.with(ctx, id, func(f *trackedFile) error {
			if !f.exists && !f.touched {
				return fmt.Errorf("%w: %s", filestore.ErrNotFound, id)
			}
			out = append(out, agent.FileSnapshot{ID: id, Name: id, Content: f.current, Version: f.baseVersion})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// results lists the changed files sorted by id.
func (t *tracker) results() []FileResult {
	t.mu.Lock()
	ids := slices.Sorted(maps.Keys(t.files))
	files := make([]*trackedFile, len(ids))
	for i, id := range ids {
		files[i] = t.files[id]
	}
	t.mu.Unlock()

	var out []FileResult
	for _, f := range files {
		f.mu.Lock()
		if f.loaded && f.changed() {
			out = append(out, FileResult{
				ID:          f.id,
				Content:     f.current,
				BaseVersion: f.baseVersion,
				Created:     !f.exists,
			})
		}
		f.mu.Unlock()
	}
	return out
}
