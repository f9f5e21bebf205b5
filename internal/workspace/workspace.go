// Package workspace is a worker's private view of the files it was given.
//
// Edits never touch the file store. Each successful search/replace is
// recorded as a patch so the coordinator can replay it against the file's
// current content; a whole-file write or a multi-occurrence replace drops the
// patch list and the change is carried by its proposed content alone.
package workspace

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/patch"
)

// ErrUnknownFile is returned for a path that is not part of the workspace.
var ErrUnknownFile = errors.New("file not in workspace")

type file struct {
	id       string
	name     string
	original string
	content  string
	created  bool
	patches  []patch.Patch
	// replayable is false once the content can no longer be reproduced from
	// original by replaying patches.
	replayable bool
}

func (f *file) dirty() bool { return f.created || f.content != f.original }

// Workspace holds file contents for one task. It is safe for concurrent use.
type Workspace struct {
	mu    sync.RWMutex
	files map[string]*file // keyed by name
	byID  map[string]string
}

// New builds a workspace from the snapshots of a task context.
func New(snaps []agent.FileSnapshot) *Workspace {
	w := &Workspace{
		files: make(map[string]*file, len(snaps)),
		byID:  make(map[string]string, len(snaps)),
	}
	for _, s := range snaps {
		name := s.Name
		if name == "" {
			name = s.ID
		}
		id := s.ID
		if id == "" {
			id = name
		}
		w.files[name] = &file{id: id, name: name, original: s.Content, content: s.Content, replayable: true}
		w.byID[id] = name
	}
	return w
}

func (w *Workspace) lookup(ref string) (*file, error) {
	if f, ok := w.files[ref]; ok {
		return f, nil
	}
	if name, ok := w.byID[ref]; ok {
		return w.files[name], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFile, ref)
}

// Read returns the current content of a file referenced by name or id.
func (w *Workspace) Read(ref string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	f, err := w.lookup(ref)
	if err != nil {
		return "", err
	}
	return f.content, nil
}

// Names returns all file names in sorted order.
func (w *Workspace) Names() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.files))
	for name := range w.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// All iterates over name and current content in name order.
func (w *Workspace) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, name := range w.Names() {
			content, err := w.Read(name)
			if err != nil {
				continue
			}
			if !yield(name, content) {
				return
			}
		}
	}
}

// Replace runs the patch cascade against the file's current content and
// records the edit.
func (w *Workspace) Replace(ref, search, replacement string, replaceAll bool) (patch.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.lookup(ref)
	if err != nil {
		return patch.Result{}, err
	}
	res, err := patch.Replace(f.content, search, replacement, replaceAll)
	if err != nil {
		return patch.Result{}, err
	}
	f.content = res.Content
	if replaceAll && res.MatchCount > 1 {
		f.replayable = false
	} else {
		f.patches = append(f.patches, patch.Patch{Search: search, Replace: replacement})
	}
	return res, nil
}

// Write replaces a file's whole content, creating it when it does not exist.
// It reports whether the file was created.
func (w *Workspace) Write(name, content string) (bool, error) {
	if name == "" {
		return false, errors.New("file name is empty")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.lookup(name)
	if err != nil {
		w.files[name] = &file{id: name, name: name, content: content, created: true}
		w.byID[name] = name
		return true, nil
	}
	if f.content != content {
		f.content = content
		f.replayable = false
	}
	return false, nil
}

// Changed returns the names of files whose content differs from the snapshot.
func (w *Workspace) Changed() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []string
	for name, f := range w.files {
		if f.dirty() {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Changes converts every modified file into a CodeChange. Patches are
// attached only when replaying them against the original reproduces the
// current content.
func (w *Workspace) Changes(reasoning string, confidence float64) []agent.CodeChange {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.files))
	for name, f := range w.files {
		if f.dirty() {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	changes := make([]agent.CodeChange, 0, len(names))
	for _, name := range names {
		f := w.files[name]
		c := agent.CodeChange{
			FileID:          f.id,
			FileName:        f.name,
			OriginalContent: f.original,
			ProposedContent: f.content,
			Reasoning:       reasoning,
			Confidence:      confidence,
		}
		if f.replayable && !f.created && len(f.patches) > 0 {
			c.Patches = slices.Clone(f.patches)
		}
		changes = append(changes, c)
	}
	return changes
}
