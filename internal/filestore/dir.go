package filestore

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	gitignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
)

// DefaultIgnorePatterns are never listed or written by a DirStore.
var DefaultIgnorePatterns = []string{
	".git/",
	"node_modules/",
	".synapse/",
	".DS_Store",
}

// DirStore serves files from a project directory. Versions are content
// hashes, so edits made outside the store are detected as conflicts.
type DirStore struct {
	root   string
	ignore *gitignore.GitIgnore
	log    *zap.Logger

	writeMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]File
}

// DirOption configures a DirStore.
type DirOption func(*DirStore)

// WithDirLogger sets the logger used for watcher diagnostics.
func WithDirLogger(l *zap.Logger) DirOption {
	return func(s *DirStore) { s.log = l }
}

// OpenDir returns a store rooted at root. Patterns from the root .gitignore
// and extra are excluded from listing and writes.
func OpenDir(root string, extra []string, opts ...DirOption) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	patterns := slices.Clone(DefaultIgnorePatterns)
	patterns = append(patterns, readIgnoreFile(filepath.Join(abs, ".gitignore"))...)
	patterns = append(patterns, extra...)

	s := &DirStore{
		root:   abs,
		ignore: gitignore.CompileIgnoreLines(patterns...),
		log:    zap.NewNop(),
		cache:  make(map[string]File),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func readIgnoreFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines
}

// Root returns the absolute project directory.
func (s *DirStore) Root() string { return s.root }

func hashVersion(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:8])
}

// resolve maps a slash-separated id to an absolute path inside root.
func (s *DirStore) resolve(id string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the project root", id)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *DirStore) Read(ctx context.Context, id string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	s.mu.RLock()
	f, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}

	path, err := s.resolve(id)
	if err != nil {
		return File{}, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return File{}, notFound(id)
	}
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", id, err)
	}
	f = File{ID: id, Content: string(b), Version: hashVersion(b)}

	s.mu.Lock()
	s.cache[id] = f
	s.mu.Unlock()
	return f, nil
}

func (s *DirStore) Write(ctx context.Context, id, content, expected string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(id)
	if err != nil {
		return "", err
	}
	if s.ignore.MatchesPath(filepath.ToSlash(id)) {
		return "", fmt.Errorf("path %s is ignored", id)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Check against the disk, not the cache.
	actual := ""
	if b, err := os.ReadFile(path); err == nil {
		actual = hashVersion(b)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", id, err)
	}
	if expected != AnyVersion && expected != actual {
		return "", &ConflictError{ID: id, Expected: expected, Actual: actual}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".synapse-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename into place: %w", err)
	}

	version := hashVersion([]byte(content))
	s.mu.Lock()
	s.cache[id] = File{ID: id, Content: content, Version: version}
	s.mu.Unlock()
	return version, nil
}

func (s *DirStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if s.ignore.MatchesPath(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if s.ignore.MatchesPath(rel) || strings.HasPrefix(d.Name(), ".synapse-") {
			return nil
		}
		ids = append(ids, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// Invalidate drops the cached content of id.
func (s *DirStore) Invalidate(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
}

// Watch invalidates cached files changed on disk until ctx is done.
func (s *DirStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, rerr := filepath.Rel(s.root, path); rerr == nil && rel != "." && s.ignore.MatchesPath(filepath.ToSlash(rel)+"/") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			s.log.Warn("failed to watch directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		w.Close()
		return fmt.Errorf("failed to walk project: %w", err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				s.handleEvent(w, ev)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (s *DirStore) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event) {
	rel, err := filepath.Rel(s.root, ev.Name)
	if err != nil {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.Add(ev.Name); err != nil {
				s.log.Warn("failed to watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
			return
		}
	}
	if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		s.Invalidate(filepath.ToSlash(rel))
	}
}
