package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/prime30/synapse-sub013/internal/engine"
	"github.com/prime30/synapse-sub013/internal/indexer"
)

// lazyIndex builds the BM25 index on first use and rebuilds it whenever the
// workspace changed since the last query.
type lazyIndex struct {
	files Files

	mu    sync.Mutex
	idx   *indexer.BM25Index
	state map[string]string
}

func (l *lazyIndex) get() (*indexer.BM25Index, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.idx == nil {
		idx, err := indexer.NewBM25Index()
		if err != nil {
			return nil, err
		}
		l.idx = idx
		l.state = make(map[string]string)
	}
	for name, content := range l.files.All() {
		if prev, ok := l.state[name]; ok && prev == content {
			continue
		}
		if err := l.idx.IndexFile(name, content); err != nil {
			return nil, err
		}
		l.state[name] = content
	}
	return l.idx, nil
}

// Close releases the index. A later query builds a fresh one.
func (l *lazyIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.idx == nil {
		return nil
	}
	err := l.idx.Close()
	l.idx, l.state = nil, nil
	return err
}

// CodeSearchResult is one ranked chunk.
type CodeSearchResult struct {
	Path    string  `json:"path"`
	Lines   string  `json:"lines"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview"`
}

const previewChars = 240

func codeSearchImpl(idx *indexer.BM25Index, query, globs string, k int) (string, error) {
	if k <= 0 {
		k = 10
	}
	hits, err := idx.Search(query, splitGlobs(globs), k)
	if err != nil {
		return "", err
	}
	results := make([]CodeSearchResult, 0, len(hits))
	for _, h := range hits {
		preview := h.Text
		if len(preview) > previewChars {
			preview = preview[:previewChars] + "..."
		}
		results = append(results, CodeSearchResult{
			Path:    h.FilePath,
			Lines:   fmt.Sprintf("%d-%d", h.StartLine, h.EndLine),
			Score:   h.Score,
			Preview: preview,
		})
	}
	out, err := json.Marshal(map[string]any{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewCodeSearchTool creates the search_code tool. The index is private to
// the tool and follows edits made through the workspace; the returned
// Closer releases it.
func NewCodeSearchTool(files Files) (engine.Tool, io.Closer) {
	l := &lazyIndex{files: files}
	return engine.Tool{
		Name:        "search_code",
		Description: "Keyword (BM25) search over the task's files. Returns ranked spans with line ranges; follow up with read_file start_line/end_line.",
		SchemaJSON:  `{"type":"object","properties":{"query":{"type":"string","minLength":1},"globs":{"type":"string","description":"Optional: comma-separated file patterns"},"k":{"type":"integer","minimum":1,"maximum":50}},"required":["query"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			query, ok := args["query"].(string)
			if !ok {
				return "", fmt.Errorf("query must be a string")
			}
			globs, _ := args["globs"].(string)
			k := 10
			if v, ok := args["k"].(float64); ok {
				k = int(v)
			}
			idx, err := l.get()
			if err != nil {
				return "", err
			}
			return codeSearchImpl(idx, query, globs, k)
		},
		Retryable: true,
		Category:  "search",
	}, l
}
