package indexer

import (
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// BM25Result is one scored chunk.
type BM25Result struct {
	Chunk
	Score float64
}

// BM25Index provides BM25 keyword search over file chunks. The index lives
// in memory for the lifetime of one task.
type BM25Index struct {
	index bleve.Index

	mu     sync.RWMutex
	chunks map[string]Chunk
	files  map[string][]string // path -> chunk ids
}

// NewBM25Index creates an empty in-memory index.
func NewBM25Index() (*BM25Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create BM25 index: %w", err)
	}
	return &BM25Index{
		index:  idx,
		chunks: make(map[string]Chunk),
		files:  make(map[string][]string),
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	chunkMapping := bleve.NewDocumentMapping()

	filePathField := bleve.NewTextFieldMapping()
	filePathField.Analyzer = keyword.Name
	filePathField.Store = true
	filePathField.Index = true
	chunkMapping.AddFieldMappingsAt("file_path", filePathField)

	langField := bleve.NewTextFieldMapping()
	langField.Analyzer = keyword.Name
	langField.Store = true
	langField.Index = true
	chunkMapping.AddFieldMappingsAt("lang", langField)

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	textField.Index = true
	chunkMapping.AddFieldMappingsAt("text", textField)

	indexMapping.DefaultMapping = chunkMapping
	return indexMapping
}

// IndexFile replaces all chunks of filePath with chunks of content.
func (b *BM25Index) IndexFile(filePath, content string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, id := range b.files[filePath] {
		batch.Delete(id)
		delete(b.chunks, id)
	}

	chunks := ChunkParagraphs(filePath, content)
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		doc := map[string]any{
			"file_path": c.FilePath,
			"lang":      string(c.Lang),
			"text":      c.Text,
		}
		if err := batch.Index(c.ChunkID, doc); err != nil {
			return fmt.Errorf("failed to add chunk %s to batch: %w", c.ChunkID, err)
		}
		b.chunks[c.ChunkID] = c
		ids = append(ids, c.ChunkID)
	}
	b.files[filePath] = ids
	return b.index.Batch(batch)
}

// IndexAll indexes every (path, content) pair of files.
func (b *BM25Index) IndexAll(files iter.Seq2[string, string]) error {
	for p, content := range files {
		if err := b.IndexFile(p, content); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the top k chunks for text, optionally restricted to paths
// matching one of globs.
func (b *BM25Index) Search(text string, globs []string, k int) ([]BM25Result, error) {
	q := bleve.NewMatchQuery(text)
	q.SetField("text")
	var combined query.Query = q

	if len(globs) > 0 {
		disjunction := bleve.NewDisjunctionQuery()
		for _, glob := range globs {
			wq := bleve.NewWildcardQuery(convertGlobToPattern(glob))
			wq.SetField("file_path")
			disjunction.AddQuery(wq)
		}
		combined = bleve.NewConjunctionQuery(q, disjunction)
	}

	req := bleve.NewSearchRequest(combined)
	req.Size = k
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("BM25 search failed: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BM25Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		c, ok := b.chunks[hit.ID]
		if !ok {
			continue
		}
		out = append(out, BM25Result{Chunk: c, Score: hit.Score})
	}
	return out, nil
}

// Close releases the index.
func (b *BM25Index) Close() error {
	return b.index.Close()
}

// convertGlobToPattern converts a glob pattern to a bleve wildcard pattern.
// Examples: "*.css" -> "*.css", "sections/*" -> "*sections/*"
func convertGlobToPattern(glob string) string {
	pattern := strings.ReplaceAll(glob, "**", "*")
	if !strings.HasPrefix(pattern, "*") {
		pattern = "*" + pattern
	}
	return pattern
}
