package editing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prime30/synapse-sub013/internal/engine"
)

func writeImpl(ed Editor, path, content string) (string, error) {
	if !isTextFile(path) {
		return "", fmt.Errorf("file type not allowed: write_file only writes text files")
	}

	if existing, err := ed.Read(path); err == nil && existing == content {
		return marshal(map[string]any{
			"path":   path,
			"status": "skipped",
			"lines":  strings.Count(content, "\n") + 1,
		})
	}

	created, err := ed.Write(path, content)
	if err != nil {
		return "", err
	}
	status := "overwritten"
	if created {
		status = "created"
	}
	return marshal(map[string]any{
		"path":   path,
		"status": status,
		"lines":  strings.Count(content, "\n") + 1,
	})
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(b), nil
}

// NewWriteTool creates the write_file tool over ed.
func NewWriteTool(ed Editor) engine.Tool {
	return engine.Tool{
		Name:        "write_file",
		Description: "Writes complete file contents. Creates new files or OVERWRITES existing ones. Use search_replace for edits to existing files.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"File path"},"content":{"type":"string","description":"Full file content"}},"required":["path","content"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path, ok := args["path"].(string)
			if !ok {
				return "", fmt.Errorf("path must be a string")
			}
			content, ok := args["content"].(string)
			if !ok {
				return "", fmt.Errorf("content must be a string")
			}
			return writeImpl(ed, path, content)
		},
		Retryable: false,
		Mutates:   true,
		Category:  "editing",
	}
}
