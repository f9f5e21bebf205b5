package editing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prime30/synapse-sub013/internal/engine"
	"github.com/prime30/synapse-sub013/internal/patch"
)

// Editor is the part of a workspace the editing tools mutate.
type Editor interface {
	Read(ref string) (string, error)
	Replace(ref, search, replacement string, replaceAll bool) (patch.Result, error)
	Write(name, content string) (bool, error)
}

const maxSearchLines = 500

// searchReplaceImpl resolves the edit through the patch cascade. Failures are
// returned as errors so the caller records them as failed tool calls.
func searchReplaceImpl(ed Editor, filePath, oldString, newString string, replaceAll bool) (string, error) {
	if !isTextFile(filePath) {
		return "", fmt.Errorf("file type not allowed: search_replace only edits text files")
	}

	content, err := ed.Read(filePath)
	if err != nil {
		return "", err
	}
	if isGen, marker := isGeneratedFile(content); isGen {
		return "", fmt.Errorf("file appears to be generated (found %q); edit its source instead", marker)
	}
	if n := strings.Count(oldString, "\n"); n > maxSearchLines {
		return "", fmt.Errorf("old_string is %d lines (max %d); break the change into smaller edits", n, maxSearchLines)
	}

	res, err := ed.Replace(filePath, oldString, newString, replaceAll)
	if err != nil {
		var me *patch.MatchError
		if errors.As(err, &me) && patch.IsNotFound(err) {
			return "", fmt.Errorf("old_string not found in %s (file indentation: %s): %w", filePath, detectIndentation(content), err)
		}
		return "", fmt.Errorf("%s: %w", filePath, err)
	}

	out, err := json.Marshal(map[string]any{
		"path":         filePath,
		"status":       "success",
		"strategy":     res.Strategy,
		"replacements": res.MatchCount,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(out), nil
}

var textExts = map[string]bool{
	".liquid": true, ".css": true, ".scss": true, ".js": true, ".mjs": true, ".ts": true,
	".jsx": true, ".tsx": true, ".json": true, ".html": true, ".md": true, ".txt": true,
	".svg": true, ".yaml": true, ".yml": true, ".toml": true, ".go": true, ".py": true,
}

func isTextFile(name string) bool {
	return textExts[strings.ToLower(filepath.Ext(name))]
}

func isGeneratedFile(content string) (bool, string) {
	preview := content
	if len(content) > 500 {
		preview = content[:500]
	}
	for _, marker := range []string{"Code generated", "DO NOT EDIT", "Auto-generated", "automatically generated", "This file is generated"} {
		if strings.Contains(preview, marker) {
			return true, marker
		}
	}
	return false, ""
}

func detectIndentation(content string) string {
	switch {
	case strings.Contains(content, "\n\t"):
		return "tabs"
	case strings.Contains(content, "\n    "):
		return "4 spaces"
	case strings.Contains(content, "\n  "):
		return "2 spaces"
	}
	return "unknown"
}

// NewSearchReplaceTool creates the search_replace tool over ed.
func NewSearchReplaceTool(ed Editor) engine.Tool {
	return engine.Tool{
		Name:        "search_replace",
		Description: "Replaces text in a file. old_string should be copied from read_file output; small whitespace, indentation or escaping differences are tolerated. This is the primary editing tool.",
		SchemaJSON:  `{"type":"object","properties":{"file_path":{"type":"string","description":"File path as listed by list_files"},"old_string":{"type":"string","minLength":1,"description":"Text to find"},"new_string":{"type":"string","description":"Replacement text"},"replace_all":{"type":"boolean","description":"Replace every occurrence"}},"required":["file_path","old_string","new_string"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			filePath, ok := args["file_path"].(string)
			if !ok {
				return "", fmt.Errorf("file_path must be a string")
			}
			oldString, ok := args["old_string"].(string)
			if !ok {
				return "", fmt.Errorf("old_string must be a string")
			}
			newString, ok := args["new_string"].(string)
			if !ok {
				return "", fmt.Errorf("new_string must be a string")
			}
			replaceAll, _ := args["replace_all"].(bool)
			return searchReplaceImpl(ed, filePath, oldString, newString, replaceAll)
		},
		Retryable: false, // not idempotent
		Mutates:   true,
		Category:  "editing",
	}
}
