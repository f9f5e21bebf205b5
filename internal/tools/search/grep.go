package search

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"path"
	"regexp"
	"strings"

	"github.com/prime30/synapse-sub013/internal/engine"
)

// Files yields (name, content) pairs of the workspace being searched.
type Files interface {
	All() iter.Seq2[string, string]
}

const maxGrepResults = 100

// GrepResult is one matching line.
type GrepResult struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// grepImpl searches every workspace file line by line with a Go regexp.
func grepImpl(ctx context.Context, files Files, pattern, dir, globs string, caseInsensitive bool) (string, error) {
	expr := pattern
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}
	globList := splitGlobs(globs)
	dir = strings.Trim(dir, "/")

	results := make([]GrepResult, 0)
	truncated := false
scan:
	for name, content := range files.All() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if dir != "" && name != dir && !strings.HasPrefix(name, dir+"/") {
			continue
		}
		if !matchesAny(name, globList) {
			continue
		}
		for i, line := range strings.Split(content, "\n") {
			if !re.MatchString(line) {
				continue
			}
			if len(results) == maxGrepResults {
				truncated = true
				break scan
			}
			results = append(results, GrepResult{Path: name, Line: i + 1, Content: strings.TrimSpace(line)})
		}
	}

	out, err := json.Marshal(map[string]any{
		"pattern":   pattern,
		"results":   results,
		"count":     len(results),
		"truncated": truncated,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func splitGlobs(globs string) []string {
	var out []string
	for _, part := range strings.Split(globs, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// matchesAny matches globs against the full path and the base name.
func matchesAny(name string, globs []string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, _ := path.Match(g, name); ok {
			return true
		}
		if ok, _ := path.Match(g, path.Base(name)); ok {
			return true
		}
	}
	return false
}

// NewGrepTool creates the grep tool over files.
func NewGrepTool(files Files) engine.Tool {
	return engine.Tool{
		Name:        "grep",
		Description: "Regex search over the task's files. Use it to find selectors, Liquid tags, function definitions or references. Supports case-insensitive search and comma-separated globs.",
		SchemaJSON:  `{"type":"object","properties":{"pattern":{"type":"string","description":"Go regular expression"},"path":{"type":"string","description":"Optional: file or directory prefix"},"globs":{"type":"string","description":"Optional: comma-separated file patterns such as *.liquid"},"case_insensitive":{"type":"boolean"}},"required":["pattern"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			pattern, ok := args["pattern"].(string)
			if !ok {
				return "", fmt.Errorf("pattern must be a string")
			}
			dir, _ := args["path"].(string)
			globs, _ := args["globs"].(string)
			ci, _ := args["case_insensitive"].(bool)
			return grepImpl(ctx, files, pattern, dir, globs, ci)
		},
		Retryable: true,
		Category:  "search",
	}
}
