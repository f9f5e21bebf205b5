package filesystem

import (
	"context"
	"fmt"
	"path"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/prime30/synapse-sub013/internal/engine"
)

// DefaultIgnorePatterns hide files a worker never edits.
var DefaultIgnorePatterns = []string{".git", "node_modules", "*.min.js", "*.min.css"}

// listFilesImpl lists workspace files under dir, up to maxDepth directory
// levels below it (-1 for unlimited).
func listFilesImpl(files Files, dir string, maxDepth, limit int, ignorePatterns []string) (string, error) {
	dir = strings.Trim(path.Clean("/"+dir), "/")

	var matcher *gitignore.GitIgnore
	if len(ignorePatterns) > 0 {
		matcher = gitignore.CompileIgnoreLines(ignorePatterns...)
	}

	out := make([]string, 0)
	truncated := false
	for _, name := range files.Names() {
		rel := name
		if dir != "" {
			if !strings.HasPrefix(name, dir+"/") {
				continue
			}
			rel = strings.TrimPrefix(name, dir+"/")
		}
		if matcher != nil && matcher.MatchesPath(name) {
			continue
		}
		if maxDepth >= 0 && strings.Count(rel, "/") > maxDepth {
			continue
		}
		if len(out) >= limit {
			truncated = true
			break
		}
		out = append(out, name)
	}

	return marshal(map[string]any{
		"path":      dir,
		"files":     out,
		"truncated": truncated,
	})
}

// NewListFilesTool creates the list_files tool over files.
func NewListFilesTool(files Files) engine.Tool {
	return engine.Tool{
		Name:        "list_files",
		Description: "Lists the files available to this task. Use it to discover file paths before reading them.",
		SchemaJSON: `{"type":"object","properties":{
			"path":{"type":"string","description":"Optional directory prefix, empty for all files"},
			"max_depth":{"type":"integer","description":"Maximum directory depth below path. Default: -1 (unlimited)"},
			"limit":{"type":"integer","minimum":1,"description":"Maximum number of files to return. Default: 1000"},
			"ignore_patterns":{"type":"array","items":{"type":"string"},"description":"gitignore-style patterns to hide"}
		},"required":[]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			dir, _ := args["path"].(string)
			var ignore []string
			if patterns, ok := args["ignore_patterns"].([]any); ok {
				for _, p := range patterns {
					s, ok := p.(string)
					if !ok {
						return "", fmt.Errorf("ignore_patterns must contain strings")
					}
					ignore = append(ignore, s)
				}
			}
			if len(ignore) == 0 {
				ignore = DefaultIgnorePatterns
			}
			return listFilesImpl(files, dir, intArg(args, "max_depth", -1), intArg(args, "limit", 1000), ignore)
		},
		Retryable: true,
		Category:  "filesystem",
	}
}
