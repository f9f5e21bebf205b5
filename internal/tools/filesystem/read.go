package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/prime30/synapse-sub013/internal/engine"
)

const (
	fullReadLines  = 200
	warnReadLines  = 400
	outlineContext = 30
)

// readFileImpl returns the file as JSON. Small files come back whole, large
// ones as an outline unless a line range is requested.
func readFileImpl(files Files, name string, start, end int) (string, error) {
	content, err := files.Read(name)
	if err != nil {
		return "", err
	}
	lines := strings.Split(content, "\n")
	lineCount := len(lines)

	result := map[string]any{
		"path":       name,
		"line_count": lineCount,
	}

	if start > 0 || end > 0 {
		if start < 1 {
			start = 1
		}
		if end <= 0 || end > lineCount {
			end = lineCount
		}
		if start > end {
			return "", fmt.Errorf("invalid line range %d-%d for %d lines", start, end, lineCount)
		}
		result["content"] = numbered(lines[start-1:end], start)
		result["content_type"] = "span"
		result["start_line"] = start
		result["end_line"] = end
		return marshal(result)
	}

	switch {
	case lineCount < fullReadLines:
		result["content"] = content
		result["content_type"] = "full"
	case lineCount < warnReadLines:
		result["content"] = fmt.Sprintf("LARGE FILE: %d lines. Prefer start_line/end_line for focused reads.\n\n", lineCount) + content
		result["content_type"] = "full"
	default:
		result["content"] = generateOutline(lines, name)
		result["content_type"] = "outline"
	}
	return marshal(result)
}

func numbered(lines []string, first int) string {
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%4d| %s\n", first+i, l)
	}
	return b.String()
}

// generateOutline lists structural lines for theme files and falls back to
// the head and tail of the file.
func generateOutline(lines []string, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "OUTLINE ONLY (%d lines). Read a span with start_line/end_line before editing.\n\n", len(lines))

	var marker func(string) bool
	switch path.Ext(name) {
	case ".liquid":
		marker = func(l string) bool {
			return strings.HasPrefix(l, "{% schema") || strings.HasPrefix(l, "{% section") ||
				strings.HasPrefix(l, "{% render") || strings.HasPrefix(l, "{%- render") ||
				strings.HasPrefix(l, "<section") || strings.HasPrefix(l, "<div class=")
		}
	case ".css", ".scss":
		marker = func(l string) bool {
			return strings.HasSuffix(l, "{") && !strings.HasPrefix(l, "}")
		}
	case ".js", ".ts", ".mjs":
		marker = func(l string) bool {
			return strings.HasPrefix(l, "function ") || strings.HasPrefix(l, "class ") ||
				strings.HasPrefix(l, "export ") || strings.HasPrefix(l, "import ") ||
				(strings.HasPrefix(l, "const ") && strings.Contains(l, "=>"))
		}
	}

	if marker != nil {
		for i, l := range lines {
			if t := strings.TrimSpace(l); t != "" && marker(t) {
				fmt.Fprintf(&b, "Line %4d: %s\n", i+1, t)
			}
		}
		return b.String()
	}

	for i := 0; i < outlineContext && i < len(lines); i++ {
		fmt.Fprintf(&b, "Line %4d: %s\n", i+1, lines[i])
	}
	if len(lines) > 2*outlineContext {
		fmt.Fprintf(&b, "\n... %d lines omitted ...\n\n", len(lines)-2*outlineContext)
		for i := len(lines) - outlineContext; i < len(lines); i++ {
			fmt.Fprintf(&b, "Line %4d: %s\n", i+1, lines[i])
		}
	}
	return b.String()
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// NewReadFileTool creates the read_file tool over files.
func NewReadFileTool(files Files) engine.Tool {
	return engine.Tool{
		Name:        "read_file",
		Description: "Reads a file from the task workspace. Large files return an outline; pass start_line and end_line to read a numbered span.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"File path as listed by list_files"},"start_line":{"type":"integer","minimum":1},"end_line":{"type":"integer","minimum":1}},"required":["path"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			p, ok := args["path"].(string)
			if !ok {
				return "", fmt.Errorf("path must be a string")
			}
			return readFileImpl(files, p, intArg(args, "start_line", 0), intArg(args, "end_line", 0))
		},
		Retryable: true,
		Category:  "filesystem",
	}
}
