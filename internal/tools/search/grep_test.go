package search

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"testing"
)

// mockFiles implements Files over a map in sorted name order.
type mockFiles map[string]string

func (m mockFiles) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}

func TestGrepImpl(t *testing.T) {
	files := mockFiles{
		"sections/header.liquid": "<header>\n  {% render 'logo' %}\n</header>\n",
		"snippets/logo.liquid":   "<img src=\"{{ 'logo.png' | asset_url }}\">\n",
		"assets/base.css":        ".Logo { width: 10px; }\n",
		"assets/many.css":        generateLines(150),
	}

	tests := []struct {
		name            string
		pattern         string
		path            string
		globs           string
		caseInsensitive bool
		wantResults     int
		wantTruncated   bool
		wantErr         bool
	}{
		{name: "Basic match", pattern: "logo", wantResults: 2},
		{name: "Case insensitive", pattern: "logo", caseInsensitive: true, wantResults: 3},
		{name: "Glob filter", pattern: "logo", globs: "*.css, *.js", caseInsensitive: true, wantResults: 1},
		{name: "Path prefix", pattern: "logo", path: "snippets/", wantResults: 1},
		{name: "No matches", pattern: "foobar", wantResults: 0},
		{name: "Truncated results", pattern: "common", wantResults: 100, wantTruncated: true},
		{name: "Invalid regex", pattern: "invalid(", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resultJSON, err := grepImpl(context.Background(), files, tt.pattern, tt.path, tt.globs, tt.caseInsensitive)
			if (err != nil) != tt.wantErr {
				t.Errorf("grepImpl() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			var result map[string]any
			if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
				t.Fatalf("failed to unmarshal result: %v", err)
			}
			results := result["results"].([]any)
			if len(results) != tt.wantResults {
				t.Errorf("got %d results, want %d", len(results), tt.wantResults)
			}
			if truncated := result["truncated"].(bool); truncated != tt.wantTruncated {
				t.Errorf("truncated = %v, want %v", truncated, tt.wantTruncated)
			}
		})
	}
}

func TestCodeSearchFollowsEdits(t *testing.T) {
	files := mockFiles{
		"assets/cart.js":       "class CartDrawer {\n  open() {}\n}\n",
		"sections/cart.liquid": "{{ cart.item_count }}\n",
	}
	tool, index := NewCodeSearchTool(files)
	defer index.Close()

	out, err := tool.Fn(context.Background(), map[string]any{"query": "CartDrawer"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"path":"assets/cart.js"`) {
		t.Errorf("missing hit: %s", out)
	}

	files["assets/cart.js"] = "class MiniCart {}\n"
	out, err = tool.Fn(context.Background(), map[string]any{"query": "CartDrawer"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"count":0`) {
		t.Errorf("stale hit after edit: %s", out)
	}
}

func TestCodeSearchClose(t *testing.T) {
	files := mockFiles{"snippets/price.liquid": "{{ product.price | money }}\n"}
	tool, index := NewCodeSearchTool(files)

	if err := index.Close(); err != nil {
		t.Fatalf("Close before first query: %v", err)
	}
	if _, err := tool.Fn(context.Background(), map[string]any{"query": "money"}); err != nil {
		t.Fatal(err)
	}
	l := index.(*lazyIndex)
	if l.idx == nil {
		t.Fatal("query did not build an index")
	}
	if err := index.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.idx != nil || l.state != nil {
		t.Error("Close kept the index")
	}

	out, err := tool.Fn(context.Background(), map[string]any{"query": "money"})
	if err != nil {
		t.Fatalf("query after Close: %v", err)
	}
	if !strings.Contains(out, `"path":"snippets/price.liquid"`) {
		t.Errorf("missing hit after rebuild: %s", out)
	}
	if err := index.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func generateLines(count int) string {
	var sb strings.Builder
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf(".common-%d { margin: %dpx; }\n", i, i))
	}
	return sb.String()
}
