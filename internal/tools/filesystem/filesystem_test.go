package filesystem

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
)

// mockFiles is an in-memory Files implementation.
type mockFiles map[string]string

func (m mockFiles) Read(ref string) (string, error) {
	c, ok := m[ref]
	if !ok {
		return "", errors.New("file not in workspace")
	}
	return c, nil
}

func (m mockFiles) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", s, err)
	}
	return out
}

func TestReadFileImpl(t *testing.T) {
	big := strings.Repeat("body { margin: 0; }\n", 450)
	files := mockFiles{
		"sections/header.liquid": "<header>\n</header>\n",
		"assets/big.css":         big,
	}

	tests := []struct {
		name       string
		path       string
		start, end int
		wantType   string
		wantErr    bool
	}{
		{name: "Read small file", path: "sections/header.liquid", wantType: "full"},
		{name: "Read missing file", path: "missing.liquid", wantErr: true},
		{name: "Large file gives outline", path: "assets/big.css", wantType: "outline"},
		{name: "Span of large file", path: "assets/big.css", start: 10, end: 12, wantType: "span"},
		{name: "Inverted span", path: "assets/big.css", start: 12, end: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readFileImpl(files, tt.path, tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readFileImpl() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			res := decode(t, got)
			if res["content_type"] != tt.wantType {
				t.Errorf("content_type = %v, want %s", res["content_type"], tt.wantType)
			}
		})
	}
}

func TestReadFileSpanIsNumbered(t *testing.T) {
	files := mockFiles{"a.css": "one\ntwo\nthree\n"}
	got, err := readFileImpl(files, "a.css", 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if c := decode(t, got)["content"].(string); c != "   2| two\n" {
		t.Errorf("content = %q", c)
	}
}

func TestListFilesImpl(t *testing.T) {
	files := mockFiles{
		"layout/theme.liquid":          "",
		"sections/header.liquid":       "",
		"sections/blocks/promo.liquid": "",
		"assets/app.min.js":            "",
		"assets/app.js":                "",
	}

	tests := []struct {
		name          string
		path          string
		maxDepth      int
		limit         int
		wantFiles     []string
		wantTruncated bool
	}{
		{
			name:      "All files with default ignores",
			maxDepth:  -1,
			limit:     1000,
			wantFiles: []string{"assets/app.js", "layout/theme.liquid", "sections/blocks/promo.liquid", "sections/header.liquid"},
		},
		{
			name:      "Directory prefix with depth",
			path:      "sections/",
			maxDepth:  0,
			limit:     1000,
			wantFiles: []string{"sections/header.liquid"},
		},
		{
			name:          "Limit truncates",
			maxDepth:      -1,
			limit:         2,
			wantFiles:     []string{"assets/app.js", "layout/theme.liquid"},
			wantTruncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := listFilesImpl(files, tt.path, tt.maxDepth, tt.limit, DefaultIgnorePatterns)
			if err != nil {
				t.Fatalf("listFilesImpl() error = %v", err)
			}
			res := decode(t, got)
			var names []string
			for _, v := range res["files"].([]any) {
				names = append(names, v.(string))
			}
			if !slices.Equal(names, tt.wantFiles) {
				t.Errorf("files = %v, want %v", names, tt.wantFiles)
			}
			if res["truncated"] != tt.wantTruncated {
				t.Errorf("truncated = %v, want %v", res["truncated"], tt.wantTruncated)
			}
		})
	}
}
