package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateChange(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		budget  ChangeBudget
		wantErr bool
	}{
		{name: "theme section", file: "sections/header.liquid"},
		{name: "build is only forbidden as a segment", file: "assets/build.css"},
		{name: "env file", file: ".env", wantErr: true},
		{name: "env variant", file: "config/.env.local", wantErr: true},
		{name: "node modules", file: "node_modules/x/index.js", wantErr: true},
		{name: "parent escape", file: "sections/../../etc/passwd", wantErr: true},
		{name: "absolute", file: "/etc/passwd", wantErr: true},
		{name: "empty", file: "", wantErr: true},
		{name: "prefix allowed", file: "snippets/card.liquid", budget: ChangeBudget{AllowedPrefixes: []string{"snippets/"}}},
		{name: "prefix rejected", file: "layout/theme.liquid", budget: ChangeBudget{AllowedPrefixes: []string{"snippets/"}}, wantErr: true},
		{name: "over budget", file: "a.css", budget: ChangeBudget{MaxLinesChanged: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChange(tt.file, "a\nb\n", "x\ny\n", tt.budget)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCountChangedLines(t *testing.T) {
	added, removed := CountChangedLines("a\nb\nc\n", "a\nB\nc\n")
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	added, removed = CountChangedLines("a\n", "a\nb\nc\n")
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, removed)
}

func TestUnifiedDiff(t *testing.T) {
	assert.Empty(t, UnifiedDiff("f.css", "same\n", "same\n"))

	d := UnifiedDiff("f.css", "a\nb\n", "a\nc\n")
	assert.Contains(t, d, "--- a/f.css\n+++ b/f.css\n")
	assert.Contains(t, d, " a\n")
	assert.Contains(t, d, "-b\n")
	assert.Contains(t, d, "+c\n")
}

func TestApplyPatches(t *testing.T) {
	content := "a\nb\nc\n"

	got, applied, err := ApplyPatches(content, []Patch{{Search: "a", Replace: "A"}, {Search: "c", Replace: "C"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "A\nb\nC\n", got)
	assert.Equal(t, []Applied{{Index: 0, Strategy: StrategyExact}, {Index: 1, Strategy: StrategyExact}}, applied)

	got, applied, err = ApplyPatches(content, []Patch{{Search: "a", Replace: "A"}, {Search: "zzz", Replace: "Z"}}, nil)
	require.Error(t, err)
	assert.Equal(t, content, got)
	assert.Len(t, applied, 1)
	var pe *PatchError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Index)
	assert.True(t, IsNotFound(err))
}

func TestApplyPatchesScoped(t *testing.T) {
	content := "x\nx\ny\nx\n"
	scope := &LineRange{Start: 2, End: 3}

	got, _, err := ApplyPatches(content, []Patch{
		{Search: "x", Replace: "x1\nx2"},
		{Search: "y", Replace: "Y"},
	}, scope)
	require.NoError(t, err)
	assert.Equal(t, "x\nx1\nx2\nY\nx\n", got)
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 3, Levenshtein("kitten", "sitting"))
	assert.Equal(t, 3, Levenshtein("", "abc"))
	assert.Equal(t, 0, Levenshtein("same", "same"))
	assert.Equal(t, 1, Levenshtein("héllo", "hello"))

	assert.InDelta(t, 1.0, Similarity("", ""), 1e-9)
	assert.InDelta(t, 2.0/3.0, Similarity("abc", "abd"), 1e-9)
}
