package patch

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeBudget limits what a single proposed file change may do.
type ChangeBudget struct {
	MaxLinesChanged int      // additions + deletions, 0 means unlimited
	AllowedPrefixes []string // e.g. ["sections/", "snippets/"], empty allows all
}

// ForbiddenPaths are path segments or globs that must never be modified.
var ForbiddenPaths = []string{
	".env",
	".env.*",
	".git",
	".github",
	".idea",
	".vscode",
	".gitignore",
	".gitattributes",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"node_modules",
	".DS_Store",
}

// ValidateChange checks a proposed file rewrite against path rules and the
// change budget.
func ValidateChange(file, original, proposed string, budget ChangeBudget) error {
	if file == "" {
		return fmt.Errorf("change has empty file path")
	}
	if err := isForbiddenPath(file); err != nil {
		return err
	}
	if len(budget.AllowedPrefixes) > 0 && !hasAllowedPrefix(file, budget.AllowedPrefixes) {
		return fmt.Errorf("path %s does not match any allowed prefix: %v", file, budget.AllowedPrefixes)
	}
	if budget.MaxLinesChanged > 0 {
		added, removed := CountChangedLines(original, proposed)
		if added+removed > budget.MaxLinesChanged {
			return fmt.Errorf("change to %s touches %d lines, max is %d", file, added+removed, budget.MaxLinesChanged)
		}
	}
	return nil
}

func lineDiff(a, b string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	return dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)
}

func splitDiffLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// CountChangedLines returns the number of added and removed lines between a and b.
func CountChangedLines(a, b string) (added, removed int) {
	for _, d := range lineDiff(a, b) {
		n := len(splitDiffLines(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

// UnifiedDiff renders a whole-file line diff with ---/+++ headers. Unchanged
// lines are kept as context. It returns "" when a and b are equal.
func UnifiedDiff(file, a, b string) string {
	if a == b {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", file, file)
	for _, d := range lineDiff(a, b) {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, l := range splitDiffLines(d.Text) {
			sb.WriteString(prefix)
			sb.WriteString(l)
			if !strings.HasSuffix(l, "\n") {
				sb.WriteString("\n\\ No newline at end of file\n")
			}
		}
	}
	return sb.String()
}

// isForbiddenPath checks every path segment against ForbiddenPaths.
func isForbiddenPath(p string) error {
	normalized := filepath.ToSlash(p)
	if filepath.IsAbs(p) || strings.HasPrefix(normalized, "/") {
		return fmt.Errorf("path %s is absolute, must be relative to the project root", p)
	}
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return fmt.Errorf("path %s contains '..', which is not allowed", p)
		}
		lower := strings.ToLower(seg)
		for _, forbidden := range ForbiddenPaths {
			if ok, _ := path.Match(strings.ToLower(forbidden), lower); ok {
				return fmt.Errorf("path %s matches forbidden pattern: %s", p, forbidden)
			}
		}
	}
	return nil
}

func hasAllowedPrefix(p string, prefixes []string) bool {
	normalized := filepath.ToSlash(p)
	for _, prefix := range prefixes {
		if strings.HasPrefix(normalized, filepath.ToSlash(prefix)) {
			return true
		}
	}
	return false
}
