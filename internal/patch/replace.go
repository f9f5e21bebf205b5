// Package patch resolves search/replace edits against file content.
//
// Replace runs a fixed cascade of matching strategies, strict to fuzzy. Each
// strategy lazily yields candidate substrings of the content; the first
// strategy whose candidates all land in one region of the content wins.
// Strategies that locate several regions are skipped as ambiguous so that a
// later, more specific strategy can still succeed.
package patch

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Strategy identifies the matching strategy that located a patch target.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyExact
	StrategyLineTrimmed
	StrategyWhitespaceNormalized
	StrategyIndentationFlexible
	StrategyEscapeNormalized
	StrategyTrimmedBoundary
	StrategyContextAware
	StrategyBlockAnchor
	StrategyMultiOccurrence
)

var strategyNames = map[Strategy]string{
	StrategyNone:                 "none",
	StrategyExact:                "exact",
	StrategyLineTrimmed:          "line_trimmed",
	StrategyWhitespaceNormalized: "whitespace_normalized",
	StrategyIndentationFlexible:  "indentation_flexible",
	StrategyEscapeNormalized:     "escape_normalized",
	StrategyTrimmedBoundary:      "trimmed_boundary",
	StrategyContextAware:         "context_aware",
	StrategyBlockAnchor:          "block_anchor",
	StrategyMultiOccurrence:      "multi_occurrence",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// MarshalText renders the strategy name in JSON results and logs.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of a successful Replace.
type Result struct {
	Content    string   `json:"content"`
	Strategy   Strategy `json:"strategy"`
	MatchCount int      `json:"match_count"`
}

var (
	// ErrNotFound means no strategy located the search text.
	ErrNotFound = errors.New("search text not found")
	// ErrAmbiguous means every located candidate occurred more than once.
	ErrAmbiguous = errors.New("search text matches multiple locations")
	// ErrEmptySearch rejects an empty search string.
	ErrEmptySearch = errors.New("search text is empty")
	// ErrNoChange rejects a replacement identical to the search text.
	ErrNoChange = errors.New("search and replacement are identical")
	// ErrInvalidRange rejects a line range outside the content.
	ErrInvalidRange = errors.New("invalid line range")
)

// MatchError is returned when the cascade cannot resolve a unique target.
// Kind is ErrNotFound or ErrAmbiguous; Hint tells the caller how to recover.
type MatchError struct {
	Kind       error
	Candidates int
	Hint       string
}

func (e *MatchError) Error() string {
	if errors.Is(e.Kind, ErrAmbiguous) {
		return fmt.Sprintf("%v (%d ambiguous candidates): %s", e.Kind, e.Candidates, e.Hint)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Hint)
}

func (e *MatchError) Unwrap() error { return e.Kind }

const (
	hintNotFound  = "re-read the file and retry with a line-number based edit"
	hintAmbiguous = "include more surrounding lines in the search text or provide a line hint"
)

// IsNotFound reports whether err is a not-found match failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAmbiguous reports whether err is an ambiguous match failure.
func IsAmbiguous(err error) bool { return errors.Is(err, ErrAmbiguous) }

// Replace substitutes replacement for the unique occurrence of search in
// content, or for every occurrence when replaceAll is set.
//
// Without replaceAll a strategy only succeeds when everything it located
// lies in one region of content. A search that occurs verbatim more than
// once is ambiguous outright.
func Replace(content, search, replacement string, replaceAll bool) (Result, error) {
	if search == "" {
		return Result{}, ErrEmptySearch
	}
	if search == replacement {
		return Result{}, ErrNoChange
	}
	if !replaceAll {
		if n := strings.Count(content, search); n > 1 {
			return Result{}, &MatchError{Kind: ErrAmbiguous, Candidates: n, Hint: hintAmbiguous}
		}
	}

	found := false
	ambiguous := 0
	for _, st := range cascade {
		var spans []span
		for candidate := range st.find(content, search) {
			if candidate == "" || !strings.Contains(content, candidate) {
				continue
			}
			found = true
			if replaceAll {
				return Result{
					Content:    strings.ReplaceAll(content, candidate, replacement),
					Strategy:   st.strategy,
					MatchCount: strings.Count(content, candidate),
				}, nil
			}
			spans = appendOccurrences(spans, content, candidate)
		}
		if len(spans) == 0 {
			continue
		}
		target, n := uniqueRegion(spans)
		if n != 1 {
			ambiguous += n
			continue
		}
		return Result{
			Content:    content[:target.start] + replacement + content[target.end:],
			Strategy:   st.strategy,
			MatchCount: 1,
		}, nil
	}

	if !found {
		return Result{}, &MatchError{Kind: ErrNotFound, Hint: hintNotFound}
	}
	return Result{}, &MatchError{Kind: ErrAmbiguous, Candidates: ambiguous, Hint: hintAmbiguous}
}

// span is a half-open byte range of content.
type span struct{ start, end int }

// appendOccurrences adds every occurrence of candidate, overlapping ones
// included.
func appendOccurrences(spans []span, content, candidate string) []span {
	for from := 0; from < len(content); {
		i := strings.Index(content[from:], candidate)
		if i < 0 {
			break
		}
		spans = append(spans, span{from + i, from + i + len(candidate)})
		from += i + 1
	}
	return spans
}

// uniqueRegion merges overlapping spans and reports how many disjoint
// regions remain. With exactly one region, target is the located span that
// covers it; when no single span does, the region counts as ambiguous.
func uniqueRegion(spans []span) (target span, regions int) {
	slices.SortFunc(spans, func(a, b span) int {
		if a.start != b.start {
			return a.start - b.start
		}
		return b.end - a.end
	})
	end := -1
	for _, s := range spans {
		if s.start >= end {
			regions++
		}
		end = max(end, s.end)
	}
	if regions != 1 {
		return span{}, regions
	}
	// Sorted by start, widest first: the first span covers the region iff
	// it reaches the region's end.
	if spans[0].end != end {
		return span{}, 2
	}
	return spans[0], 1
}

// LineRange is a 1-based inclusive range of lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r LineRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// ReplaceScoped behaves like Replace but only considers the lines in scope.
// Content outside the range is preserved byte for byte.
func ReplaceScoped(content, search, replacement string, scope LineRange, replaceAll bool) (Result, error) {
	idx := newLineIndex(content)
	n := len(idx.lines)
	if scope.Start < 1 || scope.End < scope.Start || scope.Start > n {
		return Result{}, fmt.Errorf("%w: %s for %d lines", ErrInvalidRange, scope, n)
	}
	end := min(scope.End, n)

	lo := idx.starts[scope.Start-1]
	hi := idx.starts[end-1] + len(idx.lines[end-1])
	res, err := Replace(content[lo:hi], search, replacement, replaceAll)
	if err != nil {
		return Result{}, err
	}
	res.Content = content[:lo] + res.Content + content[hi:]
	return res, nil
}
