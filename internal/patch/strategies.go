package patch

import (
	"iter"
	"regexp"
	"strings"
)

// finder yields candidate substrings of content equivalent to search under
// one strategy's notion of equality. Sequences are lazy and stop as soon as
// the consumer stops pulling.
type finder func(content, search string) iter.Seq[string]

type step struct {
	strategy Strategy
	find     finder
}

// cascade is ordered strict to fuzzy.
var cascade = []step{
	{StrategyExact, exact},
	{StrategyLineTrimmed, lineTrimmed},
	{StrategyWhitespaceNormalized, whitespaceNormalized},
	{StrategyIndentationFlexible, indentationFlexible},
	{StrategyEscapeNormalized, escapeNormalized},
	{StrategyTrimmedBoundary, trimmedBoundary},
	{StrategyContextAware, contextAware},
	{StrategyBlockAnchor, blockAnchor},
	{StrategyMultiOccurrence, multiOccurrence},
}

const (
	contextAwareMinMatch   = 0.5
	blockAnchorSingleMin   = 0.6
	blockAnchorMultipleMin = 0.5
)

// lineIndex splits content on '\n' and remembers where each line starts so
// blocks of lines can be sliced back out of the original content.
type lineIndex struct {
	content string
	lines   []string
	starts  []int
}

func newLineIndex(content string) lineIndex {
	lines := strings.Split(content, "\n")
	starts := make([]int, len(lines))
	off := 0
	for i, l := range lines {
		starts[i] = off
		off += len(l) + 1
	}
	return lineIndex{content: content, lines: lines, starts: starts}
}

// block returns lines [from, to] inclusive as they appear in content.
func (x lineIndex) block(from, to int) string {
	return x.content[x.starts[from] : x.starts[to]+len(x.lines[to])]
}

// searchLines splits search into lines, dropping one trailing empty line.
func searchLines(search string) []string {
	lines := strings.Split(search, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func exact(_, search string) iter.Seq[string] {
	return func(yield func(string) bool) {
		yield(search)
	}
}

func lineTrimmed(content, search string) iter.Seq[string] {
	return func(yield func(string) bool) {
		idx := newLineIndex(content)
		want := searchLines(search)
		for i := 0; i+len(want) <= len(idx.lines); i++ {
			ok := true
			for j, w := range want {
				if strings.TrimSpace(idx.lines[i+j]) != strings.TrimSpace(w) {
					ok = false
					break
				}
			}
			if ok && !yield(idx.block(i, i+len(want)-1)) {
				return
			}
		}
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func whitespaceNormalized(content, search string) iter.Seq[string] {
	return func(yield func(string) bool) {
		want := normalizeWhitespace(search)
		if want == "" {
			return
		}
		idx := newLineIndex(content)

		var words *regexp.Regexp
		for _, line := range idx.lines {
			got := normalizeWhitespace(line)
			if got == want {
				if !yield(line) {
					return
				}
				continue
			}
			if !strings.Contains(got, want) {
				continue
			}
			if words == nil {
				parts := strings.Fields(search)
				for i, p := range parts {
					parts[i] = regexp.QuoteMeta(p)
				}
				words = regexp.MustCompile(strings.Join(parts, `\s+`))
			}
			if m := words.FindString(line); m != "" {
				if !yield(m) {
					return
				}
			}
		}

		lines := strings.Split(search, "\n")
		if len(lines) < 2 {
			return
		}
		for i := 0; i+len(lines) <= len(idx.lines); i++ {
			b := idx.block(i, i+len(lines)-1)
			if normalizeWhitespace(b) == want && !yield(b) {
				return
			}
		}
	}
}

// stripCommonIndent removes the smallest leading indentation shared by the
// non-blank lines. Blank lines are kept as they are.
func stripCommonIndent(text string) string {
	lines := strings.Split(text, "\n")
	minIndent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	if minIndent <= 0 {
		return text
	}
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines[i] = l[minIndent:]
	}
	return strings.Join(lines, "\n")
}

func indentationFlexible(content, search string) iter.Seq[string] {
	return func(yield func(string) bool) {
		want := stripCommonIndent(search)
		n := len(strings.Split(search, "\n"))
		idx := newLineIndex(content)
		for i := 0; i+n <= len(idx.lines); i++ {
			b := idx.block(i, i+n-1)
			if stripCommonIndent(b) == want && !yield(b) {
				return
			}
		}
	}
}

var escapeSeq = regexp.MustCompile("\\\\(n|t|r|'|\"|`|\\\\|\n|\\$)")

func unescape(s string) string {
	return escapeSeq.ReplaceAllStringFunc(s, func(m string) string {
		switch m[1] {
		case 'n', '\n':
			return "\n"
		case 't':
			return "\t"
		case 'r':
			return "\r"
		default:
			return m[1:]
		}
	})
}

func escapeNormalized(content, search string) iter.Seq[string] {
	return func(yield func(string) bool) {
		want := unescape(search)
		if want != search && strings.Contains(content, want) {
			if !yield(want) {
				return
			}
		}
		n := len(strings.Split(want, "\n"))
		idx := newLineIndex(content)
		for i := 0; i+n <= len(idx.lines); i++ {
			b := idx.block(i, i+n-1)
			if unescape(b) == want && !yield(b) {
				return
			}
		}
	}
}

func trimmedBoundary(content, search string) iter.Seq[string] {
	return func(yield func(string) bool) {
		want := strings.TrimSpace(search)
		if want == search {
			return
		}
		if strings.Contains(content, want) {
			if !yield(want) {
				return
			}
		}
		n := len(strings.Split(search, "\n"))
		idx := newLineIndex(content)
		for i := 0; i+n <= len(idx.lines); i++ {
			b := idx.block(i, i+n-1)
			if strings.TrimSpace(b) == want && !yield(b) {
				return
			}
		}
	}
}

// anchorPairs yields the [start, end] line pairs whose first and last lines
// equal the trimmed first and last search lines, spanning at least three
// lines. Every closing anchor after a start is paired with it, so a block
// is never cut short at a nested closing line.
func anchorPairs(idx lineIndex, first, last string) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for i := range idx.lines {
			if strings.TrimSpace(idx.lines[i]) != first {
				continue
			}
			for j := i + 2; j < len(idx.lines); j++ {
				if strings.TrimSpace(idx.lines[j]) == last && !yield(i, j) {
					return
				}
			}
		}
	}
}

func contextAware(content, search string) iter.Seq[string] {
	return func(yield func(string) bool) {
		want := searchLines(search)
		if len(want) < 3 {
			return
		}
		idx := newLineIndex(content)
		first := strings.TrimSpace(want[0])
		last := strings.TrimSpace(want[len(want)-1])
		for i, j := range anchorPairs(idx, first, last) {
			if j-i+1 != len(want) {
				continue
			}
			matched, total := 0, 0
			for k := 1; k < len(want)-1; k++ {
				got := strings.TrimSpace(idx.lines[i+k])
				exp := strings.TrimSpace(want[k])
				if got == "" && exp == "" {
					continue
				}
				total++
				if got == exp {
					matched++
				}
			}
			if total == 0 || float64(matched)/float64(total) >= contextAwareMinMatch {
				if !yield(idx.block(i, j)) {
					return
				}
			}
		}
	}
}

// interiorSimilarity averages normalized edit similarity over the lines
// between the anchors. Interior lines without a counterpart, because the
// block is longer or shorter than the search, score 0.
func interiorSimilarity(idx lineIndex, start, end int, want []string) float64 {
	wantN, gotN := len(want)-2, end-start-1
	n := max(wantN, gotN)
	if n <= 0 {
		return 1
	}
	var sum float64
	for k := 1; k <= min(wantN, gotN); k++ {
		sum += Similarity(strings.TrimSpace(idx.lines[start+k]), strings.TrimSpace(want[k]))
	}
	return sum / float64(n)
}

func blockAnchor(content, search string) iter.Seq[string] {
	return func(yield func(string) bool) {
		want := searchLines(search)
		if len(want) < 3 {
			return
		}
		idx := newLineIndex(content)
		first := strings.TrimSpace(want[0])
		last := strings.TrimSpace(want[len(want)-1])

		type pair struct{ start, end int }
		var pairs []pair
		for i, j := range anchorPairs(idx, first, last) {
			pairs = append(pairs, pair{i, j})
		}

		switch len(pairs) {
		case 0:
			return
		case 1:
			p := pairs[0]
			if interiorSimilarity(idx, p.start, p.end, want) >= blockAnchorSingleMin {
				yield(idx.block(p.start, p.end))
			}
		default:
			best, bestScore := -1, -1.0
			for i, p := range pairs {
				if s := interiorSimilarity(idx, p.start, p.end, want); s > bestScore {
					best, bestScore = i, s
				}
			}
			if bestScore >= blockAnchorMultipleMin {
				yield(idx.block(pairs[best].start, pairs[best].end))
			}
		}
	}
}

func multiOccurrence(content, search string) iter.Seq[string] {
	return func(yield func(string) bool) {
		from := 0
		for {
			i := strings.Index(content[from:], search)
			if i < 0 {
				return
			}
			if !yield(search) {
				return
			}
			from += i + len(search)
		}
	}
}
