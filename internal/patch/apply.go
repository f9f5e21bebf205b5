package patch

import (
	"fmt"
	"strings"
)

// Patch is a single search/replace pair.
type Patch struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

// Applied records how one patch of a sequence was resolved.
type Applied struct {
	Index    int      `json:"index"`
	Strategy Strategy `json:"strategy"`
}

// PatchError wraps the failure of the patch at Index in a sequence.
type PatchError struct {
	Index int
	Err   error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch %d: %v", e.Index, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

// ApplyPatches applies patches in order, each against the output of the
// previous one. When scope is set every patch is restricted to that line
// range, and the range end follows line count changes made by earlier patches.
// The first failure aborts the sequence and returns the unmodified content.
func ApplyPatches(content string, patches []Patch, scope *LineRange) (string, []Applied, error) {
	orig := content
	applied := make([]Applied, 0, len(patches))
	var rng LineRange
	if scope != nil {
		rng = *scope
	}

	for i, p := range patches {
		var (
			res Result
			err error
		)
		if scope != nil {
			res, err = ReplaceScoped(content, p.Search, p.Replace, rng, false)
		} else {
			res, err = Replace(content, p.Search, p.Replace, false)
		}
		if err != nil {
			return orig, applied, &PatchError{Index: i, Err: err}
		}
		if scope != nil {
			rng.End += strings.Count(res.Content, "\n") - strings.Count(content, "\n")
			rng.End = max(rng.End, rng.Start)
		}
		content = res.Content
		applied = append(applied, Applied{Index: i, Strategy: res.Strategy})
	}
	return content, applied, nil
}
