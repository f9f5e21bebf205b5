package session

import (
	"fmt"
	"strings"

	"github.com/prime30/synapse-sub013/internal/coordinator"
)

const titleWords = 8

// Title shortens an instruction to its first words.
func Title(instruction string) string {
	words := strings.Fields(instruction)
	if len(words) == 0 {
		return "Untitled"
	}
	if len(words) > titleWords {
		return strings.Join(words[:titleWords], " ") + "…"
	}
	return strings.Join(words, " ")
}

// Summarize describes a finished execution in one paragraph. The same
// state always yields the same text.
func Summarize(st coordinator.ExecutionState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%q ended %s", Title(st.Instruction), st.Status)
	if st.FailureReason != "" {
		fmt.Fprintf(&sb, " (%s)", st.FailureReason)
	}
	sb.WriteString(".")

	if n := len(st.Files); n > 0 {
		names := make([]string, 0, n)
		for _, f := range st.Files {
			names = append(names, f.ID)
		}
		fmt.Fprintf(&sb, " Changed %d file(s): %s.", n, strings.Join(names, ", "))
	} else {
		sb.WriteString(" No files changed.")
	}

	if n := len(st.CompletedWorkers); n > 0 {
		roles := make([]string, 0, n)
		seen := make(map[string]bool, n)
		for _, w := range st.CompletedWorkers {
			if r := w.Role.String(); !seen[r] {
				seen[r] = true
				roles = append(roles, r)
			}
		}
		fmt.Fprintf(&sb, " Workers: %s.", strings.Join(roles, ", "))
	}
	if n := len(st.FileErrors); n > 0 {
		fmt.Fprintf(&sb, " %d file error(s).", n)
	}
	if n := len(st.Loops); n > 0 {
		fmt.Fprintf(&sb, " %d loop(s) detected, first %s.", n, st.Loops[0].Pattern)
	}
	if rv := st.Review; rv != nil {
		verdict := "approved"
		if !rv.Approved {
			verdict = "not approved"
		}
		fmt.Fprintf(&sb, " Review %s with %d finding(s).", verdict, len(rv.Findings))
	}
	return sb.String()
}
