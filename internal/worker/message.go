package worker

import (
	"fmt"
	"strings"

	"github.com/prime30/synapse-sub013/internal/agent"
)

// maxConversation caps how many conversation entries are repeated to a
// worker. Older entries are summarized by the session layer.
const maxConversation = 12

// TaskMessage renders the first user message of a task run.
func TaskMessage(task agent.Task) string {
	var sb strings.Builder
	sb.WriteString("TASK:\n")
	sb.WriteString(strings.TrimSpace(task.Instruction))
	sb.WriteString("\n")

	if len(task.Delegations) > 0 {
		sb.WriteString("\nDELEGATED BY THE PROJECT MANAGER:\n")
		for _, d := range task.Delegations {
			fmt.Fprintf(&sb, "- %s: %s\n", d.Role, d.Description)
		}
	}

	if len(task.Context.Files) > 0 {
		sb.WriteString("\nFILES:\n")
		for _, f := range task.Context.Files {
			lines := strings.Count(f.Content, "\n")
			if f.Content != "" && !strings.HasSuffix(f.Content, "\n") {
				lines++
			}
			fmt.Fprintf(&sb, "- %s (%d lines)\n", f.Name, lines)
		}
	}

	if d := strings.TrimSpace(task.Context.Design); d != "" {
		sb.WriteString("\nDESIGN NOTES:\n")
		sb.WriteString(d)
		sb.WriteString("\n")
	}
	if m := strings.TrimSpace(task.Context.Memory); m != "" {
		sb.WriteString("\nPROJECT MEMORY:\n")
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	if d := strings.TrimSpace(task.Context.Diagnostics); d != "" {
		sb.WriteString("\nDIAGNOSTICS:\n")
		sb.WriteString(d)
		sb.WriteString("\n")
	}

	conv := task.Context.Conversation
	if len(conv) > maxConversation {
		conv = conv[len(conv)-maxConversation:]
	}
	if len(conv) > 0 {
		sb.WriteString("\nRECENT CONVERSATION:\n")
		for _, m := range conv {
			fmt.Fprintf(&sb, "[%s] %s\n", m.From, strings.TrimSpace(m.Content))
		}
	}
	return sb.String()
}
