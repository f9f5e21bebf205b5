package engine

import (
	"context"
	"strings"
)

const summarizeSystem = `You compress prior chat history for a coding assistant. Preserve decisions, file paths, selectors, errors and open questions. Omit pleasantries and redundant tool output.`

// SummarizeOld asks the model for a short summary of window.
func SummarizeOld(ctx context.Context, llm LLMClient, st *State, window []ChatMessage, truncateAt int) (ChatMessage, error) {
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: summarizeSystem},
		{Role: RoleUser, Content: "Summarize the following history in <= 200 tokens, preserve facts and decisions:\n\n" + RenderForSummary(window, truncateAt)},
	}
	resp, err := llm.Chat(ctx, st.Model, msgs, nil, ChatOptions{MaxOutputTokens: 256})
	if err != nil {
		return ChatMessage{}, err
	}
	return ChatMessage{Role: RoleUser, Content: "<history_summary>\n" + resp.Assistant.Content + "\n</history_summary>"}, nil
}

// RenderForSummary flattens messages into a transcript, truncating long
// tool output when truncateAt is positive.
func RenderForSummary(ms []ChatMessage, truncateAt int) string {
	var b strings.Builder
	for _, m := range ms {
		content := m.Content
		if m.Role == RoleTool && truncateAt > 0 && len(content) > truncateAt {
			content = content[:truncateAt] + "\n[truncated]"
		}
		b.WriteString("[" + string(m.Role) + "] ")
		b.WriteString(content)
		for _, c := range m.ToolCalls {
			b.WriteString("\n→ " + c.Name)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// compactionSplit returns the index of the first message to keep verbatim.
// The boundary never separates tool results from the assistant message that
// requested them.
func compactionSplit(history []ChatMessage, keepRecent int) int {
	cut := len(history) - keepRecent
	for cut < len(history) && history[cut].Role == RoleTool {
		cut++
	}
	return cut
}

// maybeCompact replaces older history with a summary once it grows past
// the configured threshold. The first two messages (system prompt and task)
// are always kept.
func maybeCompact(ctx context.Context, llm LLMClient, st *State, hooks Hooks, cfg CompactionConfig) error {
	const pinned = 2
	if !cfg.Enabled || cfg.Threshold <= 0 || len(st.History)-pinned <= cfg.Threshold {
		return nil
	}
	cut := compactionSplit(st.History, cfg.KeepRecent)
	if cut <= pinned {
		return nil
	}

	summary, err := SummarizeOld(ctx, llm, st, st.History[pinned:cut], cfg.TruncateToolsAt)
	if err != nil {
		return err
	}

	before := st.History
	after := make([]ChatMessage, 0, pinned+1+len(before)-cut)
	after = append(after, before[:pinned]...)
	after = append(after, summary)
	after = append(after, before[cut:]...)
	st.History = after

	edits := st.EditsSinceCompaction
	st.EditsSinceCompaction = 0
	st.Compactions++
	hooks.OnCompaction(ctx, st, before, after, edits)
	return nil
}
