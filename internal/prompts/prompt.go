// Package prompts holds the versioned system prompts of every worker role.
package prompts

type PromptVersion string

// PromptV1 is the current version of the role prompts.
const PromptV1 PromptVersion = "1.0.0"

// Prompt is one registered system prompt.
type Prompt struct {
	ID          string // role name or "shared"
	Version     PromptVersion
	Content     string
	Description string
	Tags        []string
}
