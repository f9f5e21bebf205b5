package prompts

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholder matches unresolved {{variable}} markers. Liquid output tags
// such as {{ product.title }} contain spaces or dots and never match.
var placeholder = regexp.MustCompile(`\{\{[a-z_]+\}\}`)

// PromptBuilder helps compose prompts from fragments and variables.
type PromptBuilder struct {
	basePrompt *Prompt
	fragments  []string
	variables  map[string]string
}

// NewPromptBuilder creates a new prompt builder based on a registered prompt.
func NewPromptBuilder(registry *PromptRegistry, id string, version PromptVersion) (*PromptBuilder, error) {
	basePrompt, err := registry.Get(id, version)
	if err != nil {
		return nil, fmt.Errorf("failed to get base prompt: %w", err)
	}

	return &PromptBuilder{
		basePrompt: basePrompt,
		fragments:  []string{basePrompt.Content},
		variables:  make(map[string]string),
	}, nil
}

// AddFragment appends a fragment to the prompt. Empty fragments are ignored.
func (b *PromptBuilder) AddFragment(text string) *PromptBuilder {
	if strings.TrimSpace(text) != "" {
		b.fragments = append(b.fragments, text)
	}
	return b
}

// AddRules appends project rules under their own heading.
func (b *PromptBuilder) AddRules(rules string) *PromptBuilder {
	if strings.TrimSpace(rules) == "" {
		return b
	}
	return b.AddFragment("PROJECT RULES (from the project's rules file, they override the defaults above):\n" + strings.TrimSpace(rules))
}

// SetVariable sets a variable for template substitution.
func (b *PromptBuilder) SetVariable(key, value string) *PromptBuilder {
	b.variables[key] = value
	return b
}

// Build constructs the final prompt string. A {{variable}} left without a
// value is an error.
func (b *PromptBuilder) Build() (string, error) {
	result := strings.Join(b.fragments, "\n\n")

	for key, value := range b.variables {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{%s}}", key), value)
	}
	if missing := placeholder.FindString(result); missing != "" {
		return "", fmt.Errorf("prompt %s: no value for %s", b.basePrompt.ID, missing)
	}
	return result, nil
}
