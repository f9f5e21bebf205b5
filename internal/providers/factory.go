// Package providers implements engine.LLMClient for Anthropic and
// OpenAI-compatible APIs.
package providers

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/prime30/synapse-sub013/internal/engine"
)

// Settings selects and configures a provider. Empty fields fall back to the
// provider's environment variables and defaults.
type Settings struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type apiKind int

const (
	kindOpenAI apiKind = iota
	kindAnthropic
)

type preset struct {
	kind         apiKind
	envPrefix    string
	defaultModel string
	baseURL      string
	// localKey is used when the server does not check keys.
	localKey string
}

var presets = map[string]preset{
	"openai":    {kind: kindOpenAI, envPrefix: "OPENAI", defaultModel: "gpt-4o-mini"},
	"anthropic": {kind: kindAnthropic, envPrefix: "ANTHROPIC", defaultModel: "claude-3-5-sonnet-latest"},
	"kimi":      {kind: kindOpenAI, envPrefix: "KIMI", defaultModel: "kimi-k2-250711", baseURL: "https://ark.ap-southeast.bytepluses.com/api/v3"},
	"gemini":    {kind: kindOpenAI, envPrefix: "GEMINI", defaultModel: "gemini-1.5-flash", baseURL: "https://generativelanguage.googleapis.com/v1beta/openai"},
	"lmstudio":  {kind: kindOpenAI, envPrefix: "LMSTUDIO", defaultModel: "local-model", baseURL: "http://localhost:1234/v1", localKey: "lm-studio"},
	"ollama":    {kind: kindOpenAI, envPrefix: "OLLAMA", defaultModel: "llama3.1", baseURL: "http://localhost:11434/v1", localKey: "ollama"},
	"glm":       {kind: kindOpenAI, envPrefix: "GLM", defaultModel: "glm-4-plus", baseURL: "https://open.bigmodel.cn/api/paas/v4"},
	"minimax":   {kind: kindOpenAI, envPrefix: "MINIMAX", defaultModel: "abab6.5s-chat", baseURL: "https://api.minimax.chat/v1"},
	"deepseek":  {kind: kindOpenAI, envPrefix: "DEEPSEEK", defaultModel: "deepseek-chat", baseURL: "https://api.deepseek.com/v1"},
	"groq":      {kind: kindOpenAI, envPrefix: "GROQ", defaultModel: "llama-3.1-70b-versatile", baseURL: "https://api.groq.com/openai/v1"},
}

// Names lists the supported providers.
func Names() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Resolve fills the empty fields of s from <PREFIX>_API_KEY, <PREFIX>_MODEL,
// <PREFIX>_BASE_URL and the provider defaults. getenv may be nil.
func Resolve(s Settings, getenv func(string) string) (Settings, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if s.Provider == "" {
		s.Provider = "openai"
	}
	s.Provider = strings.ToLower(s.Provider)
	p, ok := presets[s.Provider]
	if !ok {
		return s, fmt.Errorf("%w %q (supported: %s)", ErrUnknownProvider, s.Provider, strings.Join(Names(), ", "))
	}

	if s.APIKey == "" {
		s.APIKey = getenv(p.envPrefix + "_API_KEY")
	}
	if s.APIKey == "" {
		s.APIKey = p.localKey
	}
	if s.Model == "" {
		s.Model = getenv(p.envPrefix + "_MODEL")
	}
	if s.Model == "" {
		s.Model = p.defaultModel
	}
	if s.BaseURL == "" {
		s.BaseURL = getenv(p.envPrefix + "_BASE_URL")
	}
	if s.BaseURL == "" {
		s.BaseURL = p.baseURL
	}
	if s.APIKey == "" {
		return s, fmt.Errorf("%s: %w (set %s_API_KEY)", s.Provider, ErrMissingAPIKey, p.envPrefix)
	}
	return s, nil
}

// New resolves s and returns the client with the model it will use.
func New(s Settings, getenv func(string) string) (engine.LLMClient, string, error) {
	s, err := Resolve(s, getenv)
	if err != nil {
		return nil, "", err
	}
	switch presets[s.Provider].kind {
	case kindAnthropic:
		c, err := NewAnthropicClient(s.APIKey, s.Model, s.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return c, s.Model, nil
	default:
		c, err := NewOpenAIClient(s.APIKey, s.Model, s.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return c, s.Model, nil
	}
}
