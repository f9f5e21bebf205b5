// Package config loads the user's persistent configuration and applies
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Duration is a time.Duration written as "1m30s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Plain numbers are seconds.
		var secs float64
		if err := json.Unmarshal(b, &secs); err != nil {
			return fmt.Errorf("duration must be a string like \"10s\" or a number of seconds")
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds the user's persistent configuration preferences. Zero values
// mean "use the built-in default".
type Config struct {
	LLMProvider string `json:"llm_provider,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
	Model       string `json:"model,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`

	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"` // console or json

	ApprovalThreshold float64  `json:"approval_threshold,omitempty"`
	MaxRetries        *int     `json:"max_retries,omitempty"`
	RetryInitialDelay Duration `json:"retry_initial_delay,omitempty"`
	RetryMaxDelay     Duration `json:"retry_max_delay,omitempty"`
	ToolTimeout       Duration `json:"tool_timeout,omitempty"`
	ExecutionTimeout  Duration `json:"execution_timeout,omitempty"`
	MaxConcurrent     int      `json:"max_concurrent,omitempty"`
	MaxSteps          int      `json:"max_steps,omitempty"`
	ReviewRequired    bool     `json:"review_required,omitempty"`

	// Store selects where project files live: "dir" (default) or
	// "sqlite:PATH".
	Store string `json:"store,omitempty"`
}

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager returns a manager for $XDG_CONFIG_HOME/synapse.
func NewManager() (*Manager, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}
	return &Manager{configDir: filepath.Join(dir, "synapse")}, nil
}

// NewManagerAt returns a manager rooted at dir.
func NewManagerAt(dir string) *Manager {
	return &Manager{configDir: dir}
}

// Dir returns the configuration directory. Session records live below it.
func (m *Manager) Dir() string { return m.configDir }

// Path returns the absolute path to the config.json file.
func (m *Manager) Path() string {
	return filepath.Join(m.configDir, "config.json")
}

// Load reads the configuration from disk. A missing file yields an empty
// Config and no error.
func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", m.Path(), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Path(), err)
	}
	return &cfg, nil
}

// Save writes the configuration with owner-only permissions.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.Path(), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists reports whether the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.Path())
	return err == nil
}

// Validate rejects values no component can honor.
func (c *Config) Validate() error {
	switch {
	case c.ApprovalThreshold < 0 || c.ApprovalThreshold > 1:
		return fmt.Errorf("approval_threshold %v outside [0,1]", c.ApprovalThreshold)
	case c.MaxRetries != nil && *c.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative")
	case c.MaxConcurrent < 0:
		return fmt.Errorf("max_concurrent must not be negative")
	case c.MaxSteps < 0:
		return fmt.Errorf("max_steps must not be negative")
	case c.RetryInitialDelay < 0 || c.RetryMaxDelay < 0 || c.ToolTimeout < 0 || c.ExecutionTimeout < 0:
		return fmt.Errorf("durations must not be negative")
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format %q is not console or json", c.LogFormat)
	}
	return nil
}

// ApplyEnv overrides fields from SYNAPSE_* variables and LLM_PROVIDER.
// getenv may be nil.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("LLM_PROVIDER", &c.LLMProvider)
	str("SYNAPSE_PROVIDER", &c.LLMProvider)
	str("SYNAPSE_API_KEY", &c.APIKey)
	str("SYNAPSE_MODEL", &c.Model)
	str("SYNAPSE_BASE_URL", &c.BaseURL)
	str("SYNAPSE_LOG_LEVEL", &c.LogLevel)
	str("SYNAPSE_LOG_FORMAT", &c.LogFormat)
	str("SYNAPSE_STORE", &c.Store)

	var errs []error
	if v := getenv("SYNAPSE_APPROVAL_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		errs = append(errs, envErr("SYNAPSE_APPROVAL_THRESHOLD", err))
		c.ApprovalThreshold = f
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"SYNAPSE_MAX_CONCURRENT", &c.MaxConcurrent},
		{"SYNAPSE_MAX_STEPS", &c.MaxSteps},
	}
	for _, e := range ints {
		if v := getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			errs = append(errs, envErr(e.key, err))
			*e.dst = n
		}
	}
	if v := getenv("SYNAPSE_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("SYNAPSE_MAX_RETRIES", err))
		c.MaxRetries = &n
	}
	durations := []struct {
		key string
		dst *Duration
	}{
		{"SYNAPSE_RETRY_INITIAL_DELAY", &c.RetryInitialDelay},
		{"SYNAPSE_RETRY_MAX_DELAY", &c.RetryMaxDelay},
		{"SYNAPSE_TOOL_TIMEOUT", &c.ToolTimeout},
		{"SYNAPSE_EXECUTION_TIMEOUT", &c.ExecutionTimeout},
	}
	for _, e := range durations {
		if v := getenv(e.key); v != "" {
			d, err := time.ParseDuration(v)
			errs = append(errs, envErr(e.key, err))
			*e.dst = Duration(d)
		}
	}
	if v := getenv("SYNAPSE_REVIEW_REQUIRED"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envErr("SYNAPSE_REVIEW_REQUIRED", err))
		c.ReviewRequired = b
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return c.Validate()
}

func envErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", key, err)
}
