// Package project reads per-project settings and rules from the .synapse
// directory at a project root.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Dir is the directory name for per-project configuration.
	Dir = ".synapse"
	// ConfigFile is the name of the project configuration file.
	ConfigFile = "config.json"
	// RulesFile is the name of the custom rules file.
	RulesFile = "rules"
)

// Config holds per-project settings. Pointer fields distinguish "unset"
// from an explicit false or zero, so they can override user defaults.
type Config struct {
	ReviewRequired    *bool    `json:"review_required,omitempty"`
	ApprovalThreshold *float64 `json:"approval_threshold,omitempty"`
	// IgnorePatterns are gitignore-style patterns hidden from workers and
	// never written.
	IgnorePatterns []string `json:"ignore_patterns,omitempty"`
}

func configPath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, ConfigFile)
}

func rulesPath(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, RulesFile)
}

// ConfigExists checks if a project configuration file exists.
func ConfigExists(repoRoot string) bool {
	_, err := os.Stat(configPath(repoRoot))
	return err == nil
}

// LoadConfig reads the project configuration from disk.
// Returns nil and no error if the config file does not exist.
func LoadConfig(repoRoot string) (*Config, error) {
	data, err := os.ReadFile(configPath(repoRoot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse project config: %w", err)
	}
	if t := cfg.ApprovalThreshold; t != nil && (*t < 0 || *t > 1) {
		return nil, fmt.Errorf("project config: approval_threshold %v outside [0,1]", *t)
	}
	return &cfg, nil
}

// SaveConfig writes the project configuration, creating the .synapse
// directory if needed.
func SaveConfig(repoRoot string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Join(repoRoot, Dir), 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", Dir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project config: %w", err)
	}
	if err := os.WriteFile(configPath(repoRoot), data, 0o644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}
	return nil
}

// LoadRules reads custom rules from the .synapse/rules file.
// Returns empty string and no error if the file does not exist.
func LoadRules(repoRoot string) (string, error) {
	data, err := os.ReadFile(rulesPath(repoRoot))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read rules file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
