package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	m := NewManagerAt(t.TempDir())
	assert.False(t, m.Exists())

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "synapse"))
	retries := 3
	in := &Config{
		LLMProvider:      "anthropic",
		Model:            "claude",
		MaxRetries:       &retries,
		ExecutionTimeout: Duration(90 * time.Second),
		ReviewRequired:   true,
	}
	require.NoError(t, m.Save(in))
	assert.True(t, m.Exists())

	info, err := os.Stat(m.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(m.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"execution_timeout": "1m30s"`)

	out, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"approval_threshold": 1.5}`), 0o600))

	_, err := NewManagerAt(dir).Load()
	assert.ErrorContains(t, err, "approval_threshold")
}

func TestDurationAcceptsSeconds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"tool_timeout": 45}`), 0o600))

	cfg, err := NewManagerAt(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, Duration(45*time.Second), cfg.ToolTimeout)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LLM_PROVIDER":               "openai",
		"SYNAPSE_PROVIDER":           "deepseek",
		"SYNAPSE_MODEL":              "deepseek-chat",
		"SYNAPSE_APPROVAL_THRESHOLD": "0.8",
		"SYNAPSE_MAX_RETRIES":        "0",
		"SYNAPSE_EXECUTION_TIMEOUT":  "2m",
		"SYNAPSE_REVIEW_REQUIRED":    "true",
		"SYNAPSE_STORE":              "sqlite:.synapse/files.db",
	}
	cfg := &Config{Model: "from-file", MaxConcurrent: 2}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "deepseek", cfg.LLMProvider)
	assert.Equal(t, "deepseek-chat", cfg.Model)
	assert.Equal(t, 0.8, cfg.ApprovalThreshold)
	require.NotNil(t, cfg.MaxRetries)
	assert.Zero(t, *cfg.MaxRetries)
	assert.Equal(t, Duration(2*time.Minute), cfg.ExecutionTimeout)
	assert.True(t, cfg.ReviewRequired)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, "sqlite:.synapse/files.db", cfg.Store)
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	env := map[string]string{
		"SYNAPSE_MAX_STEPS":    "many",
		"SYNAPSE_TOOL_TIMEOUT": "soon",
	}
	err := (&Config{}).ApplyEnv(func(k string) string { return env[k] })
	require.Error(t, err)
	assert.ErrorContains(t, err, "SYNAPSE_MAX_STEPS")
	assert.ErrorContains(t, err, "SYNAPSE_TOOL_TIMEOUT")
}
