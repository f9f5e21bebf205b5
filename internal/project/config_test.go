package project

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestConfigExists(t *testing.T) {
	tempDir := t.TempDir()

	if ConfigExists(tempDir) {
		t.Error("ConfigExists should return false when config doesn't exist")
	}

	dir := filepath.Join(tempDir, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s dir: %v", Dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(`{"review_required": true}`), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if !ConfigExists(tempDir) {
		t.Error("ConfigExists should return true when config exists")
	}
}

func TestLoadConfig_NotExists(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Errorf("LoadConfig should not error when file doesn't exist: %v", err)
	}
	if cfg != nil {
		t.Error("LoadConfig should return nil when file doesn't exist")
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	tempDir := t.TempDir()

	review := false
	threshold := 0.85
	cfg := &Config{
		ReviewRequired:    &review,
		ApprovalThreshold: &threshold,
		IgnorePatterns:    []string{"assets/*.min.js", "locales/"},
	}
	if err := SaveConfig(tempDir, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tempDir, Dir)); os.IsNotExist(err) {
		t.Errorf("%s directory should be created", Dir)
	}

	loaded, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadConfig returned nil")
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("loaded %+v, want %+v", loaded, cfg)
	}
	if loaded.ReviewRequired == nil || *loaded.ReviewRequired {
		t.Error("explicit review_required=false must survive a round trip")
	}
}

func TestLoadConfig_Unset(t *testing.T) {
	tempDir := t.TempDir()
	if err := SaveConfig(tempDir, &Config{}); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.ReviewRequired != nil || loaded.ApprovalThreshold != nil {
		t.Errorf("unset fields should stay nil, got %+v", loaded)
	}
}

func TestLoadConfig_InvalidThreshold(t *testing.T) {
	tempDir := t.TempDir()
	dir := filepath.Join(tempDir, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(`{"approval_threshold": 2}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(tempDir); err == nil {
		t.Error("expected an error for approval_threshold=2")
	}
}

func TestLoadRules_NotExists(t *testing.T) {
	rules, err := LoadRules(t.TempDir())
	if err != nil {
		t.Errorf("LoadRules should not error when file doesn't exist: %v", err)
	}
	if rules != "" {
		t.Errorf("LoadRules should return empty string when file doesn't exist, got: %s", rules)
	}
}

func TestLoadRules(t *testing.T) {
	tempDir := t.TempDir()

	dir := filepath.Join(tempDir, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s dir: %v", Dir, err)
	}

	expectedRules := "Use rem units.\nNever inline styles in Liquid."
	if err := os.WriteFile(filepath.Join(dir, RulesFile), []byte(expectedRules+"\n\n"), 0644); err != nil {
		t.Fatalf("Failed to write rules file: %v", err)
	}

	rules, err := LoadRules(tempDir)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if rules != expectedRules {
		t.Errorf("Expected rules:\n%s\nGot:\n%s", expectedRules, rules)
	}
}
