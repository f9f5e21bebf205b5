package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/config"
	"github.com/prime30/synapse-sub013/internal/coordinator"
	"github.com/prime30/synapse-sub013/internal/filestore"
	"github.com/prime30/synapse-sub013/internal/patch"
	"github.com/prime30/synapse-sub013/internal/project"
)

func TestCoordinatorConfigPrecedence(t *testing.T) {
	retries := 0
	user := &config.Config{
		ApprovalThreshold: 0.5,
		MaxRetries:        &retries,
		RetryInitialDelay: config.Duration(time.Second),
		ExecutionTimeout:  config.Duration(time.Minute),
		MaxConcurrent:     2,
		ReviewRequired:    true,
	}

	cfg := coordinatorConfig(user, nil)
	assert.Equal(t, 0.5, cfg.ApprovalThreshold)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, coordinator.DefaultConfig().Retry.MaxDelay, cfg.Retry.MaxDelay)
	assert.Equal(t, time.Minute, cfg.ExecutionTimeout)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.True(t, cfg.ReviewRequired)

	noReview := false
	threshold := 0.9
	cfg = coordinatorConfig(user, &project.Config{ReviewRequired: &noReview, ApprovalThreshold: &threshold})
	assert.Equal(t, 0.9, cfg.ApprovalThreshold)
	assert.False(t, cfg.ReviewRequired)
}

func TestCoordinatorConfigDefaults(t *testing.T) {
	cfg := coordinatorConfig(&config.Config{}, &project.Config{})
	assert.Equal(t, coordinator.DefaultConfig(), cfg)
}

func TestEngineConfig(t *testing.T) {
	cfg := engineConfig(&config.Config{MaxSteps: 7, ToolTimeout: config.Duration(5 * time.Second)}, "m")
	assert.Equal(t, "m", cfg.Model)
	assert.Equal(t, 7, cfg.MaxSteps)
	assert.Equal(t, 5*time.Second, cfg.ToolTimeout)
}

func TestParseLineRange(t *testing.T) {
	tests := []struct {
		in      string
		want    patch.LineRange
		wantErr bool
	}{
		{in: "10-40", want: patch.LineRange{Start: 10, End: 40}},
		{in: "7", want: patch.LineRange{Start: 7, End: 7}},
		{in: " 3 - 4 ", want: patch.LineRange{Start: 3, End: 4}},
		{in: "0-2", wantErr: true},
		{in: "5-2", wantErr: true},
		{in: "a-b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLineRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintState(t *testing.T) {
	line := 2
	st := coordinator.ExecutionState{
		ID:     "exec-1",
		Status: coordinator.StatusAwaitingApproval,
		ProposedChanges: map[agent.Role][]agent.CodeChange{
			agent.RoleCSS: {{
				FileID:          "assets/base.css",
				OriginalContent: "body {\n  color: red;\n}\n",
				ProposedContent: "body {\n  color: blue;\n}\n",
				Confidence:      0.4,
			}},
		},
		Files: []coordinator.FileResult{{ID: "assets/base.css", Content: "body {\n  color: blue;\n}\n"}},
		Review: &agent.ReviewResult{
			Summary: "one issue",
			Findings: []agent.ReviewFinding{{
				Severity: agent.Severity("minor"), File: "assets/base.css", Line: &line, Description: "use a variable",
			}},
		},
	}

	var buf bytes.Buffer
	printState(&buf, st, true)
	out := buf.String()
	assert.Contains(t, out, "Status: awaiting_approval")
	assert.Contains(t, out, "assets/base.css [pending]")
	assert.Contains(t, out, "+  color: blue;")
	assert.Contains(t, out, "[minor] assets/base.css:2 use a variable")
	assert.Contains(t, out, "synapse sessions approve exec-1")
}

func TestRoleNamesExcludeReview(t *testing.T) {
	names := roleNames()
	assert.NotContains(t, names, "review")
	assert.Contains(t, names, "project_manager")
}

func TestParseStoreSpec(t *testing.T) {
	root := filepath.FromSlash("/work/theme")
	tests := []struct {
		spec     string
		wantKind string
		wantPath string
		wantErr  bool
	}{
		{spec: "", wantKind: storeDir},
		{spec: "dir", wantKind: storeDir},
		{spec: "sqlite:files.db", wantKind: storeSQLite, wantPath: filepath.Join(root, "files.db")},
		{spec: "sqlite:" + filepath.FromSlash("/var/lib/files.db"), wantKind: storeSQLite, wantPath: filepath.FromSlash("/var/lib/files.db")},
		{spec: "sqlite:", wantErr: true},
		{spec: "sqlite", wantErr: true},
		{spec: "postgres:db", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			kind, path, err := parseStoreSpec(tt.spec, root)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestPrepareRuntimeEnvSQLiteStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "layout.liquid"), []byte("on disk\n"), 0o644))

	env, err := prepareRuntimeEnv(ctx, root, "sqlite:files.db", zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &filestore.SQLiteStore{}, env.Store)

	// The database is the source of truth; files on disk are not visible.
	ids, err := env.Store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	version, err := env.Store.Write(ctx, "layout.liquid", "in db\n", "")
	require.NoError(t, err)
	require.NoError(t, env.Close())
	assert.FileExists(t, filepath.Join(root, "files.db"))

	env, err = prepareRuntimeEnv(ctx, root, "sqlite:files.db", zap.NewNop())
	require.NoError(t, err)
	defer env.Close()
	f, err := env.Store.Read(ctx, "layout.liquid")
	require.NoError(t, err)
	assert.Equal(t, "in db\n", f.Content)
	assert.Equal(t, version, f.Version)
}

func TestPrepareRuntimeEnvDirStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "layout.liquid"), []byte("on disk\n"), 0o644))

	env, err := prepareRuntimeEnv(ctx, root, "", zap.NewNop())
	require.NoError(t, err)
	defer env.Close()
	require.IsType(t, &filestore.DirStore{}, env.Store)

	f, err := env.Store.Read(ctx, "layout.liquid")
	require.NoError(t, err)
	assert.Equal(t, "on disk\n", f.Content)
}

func TestPrepareRuntimeEnvRejectsUnknownStore(t *testing.T) {
	_, err := prepareRuntimeEnv(context.Background(), t.TempDir(), "redis:6379", zap.NewNop())
	assert.ErrorContains(t, err, "invalid store")
}
