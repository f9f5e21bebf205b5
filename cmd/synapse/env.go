package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/config"
	"github.com/prime30/synapse-sub013/internal/coordinator"
	"github.com/prime30/synapse-sub013/internal/engine"
	"github.com/prime30/synapse-sub013/internal/filestore"
	"github.com/prime30/synapse-sub013/internal/project"
)

type runtimeEnv struct {
	RepoRoot string
	Store    filestore.Store
	Project  *project.Config
	Rules    string

	close func() error
}

// Close releases the file store.
func (e *runtimeEnv) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

const (
	storeDir    = "dir"
	storeSQLite = "sqlite"
)

// parseStoreSpec splits a store selector into its kind and, for sqlite, the
// database path. Relative paths are taken from the project root.
func parseStoreSpec(spec, repoRoot string) (kind, path string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == storeDir {
		return storeDir, "", nil
	}
	kind, path, ok := strings.Cut(spec, ":")
	if !ok || kind != storeSQLite || strings.TrimSpace(path) == "" {
		return "", "", fmt.Errorf("invalid store %q: want %q or %q", spec, storeDir, "sqlite:PATH")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	return storeSQLite, path, nil
}

// openStore opens the file store selected by spec.
func openStore(ctx context.Context, spec, repoRoot string, ignore []string, log *zap.Logger) (filestore.Store, func() error, error) {
	kind, path, err := parseStoreSpec(spec, repoRoot)
	if err != nil {
		return nil, nil, err
	}
	if kind == storeSQLite {
		db, err := filestore.OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("open store %s: %w", path, err)
		}
		log.Debug("using sqlite store", zap.String("path", path))
		return db, db.Close, nil
	}

	dir, err := filestore.OpenDir(repoRoot, ignore, filestore.WithDirLogger(log))
	if err != nil {
		return nil, nil, fmt.Errorf("open project: %w", err)
	}
	if err := dir.Watch(ctx); err != nil {
		// Without the watcher, external edits surface as version conflicts
		// at write time instead of refreshing the cache.
		log.Warn("file watcher unavailable", zap.Error(err))
	}
	return dir, nil, nil
}

// resolveRepo returns the absolute project root, defaulting to the working
// directory.
func resolveRepo(repoFlag string) (string, error) {
	repoRoot := repoFlag
	if repoRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		repoRoot = wd
	}
	absRepoRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository path: %w", err)
	}
	if info, err := os.Stat(absRepoRoot); err != nil || !info.IsDir() {
		return "", fmt.Errorf("repository path is not a valid directory: %s", absRepoRoot)
	}
	return absRepoRoot, nil
}

func prepareRuntimeEnv(ctx context.Context, repoFlag, storeSpec string, log *zap.Logger) (*runtimeEnv, error) {
	absRepoRoot, err := resolveRepo(repoFlag)
	if err != nil {
		return nil, err
	}

	projCfg, err := project.LoadConfig(absRepoRoot)
	if err != nil {
		return nil, err
	}
	if projCfg == nil {
		projCfg = &project.Config{}
	}
	rules, err := project.LoadRules(absRepoRoot)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, storeSpec, absRepoRoot, projCfg.IgnorePatterns, log)
	if err != nil {
		return nil, err
	}

	log.Info("project opened",
		zap.String("root", absRepoRoot),
		zap.Bool("project_config", project.ConfigExists(absRepoRoot)),
		zap.Bool("rules", rules != ""))
	return &runtimeEnv{RepoRoot: absRepoRoot, Store: store, Project: projCfg, Rules: rules, close: closeStore}, nil
}

// coordinatorConfig layers the user config and the project config over the
// defaults. Project settings win.
func coordinatorConfig(user *config.Config, proj *project.Config) coordinator.Config {
	cfg := coordinator.DefaultConfig()
	if user.ApprovalThreshold > 0 {
		cfg.ApprovalThreshold = user.ApprovalThreshold
	}
	if user.MaxRetries != nil {
		cfg.MaxRetries = *user.MaxRetries
	}
	if user.RetryInitialDelay > 0 {
		cfg.Retry.InitialDelay = time.Duration(user.RetryInitialDelay)
	}
	if user.RetryMaxDelay > 0 {
		cfg.Retry.MaxDelay = time.Duration(user.RetryMaxDelay)
	}
	if user.ExecutionTimeout > 0 {
		cfg.ExecutionTimeout = time.Duration(user.ExecutionTimeout)
	}
	if user.MaxConcurrent > 0 {
		cfg.MaxConcurrent = user.MaxConcurrent
	}
	cfg.ReviewRequired = user.ReviewRequired

	if proj != nil {
		if proj.ApprovalThreshold != nil {
			cfg.ApprovalThreshold = *proj.ApprovalThreshold
		}
		if proj.ReviewRequired != nil {
			cfg.ReviewRequired = *proj.ReviewRequired
		}
	}
	return cfg
}

func engineConfig(user *config.Config, model string) engine.EngineConfig {
	cfg := engine.DefaultEngineConfig()
	cfg.Model = model
	if user.MaxSteps > 0 {
		cfg.MaxSteps = user.MaxSteps
	}
	if user.ToolTimeout > 0 {
		cfg.ToolTimeout = time.Duration(user.ToolTimeout)
	}
	return cfg
}

func closeEnv(env *runtimeEnv) {
	if err := env.Close(); err != nil {
		logger.Warn("failed to close file store", zap.Error(err))
	}
}
