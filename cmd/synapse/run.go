package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/agent"
	"github.com/prime30/synapse-sub013/internal/coordinator"
	"github.com/prime30/synapse-sub013/internal/patch"
	"github.com/prime30/synapse-sub013/internal/providers"
	"github.com/prime30/synapse-sub013/internal/session"
	"github.com/prime30/synapse-sub013/internal/worker"
)

var runOpts struct {
	repo      string
	role      string
	files     []string
	apply     bool
	approve   bool
	review    bool
	showDiff  bool
	noMemory  bool
	maxChange int
}

var runCmd = &cobra.Command{
	Use:   "run [instruction]",
	Short: "Run an instruction against the project",
	Long: `Run routes the instruction to a specialist (or the project manager),
applies the proposed changes in memory and reports the result.

Changes are only written with --apply. Executions that need approval are
written when --approve is given, or later with "synapse sessions approve".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstruction,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.repo, "repo", "", "project root (default: current directory)")
	f.StringVar(&runOpts.role, "role", "", "force the first worker: "+strings.Join(roleNames(), ", "))
	f.StringSliceVarP(&runOpts.files, "file", "f", nil, "limit the request to these files (repeatable)")
	f.BoolVar(&runOpts.apply, "apply", false, "write completed changes to disk")
	f.BoolVar(&runOpts.approve, "approve", false, "write changes that await approval without asking")
	f.BoolVar(&runOpts.review, "review", false, "require a review before completion")
	f.BoolVar(&runOpts.showDiff, "diff", true, "print a unified diff per changed file")
	f.BoolVar(&runOpts.noMemory, "no-memory", false, "do not pass previous session summaries to workers")
	f.IntVar(&runOpts.maxChange, "max-lines", 0, "reject changes touching more lines than this (0 disables)")
	rootCmd.AddCommand(runCmd)
}

func roleNames() []string {
	var out []string
	for _, r := range agent.Roles() {
		if r != agent.RoleReview {
			out = append(out, r.String())
		}
	}
	return out
}

func runInstruction(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	instruction := strings.Join(args, " ")

	env, err := prepareRuntimeEnv(ctx, runOpts.repo, userCfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeEnv(env)

	var role agent.Role
	if runOpts.role != "" {
		if role, err = agent.ParseRole(runOpts.role); err != nil {
			return err
		}
	}

	llm, model, err := providers.New(providers.Settings{
		Provider: userCfg.LLMProvider,
		APIKey:   userCfg.APIKey,
		Model:    userCfg.Model,
		BaseURL:  userCfg.BaseURL,
	}, nil)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	logger.Info("llm ready", zap.String("provider", userCfg.LLMProvider), zap.String("model", model))

	opts := []worker.Option{
		worker.WithLogger(logger),
		worker.WithEngineConfig(engineConfig(userCfg, model)),
		worker.WithRules(env.Rules),
	}
	specialist := worker.NewSpecialist(llm, opts...)
	workers := make(map[agent.Role]coordinator.Worker)
	for _, r := range agent.Roles() {
		if r != agent.RoleReview {
			workers[r] = specialist
		}
	}

	cfg := coordinatorConfig(userCfg, env.Project)
	if cmd.Flags().Changed("review") {
		cfg.ReviewRequired = runOpts.review
	}
	cfg.WriteOnComplete = runOpts.apply
	cfg.Budget.MaxLinesChanged = runOpts.maxChange

	sessions := session.NewStore(cfgManager.Dir())
	var memory string
	if !runOpts.noMemory {
		if memory, err = sessions.Memory(env.RepoRoot, 5); err != nil {
			logger.Warn("session memory unavailable", zap.Error(err))
		}
	}
	saveSession := func(st coordinator.ExecutionState) {
		if _, err := sessions.Save(env.RepoRoot, st); err != nil {
			logger.Warn("failed to save session", zap.String("execution_id", st.ID), zap.Error(err))
		}
	}

	coord := coordinator.New(env.Store, workers,
		coordinator.WithLogger(logger),
		coordinator.WithConfig(cfg),
		coordinator.WithReviewer(worker.NewReviewer(llm, opts...)),
		coordinator.WithOnFinish(saveSession),
	)

	exec, err := coord.Submit(ctx, coordinator.Request{
		ProjectID:   session.ProjectHash(env.RepoRoot),
		UserID:      os.Getenv("USER"),
		Instruction: instruction,
		FileIDs:     runOpts.files,
		Role:        role,
		Memory:      memory,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "execution %s started\n", exec.ID())

	st, err := exec.Wait(ctx)
	if err != nil {
		return err
	}

	if st.Status == coordinator.StatusAwaitingApproval && runOpts.approve {
		st, err = coord.Approve(ctx, st.ID)
		saveSession(st)
		if err != nil {
			printState(cmd.OutOrStdout(), st, runOpts.showDiff)
			return fmt.Errorf("approve: %w", err)
		}
	}

	printState(cmd.OutOrStdout(), st, runOpts.showDiff)
	if st.Status == coordinator.StatusFailed {
		return fmt.Errorf("execution %s failed: %s", st.ID, st.FailureReason)
	}
	return nil
}

func printState(w io.Writer, st coordinator.ExecutionState, diffs bool) {
	fmt.Fprintf(w, "Status: %s (%s)\n", st.Status, st.Duration().Round(time.Millisecond))
	if st.FailureReason != "" {
		fmt.Fprintf(w, "Reason: %s\n", st.FailureReason)
	}

	changes := make(map[string]agent.CodeChange)
	for _, ch := range st.Changes() {
		changes[ch.FileID] = ch
	}
	if len(st.Files) > 0 {
		fmt.Fprintln(w, "\nFiles:")
	}
	for _, f := range st.Files {
		state := "pending"
		if f.Version != "" {
			state = "written"
		}
		fmt.Fprintf(w, "  %s [%s]\n", f.ID, state)
		if !diffs {
			continue
		}
		orig := changes[f.ID].OriginalContent
		if d := patch.UnifiedDiff(f.ID, orig, f.Content); d != "" {
			fmt.Fprintln(w, indent(d, "    "))
		}
	}

	if rv := st.Review; rv != nil {
		fmt.Fprintf(w, "\nReview: approved=%t %s\n", rv.Approved, rv.Summary)
		for _, f := range rv.Findings {
			loc := f.File
			if f.Line != nil {
				loc = fmt.Sprintf("%s:%d", f.File, *f.Line)
			}
			fmt.Fprintf(w, "  [%s] %s %s\n", f.Severity, loc, f.Description)
		}
	}
	for _, fe := range st.FileErrors {
		fmt.Fprintf(w, "File error: %v\n", fe)
	}
	for _, te := range st.WorkerErrors {
		fmt.Fprintf(w, "Worker error: %s (%s, attempt %d): %s %s\n", te.TaskID, te.Role, te.Attempt, te.Code, te.Message)
	}
	for _, l := range st.Loops {
		fmt.Fprintf(w, "Loop: %s %s (%s): %s\n", l.TaskID, l.Pattern, l.Action, l.Reason)
	}
	for _, d := range st.Diagnostics {
		fmt.Fprintf(w, "Note: %s\n", d)
	}
	if st.Status == coordinator.StatusAwaitingApproval {
		fmt.Fprintf(w, "\nChanges await approval: synapse sessions approve %s\n", st.ID)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
