package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prime30/synapse-sub013/internal/coordinator"
	"github.com/prime30/synapse-sub013/internal/session"
)

var (
	sessionsRepo string
	sessionsJSON bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the executions recorded for the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repo, err := resolveRepo(sessionsRepo)
		if err != nil {
			return err
		}
		metas, err := session.NewStore(cfgManager.Dir()).List(repo)
		if err != nil {
			return err
		}
		if len(metas) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded for this project.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tSAVED\tTITLE")
		for _, m := range metas {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Status, m.SavedAt.Local().Format("2006-01-02 15:04"), m.Title)
		}
		return tw.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the recorded state of one execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := resolveRepo(sessionsRepo)
		if err != nil {
			return err
		}
		rec, err := session.NewStore(cfgManager.Dir()).Load(args[0], repo)
		if err != nil {
			return err
		}
		if sessionsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n\n", rec.Title, rec.Summary)
		printState(cmd.OutOrStdout(), rec.State, true)
		return nil
	},
}

var sessionsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Write the changes of an execution that awaits approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := prepareRuntimeEnv(ctx, sessionsRepo, userCfg.Store, logger)
		if err != nil {
			return err
		}
		defer closeEnv(env)
		store := session.NewStore(cfgManager.Dir())
		rec, err := store.Load(args[0], env.RepoRoot)
		if err != nil {
			return err
		}
		if rec.State.Status != coordinator.StatusAwaitingApproval {
			return fmt.Errorf("execution %s is %s, not awaiting approval", rec.State.ID, rec.State.Status)
		}

		st, applyErr := coordinator.ApplyApproved(ctx, env.Store, rec.State)
		if _, err := store.Save(env.RepoRoot, st); err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), st, false)
		return applyErr
	},
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsRepo, "repo", "", "project root (default: current directory)")
	sessionsShowCmd.Flags().BoolVar(&sessionsJSON, "json", false, "print the raw record")
	sessionsCmd.AddCommand(sessionsShowCmd, sessionsApproveCmd)
	rootCmd.AddCommand(sessionsCmd)
}
