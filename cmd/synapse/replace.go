package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/patch"
)

var replaceOpts struct {
	repo    string
	file    string
	search  string
	replace string
	lines   string
	all     bool
	write   bool
}

// replaceCmd runs the matching cascade once, without a model in the loop.
var replaceCmd = &cobra.Command{
	Use:   "replace",
	Short: "Apply one search/replace edit to a project file",
	Long: `Replace locates --search in --file with the same matching cascade the
workers use and prints the resulting diff. The file is only written with
--write, and only if it did not change since it was read.`,
	Args: cobra.NoArgs,
	RunE: runReplace,
}

func init() {
	f := replaceCmd.Flags()
	f.StringVar(&replaceOpts.repo, "repo", "", "project root (default: current directory)")
	f.StringVar(&replaceOpts.file, "file", "", "file path relative to the project root")
	f.StringVar(&replaceOpts.search, "search", "", "text to find")
	f.StringVar(&replaceOpts.replace, "replace", "", "replacement text")
	f.StringVar(&replaceOpts.lines, "lines", "", "restrict the search to a 1-based line range, e.g. 10-40")
	f.BoolVar(&replaceOpts.all, "all", false, "replace every occurrence")
	f.BoolVar(&replaceOpts.write, "write", false, "write the result back")
	_ = replaceCmd.MarkFlagRequired("file")
	_ = replaceCmd.MarkFlagRequired("search")
	rootCmd.AddCommand(replaceCmd)
}

func parseLineRange(s string) (patch.LineRange, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		to = from
	}
	start, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return patch.LineRange{}, fmt.Errorf("invalid line range %q", s)
	}
	end, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return patch.LineRange{}, fmt.Errorf("invalid line range %q", s)
	}
	if start < 1 || end < start {
		return patch.LineRange{}, fmt.Errorf("invalid line range %q", s)
	}
	return patch.LineRange{Start: start, End: end}, nil
}

func runReplace(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx, replaceOpts.repo, userCfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeEnv(env)
	file, err := env.Store.Read(ctx, replaceOpts.file)
	if err != nil {
		return err
	}

	var res patch.Result
	if replaceOpts.lines != "" {
		r, perr := parseLineRange(replaceOpts.lines)
		if perr != nil {
			return perr
		}
		res, err = patch.ReplaceScoped(file.Content, replaceOpts.search, replaceOpts.replace, r, replaceOpts.all)
	} else {
		res, err = patch.Replace(file.Content, replaceOpts.search, replaceOpts.replace, replaceOpts.all)
	}
	if err != nil {
		var me *patch.MatchError
		if errors.As(err, &me) {
			logger.Debug("no unique match", zap.String("file", file.ID), zap.Int("candidates", me.Candidates))
		}
		return err
	}
	if err := patch.ValidateChange(file.ID, file.Content, res.Content, patch.ChangeBudget{}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Matched with %s (%d occurrence(s))\n", res.Strategy, res.MatchCount)
	fmt.Fprint(out, patch.UnifiedDiff(file.ID, file.Content, res.Content))
	if !replaceOpts.write {
		return nil
	}
	version, err := env.Store.Write(ctx, file.ID, res.Content, file.Version)
	if err != nil {
		return err
	}
	logger.Info("file written", zap.String("file", file.ID), zap.String("version", version))
	return nil
}
