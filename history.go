package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/tpgarc/arc-conformance-tests/config"
	"github.com/tpgarc/arc-conformance-tests/store"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const historyTimeFormat = "2006-01-02 15:04:05"

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		dir        string
		limit      int
		runID      string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded conformance runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("results-db") {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				dir = cfg.ResultsDBDir
			}
			if dir == "" {
				return fmt.Errorf("no results database configured; use --results-db")
			}
			s, err := store.Open(dir)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if runID != "" {
				return printRunResults(cmd, s, runID)
			}
			return printRecentRuns(cmd, s, limit)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	cmd.Flags().StringVar(&dir, "results-db", "", "directory of the SQLite results history")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run-id", "", "show the policy results of one run")
	return cmd
}

func printRecentRuns(cmd *cobra.Command, s *store.Store, limit int) error {
	runs, err := s.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDOMAINS\tPOLICIES\tRESULTS\tFAILURES\tERRORS\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.RunID, r.StartedAt.Local().Format(historyTimeFormat), r.Domains, r.Policies, r.Results,
			r.Failures, len(r.Errors), runStatus(r))
	}
	return w.Flush()
}

func runStatus(r store.RunSummary) string {
	switch {
	case !r.OK():
		return color.RedString("FAILED")
	case r.Skipped:
		return color.YellowString("skipped")
	default:
		return color.GreenString("passed")
	}
}

func printRunResults(cmd *cobra.Command, s *store.Store, runID string) error {
	run, err := s.Run(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run recorded with ID %s", runID)
	}
	results, err := s.RunResults(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %s\n", run.RunID, runStatus(*run))
	for _, e := range run.Errors {
		fmt.Fprintf(out, "  %s %s\n", color.RedString("error:"), e)
	}
	if len(results) == 0 {
		return nil
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tPOLICY\tASSERTION\tCOUNT\tTARGET\tRESULT")
	for _, r := range results {
		result := color.GreenString("pass")
		if !r.Conforming {
			result = color.RedString("FAIL")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", r.AssetURL, r.Policy, r.Assertion, r.Count, r.Target, result)
	}
	return w.Flush()
}
