package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/tpgarc/arc-conformance-tests/client"
	"github.com/tpgarc/arc-conformance-tests/conformance"
	"github.com/tpgarc/arc-conformance-tests/framework"
	"github.com/tpgarc/arc-conformance-tests/store"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var params commandParams
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conformance tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTests(cmd, &params)
		},
	}
	params.addFlags(cmd.Flags())
	return cmd
}

func runTests(cmd *cobra.Command, params *commandParams) error {
	cfg, err := params.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(out, "", log.LstdFlags)
	}

	api, err := client.New(client.Options{
		BaseURL:           cfg.BaseURL,
		AccountCode:       cfg.AccountCode,
		SubscriptionKey:   cfg.SubscriptionKey,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            framework.LoggerWithPrefix(mainDebugLogger, "[arc] "),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Fprintf(out, "Running conformance tests against %s\n", api.BaseURL())
	if len(cfg.Domains) > 0 {
		fmt.Fprintf(out, "Domains: %v\n", cfg.Domains)
	}
	fmt.Fprintln(out)
	framework.PrintFilterDescription(out, params.filters)

	testLogger := &ConsoleTestLogger{
		Out:                  out,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	results, report := conformance.RunTestSuite(
		ctx,
		api,
		conformance.OptionsFromConfig(cfg, mainDebugLogger),
		params.filters.AsFilter,
		testLogger,
	)

	fmt.Fprintln(out)
	framework.PrintResults(out, results)

	if cfg.ResultsDBDir != "" {
		if err := saveReport(cmd, cfg.ResultsDBDir, report); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not record results: %s\n", err)
		}
	}

	if !results.OK() {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To re-run only the failed tests:")
		fmt.Fprintf(out, "  %s\n", rerunCommand(params, cmd.Flags(), results.FailedPaths()))
		return errTestsFailed
	}
	return nil
}

func saveReport(cmd *cobra.Command, dir string, report *conformance.RunReport) error {
	s, err := store.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if err := s.SaveRun(cmd.Context(), report); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded run %s in %s\n", report.RunID, s.Path())
	return nil
}
