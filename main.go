package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const commandName = "arc-conformance-tests"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errTestsFailed is returned by the run command after it has already printed the failures.
var errTestsFailed = errors.New("some tests failed")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   commandName,
		Short: "Accessibility conformance tests against the ARC API",
		Long: `Runs accessibility conformance tests for the domains in an ARC account.

For each selected domain, every digital asset that has initiative policies is opened in an
ARC automation session and analyzed, and the number of matching assertions in the analysis
is checked against each policy's target.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", commandName, version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
