// Package main provides the callwatch binary.
//
// callwatch statically instruments calls to denylisted functions in Go
// packages and ships the runtime library that aggregates and reports the
// resulting observations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/callwatch/callwatch/internal/cli/instrument"
	"github.com/callwatch/callwatch/internal/cli/report"
	"github.com/callwatch/callwatch/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "callwatch",
		Short:         "callwatch - dangerous API call instrumentation and profiling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(instrument.NewInstrumentCmd())
	rootCmd.AddCommand(report.NewReportCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("callwatch %s\n", version.String())
		},
	}
}
