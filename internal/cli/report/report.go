// Package report provides the "callwatch report" command.
package report

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/callwatch/callwatch/internal/safe"
	"github.com/callwatch/callwatch/pkg/profile"
)

// NewReportCmd creates the report command, which re-renders the console
// summary of a profile report written by an instrumented binary.
func NewReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report [file]",
		Short: "Print the console summary of a profile report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := profile.DefaultOutputPath
			if len(args) == 1 {
				path = args[0]
			}

			data, err := safe.ReadFile(path, 0)
			if err != nil {
				return fmt.Errorf("read report %s: %w", path, err)
			}

			var r profile.Report
			if err := json.Unmarshal(data, &r); err != nil {
				return fmt.Errorf("parse report %s: %w", path, err)
			}

			profile.WriteConsoleSummary(cmd.OutOrStdout(), r, path)
			return nil
		},
	}
}
