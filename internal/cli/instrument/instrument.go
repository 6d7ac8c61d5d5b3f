// Package instrument provides the "callwatch instrument" command.
package instrument

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/callwatch/callwatch/internal/config"
	"github.com/callwatch/callwatch/internal/instrument"
	"github.com/callwatch/callwatch/internal/logging"
)

// NewInstrumentCmd creates the instrument command.
func NewInstrumentCmd() *cobra.Command {
	var (
		cfgPath  string
		write    bool
		dryRun   bool
		deny     []string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "instrument [packages]",
		Short: "Rewrite packages to log dangerous API calls",
		Long: `Load the named packages (default ./...), find direct calls to denylisted
functions, and insert a call to the profiling runtime before each one.

Without -w the rewritten files are printed to stdout; with -w they are
written back in place. Already-instrumented call sites are left alone, so
running the command twice is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if len(deny) > 0 {
				cfg.Deny = deny
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logCfg := logging.DefaultConfig()
			logCfg.Level = cfg.LogLevel
			logger := logging.NewWithComponent(logCfg, "instrument")

			patterns := args
			if len(patterns) == 0 {
				patterns = []string{"./..."}
			}

			pkgs, err := instrument.Load(patterns)
			if err != nil {
				return err
			}

			scanner := instrument.NewScanner(cfg.Deny, logger)
			sites := scanner.Scan(pkgs)

			if dryRun {
				for _, site := range sites {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", site.Pos, site.Caller, site.Callee)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "found %d call sites\n", len(sites))
				return nil
			}

			ins := instrument.NewInstrumenter(instrument.Options{
				Logger:   logger,
				HookMain: cfg.HookMain,
			})
			res := ins.Apply(pkgs, sites)

			if !res.Modified {
				logger.Info().Msg("no call sites to instrument")
				return nil
			}

			written := 0
			for _, cf := range res.Files {
				data, err := instrument.Render(cf)
				if err != nil {
					return err
				}
				if !write {
					fmt.Fprintf(cmd.OutOrStdout(), "// %s\n", cf.Path)
					_, _ = cmd.OutOrStdout().Write(data)
					continue
				}
				wrote, err := instrument.WriteIfChanged(cf.Path, data)
				if err != nil {
					return err
				}
				if wrote {
					written++
				}
			}

			if write {
				fmt.Fprintf(cmd.OutOrStdout(), "instrumented %d call sites across %d files\n", res.Sites, written)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "config file (default .callwatch.yaml, or $CALLWATCH_CONFIG)")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write rewritten files in place instead of printing them")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "scan only; list call sites without rewriting")
	cmd.Flags().StringSliceVar(&deny, "deny", nil, "denylisted function names (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	return cmd
}
