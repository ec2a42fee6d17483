// Package cmd provides the remanejo command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"remanejo/internal/backend"
	"remanejo/internal/cli"
	"remanejo/internal/config"
	applog "remanejo/internal/log"
	"remanejo/internal/realloc"
)

// app carries what the persistent pre-run sets up for the subcommands.
type app struct {
	envFile  string
	logLevel string

	logger *applog.Logger
	cfg    *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "remanejo",
		Short: "Reallocate budget balances between natures and units",
		Long: `remanejo covers negative budget balances by moving funds from natures
with surplus, first inside the same unit and then between units of the
same fund, within reserve and per-transfer limits.

Example:
  remanejo run orcamento.xlsx --out ./saida
  remanejo run a.xlsx b.xlsx --prohibited-fund none --json
  remanejo serve
  remanejo history --limit 10`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.envFile != "" {
				cli.LoadEnvFile(a.envFile)
			} else {
				cli.LoadEnvFile()
			}
			cfg := config.Load()
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			// stdout is reserved for command output
			a.logger = cli.SetupLogger(cfg.LogLevel, cmd.ErrOrStderr())
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "environment file (default is .env)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newEnqueueCmd(a))
	return root
}

// Execute runs the command line against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) backend(ctx context.Context) (*backend.DefaultFactory, *backend.BackendResult, error) {
	return cli.Backend(ctx, a.logger, a.cfg)
}

// rules merges the configured rules with the command line overrides.
func (a *app) rules(cmd *cobra.Command, fund, natures string) (realloc.Config, error) {
	rules, err := a.cfg.Rules()
	if err != nil {
		return rules, err
	}
	if cmd.Flags().Changed("prohibited-fund") {
		code, err := realloc.ParseProhibitedFund(fund)
		if err != nil {
			return rules, err
		}
		rules.ProhibitedFund = code
	}
	if cmd.Flags().Changed("prohibited-natures") {
		rules.ProhibitedNatures = realloc.ParseCodeList(natures)
	}
	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("invalid rules: %w", err)
	}
	return rules, nil
}

func addRuleFlags(cmd *cobra.Command, fund, natures *string) {
	cmd.Flags().StringVar(fund, "prohibited-fund", "", `fund excluded from transfers, or "none"`)
	cmd.Flags().StringVar(natures, "prohibited-natures", "", "comma separated nature codes excluded from transfers")
}
