package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/kelly/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage backtest configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trader config init -o run.yaml
  trader config validate -f run.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings.

Example:
  trader config init -o run.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and its strategy can be built.

Example:
  trader config validate -f run.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "run.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  trader backtest -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	strat, err := cfg.Strategy.Build()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	closeStrategy(strat)

	s := cfg.SizingConfig()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Broker: %s ($%.2f %s, commission %.4f)\n", cfg.Broker.AccountID, cfg.Broker.Cash, cfg.Broker.Currency, cfg.Broker.Commission)
	fmt.Fprintf(out, "  Strategy: %s on %s\n", strat.Name(), cfg.Run.Instrument)
	fmt.Fprintf(out, "  Sizing: %s (fixed %.1f%%, kelly fraction %.2f after %d of %d trades)\n",
		s.Method, s.FixedFraction*100, s.KellyFraction, s.MinTradesForKelly, s.Lookback)
	fmt.Fprintf(out, "  Journal: %s\n", journalName(cfg.Journal))
	return nil
}
