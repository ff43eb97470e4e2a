package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/kelly/backtest"
	"github.com/rustyeddy/kelly/config"
	"github.com/rustyeddy/kelly/market"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy over historical bars",
	Long: `Backtest replays a bar file through a strategy and the simulated broker.

Orders submitted on a bar fill at the next bar's open. Entries are sized by
the configured method: a fixed fraction of cash, or the Kelly criterion
derived from the most recent closed trades once enough of them exist.

Examples:
  trader backtest -c run.yaml
  trader backtest -d data/spy.csv -s rsi -p period=10 -m kelly
  trader backtest -d data/spy.csv -s bollinger --db ./backtest.sqlite`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var btFlags runFlags

func init() {
	rootCmd.AddCommand(backtestCmd)
	btFlags.bind(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) (err error) {
	if n := len(btFlags.strategyNames()); n > 1 {
		return fmt.Errorf("backtest runs one strategy, got %d; use compare", n)
	}
	cfg, err := btFlags.load(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	strat, err := cfg.Strategy.Build()
	if err != nil {
		return err
	}
	defer closeStrategy(strat)

	ms, err := startMetrics(cmd)
	if err != nil {
		return err
	}
	defer ms.stop()

	feed, err := market.OpenCSV(cfg.Data.Path)
	if err != nil {
		return err
	}

	j, err := config.OpenJournal(ctx, cfg.Journal)
	if err != nil {
		feed.Close()
		return err
	}
	defer func() {
		if cerr := j.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close journal: %w", cerr)
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Running backtest with strategy: %s\n", strat.Name())
	fmt.Fprintf(out, "  Data: %s\n", cfg.Data.Path)
	fmt.Fprintf(out, "  Journal: %s\n\n", journalName(cfg.Journal))

	res, err := backtest.Run(ctx, backtest.RunOptions{
		RunID:      cfg.Run.ID,
		Dataset:    cfg.Data.Path,
		Instrument: cfg.Run.Instrument,
		Feed:       feed,
		Strategy:   strat,
		Sizing:     cfg.Sizing,
		Broker:     cfg.Broker.Sim(),
		Journal:    ms.journal(j, strat.Name(), string(cfg.Sizing.Method)),
		Logger:     newLogger("[backtest] "),
	})
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	printResult(out, res)
	return nil
}

func journalName(c config.JournalConfig) string {
	switch c.Type {
	case config.JournalCSV:
		return fmt.Sprintf("csv (%s, %s)", c.TradesFile, c.EquityFile)
	case config.JournalSQLite:
		return fmt.Sprintf("sqlite (%s)", c.DBPath)
	case config.JournalPostgres:
		return "postgres"
	default:
		return "none"
	}
}
