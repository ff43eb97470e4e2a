package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/kelly/backtest"
	"github.com/rustyeddy/kelly/config"
	"github.com/rustyeddy/kelly/market"
	"github.com/rustyeddy/kelly/risk"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare strategies and position sizing methods on the same data",
	Long: `Compare runs each strategy twice over the same bars, once with
fixed-fraction sizing and once with Kelly sizing. Several strategies may be
given as a comma separated list; parameters set with -p are shared by all of
them. The runs are fully isolated: each has its own broker, order tracker
and trade history.

Only the run summaries are journaled.

Examples:
  trader compare -d data/spy.csv -s random -p seed=42
  trader compare -d data/spy.csv -s rsi,bollinger,random`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

var cmpFlags runFlags

func init() {
	rootCmd.AddCommand(compareCmd)
	cmpFlags.bind(compareCmd)
}

// comparison is one cell of the strategy by method grid.
type comparison struct {
	strategy config.StrategyConfig
	method   risk.Method
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := cmpFlags.load(cmd)
	if err != nil {
		return err
	}

	strats := []config.StrategyConfig{cfg.Strategy}
	if cmd.Flags().Changed("strategy") {
		strats = strats[:0]
		for _, name := range cmpFlags.strategyNames() {
			sc := config.StrategyConfig{Name: name, Params: cfg.Strategy.Params}
			// fail before any run starts
			s, err := sc.Build()
			if err != nil {
				return err
			}
			closeStrategy(s)
			strats = append(strats, sc)
		}
	}

	bars, err := market.LoadCSV(cfg.Data.Path)
	if err != nil {
		return err
	}

	ms, err := startMetrics(cmd)
	if err != nil {
		return err
	}
	defer ms.stop()

	var grid []comparison
	for _, sc := range strats {
		for _, m := range []risk.Method{risk.Fixed, risk.Kelly} {
			grid = append(grid, comparison{strategy: sc, method: m})
		}
	}

	results, err := runComparisons(cmd, cfg, bars, ms, grid)
	if err != nil {
		return err
	}

	if err := journalRuns(cmd, cfg.Journal, results); err != nil {
		return err
	}

	printComparison(cmd.OutOrStdout(), results)
	return nil
}

func runComparisons(cmd *cobra.Command, cfg *config.Config, bars []market.Bar, ms *metricsServer, grid []comparison) ([]backtest.Result, error) {
	results := make([]backtest.Result, len(grid))
	g, ctx := errgroup.WithContext(cmd.Context())

	for i, c := range grid {
		g.Go(func() error {
			strat, err := c.strategy.Build()
			if err != nil {
				return err
			}
			defer closeStrategy(strat)

			sizing := cfg.Sizing
			sizing.Method = c.method

			res, err := backtest.Run(ctx, backtest.RunOptions{
				Dataset:    cfg.Data.Path,
				Instrument: cfg.Run.Instrument,
				Feed:       market.NewSliceFeed(bars),
				Strategy:   strat,
				Sizing:     sizing,
				Broker:     cfg.Broker.Sim(),
				Journal:    ms.journal(nil, strat.Name(), string(c.method)),
				Logger:     newLogger(fmt.Sprintf("[%s/%s] ", strat.Name(), c.method)),
			})
			if err != nil {
				return fmt.Errorf("%s %s run: %w", strat.Name(), c.method, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func journalRuns(cmd *cobra.Command, jc config.JournalConfig, results []backtest.Result) error {
	j, err := config.OpenJournal(cmd.Context(), jc)
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := j.RecordRun(r.Record()); err != nil {
			j.Close()
			return fmt.Errorf("record run %s: %w", r.RunID, err)
		}
	}
	return j.Close()
}
