package cmd

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "A bar-driven backtester with fixed and Kelly position sizing",
	Long: `Trader replays historical bars through a trading strategy and a simulated
broker, tracking every order from submission to fill.

It provides tools for:
  - Backtesting strategies on OHLCV bar files
  - Comparing fixed-fraction and Kelly criterion position sizing
  - Journaling orders, trades and equity to CSV, SQLite or Postgres
  - Querying journaled trades and runs`,
	SilenceUsage: true,
}

var verbose bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log order and trade activity to stderr")
}

func newLogger(prefix string) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, prefix, log.LstdFlags)
}
