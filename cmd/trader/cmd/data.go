package cmd

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/kelly/market"
	"github.com/rustyeddy/kelly/market/dukascopy"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Download market data",
}

var dukascopyCmd = &cobra.Command{
	Use:   "dukascopy",
	Short: "Download Dukascopy ticks and write them as bars",
	Long: `Download historical ticks from the Dukascopy data feed, one file per hour,
and aggregate their mid prices into bars in the CSV format backtest reads.

Example:
  trader data dukascopy --symbol EURUSD --start 2024-01-01T00 --end 2024-02-01T00 --timeframe 1h -o eurusd-h1.csv`,
	Args: cobra.NoArgs,
	RunE: runDukascopy,
}

var (
	dkBase      string
	dkSymbol    string
	dkStart     string
	dkEnd       string
	dkTimeframe time.Duration
	dkOutput    string
	dkCache     string
	dkWorkers   int
	dkTimeout   time.Duration
	dkSleep     time.Duration
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dukascopyCmd)

	fs := dukascopyCmd.Flags()
	fs.StringVar(&dkBase, "base", dukascopy.DefaultBaseURL, "Dukascopy base URL")
	fs.StringVar(&dkSymbol, "symbol", "EURUSD", "symbol like EURUSD, USDJPY")
	fs.StringVar(&dkStart, "start", "", "start hour (UTC) like 2024-01-01T00 (required)")
	fs.StringVar(&dkEnd, "end", "", "end hour (UTC, exclusive) like 2024-01-02T00 (required)")
	fs.DurationVarP(&dkTimeframe, "timeframe", "t", time.Hour, "bar interval")
	fs.StringVarP(&dkOutput, "output", "o", "", "output CSV path (required)")
	fs.StringVar(&dkCache, "cache", "./dukas", "directory for raw .bi5 files, empty disables caching")
	fs.IntVar(&dkWorkers, "workers", max(4, runtime.NumCPU()), "parallel downloads")
	fs.DurationVar(&dkTimeout, "timeout", 45*time.Second, "HTTP timeout")
	fs.DurationVar(&dkSleep, "sleep", 50*time.Millisecond, "polite delay per request")

	dukascopyCmd.MarkFlagRequired("start")
	dukascopyCmd.MarkFlagRequired("end")
	dukascopyCmd.MarkFlagRequired("output")
}

func runDukascopy(cmd *cobra.Command, args []string) (err error) {
	start, err := time.ParseInLocation("2006-01-02T15", dkStart, time.UTC)
	if err != nil {
		return fmt.Errorf("bad --start: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02T15", dkEnd, time.UTC)
	if err != nil {
		return fmt.Errorf("bad --end: %w", err)
	}
	if dkTimeframe <= 0 {
		return fmt.Errorf("bad --timeframe %s", dkTimeframe)
	}

	client := &dukascopy.Client{
		BaseURL:  dkBase,
		HTTP:     &http.Client{Timeout: dkTimeout},
		CacheDir: dkCache,
		Workers:  dkWorkers,
		Delay:    dkSleep,
		Logger:   newLogger("[dukascopy] "),
	}

	ticks, err := client.Fetch(cmd.Context(), dkSymbol, start, end)
	if err != nil {
		return err
	}
	bars := dukascopy.Aggregate(ticks, dkTimeframe)

	f, err := os.Create(dkOutput)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := market.WriteCSV(f, bars); err != nil {
		return fmt.Errorf("write %s: %w", dkOutput, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d ticks, %d bars of %s -> %s\n", dkSymbol, len(ticks), len(bars), dkTimeframe, dkOutput)
	return nil
}
