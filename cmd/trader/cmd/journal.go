package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/kelly/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query a SQLite trade journal",
	Long: `Query and display records from a SQLite journal written by backtest.

Subcommands:
  run    - Summary of a run
  trades - Every trade of a run
  trade  - One trade of a run
  day    - Trades of a run closed on a specific day (UTC)
  equity - Equity curve of a run

Examples:
  trader journal run 01J2M3...
  trader journal trade 01J2M3... 4
  trader journal day 01J2M3... 2024-01-15`,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Show the summary of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List every trade of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <run-id> <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(2),
	RunE:  runJournalTrade,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <run-id> <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(2),
	RunE:  runJournalDay,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity <run-id>",
	Short: "Print the equity curve of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEquity,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunCmd, journalTradesCmd, journalTradeCmd, journalDayCmd, journalEquityCmd)

	journalCmd.PersistentFlags().StringVar(&journalDBPath, "db", "./backtest.sqlite", "path to SQLite journal DB")
}

func openJournalDB() (*journal.SQLite, error) {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatRunOrg(rec))
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListTrades(args[0])
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	tradeID, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("trade id %q: %w", args[1], err)
	}

	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0], tradeID)
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	start, end, err := dayBounds(time.UTC, args[1])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListTradesClosedBetween(args[0], start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := openJournalDB()
	if err != nil {
		return err
	}
	defer j.Close()

	snaps, err := j.ListEquity(args[0])
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "time,balance,equity,position,price")
	for _, s := range snaps {
		fmt.Fprintf(out, "%s,%.2f,%.2f,%g,%.5f\n", s.Time.UTC().Format(time.RFC3339), s.Balance, s.Equity, s.Position, s.Price)
	}
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)
	return start, end, nil
}
