package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/kelly/backtest"
)

func printResult(w io.Writer, r backtest.Result) {
	fmt.Fprintf(w, "Backtest Complete!\n")
	fmt.Fprintf(w, "  Run: %s\n", r.RunID)
	fmt.Fprintf(w, "  Strategy: %s on %s (%s sizing)\n", r.Strategy, r.Instrument, r.Method)
	fmt.Fprintf(w, "  Bars: %d (%s to %s)\n", r.Bars, stamp(r.Start), stamp(r.End))
	fmt.Fprintf(w, "  Trades: %d (%d won, %d lost, win rate %.1f%%)\n", r.Trades, r.Wins, r.Losses, r.WinRate*100)
	fmt.Fprintf(w, "  Balance: $%.2f -> $%.2f\n", r.StartBalance, r.EndBalance)
	fmt.Fprintf(w, "  Final Portfolio Value: $%.2f\n", r.EndEquity)
	fmt.Fprintf(w, "  Net P/L: $%.2f (%.2f%%)\n", r.NetPL, r.ReturnPct*100)
	fmt.Fprintf(w, "  Profit Factor: %.2f\n", r.ProfitFactor)
	fmt.Fprintf(w, "  Max Drawdown: %.2f%%\n", r.MaxDDPct*100)
	fmt.Fprintf(w, "  Sharpe Ratio: %.4f\n", r.Sharpe)
	fmt.Fprintf(w, "  Kelly Window: %d trades, win rate %.1f%%, avg win %.2f%%, avg loss %.2f%%\n",
		r.Stats.SampleCount, r.Stats.WinRate*100, r.Stats.AvgWin*100, r.Stats.AvgLoss*100)
	if r.LastPlan.Fallback != nil {
		fmt.Fprintf(w, "  Last Sizing: %s %.2f%% of cash (kelly fallback: %v)\n", r.LastPlan.Method, r.LastPlan.Fraction*100, r.LastPlan.Fallback)
	} else if r.LastPlan.Method != "" {
		fmt.Fprintf(w, "  Last Sizing: %s %.2f%% of cash\n", r.LastPlan.Method, r.LastPlan.Fraction*100)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped Signals: %d\n", r.Skipped)
	}
	if r.Open != nil {
		fmt.Fprintf(w, "  Open Trade: %s %g @ %.5f since %s\n", r.Open.Side, r.Open.Size, r.Open.EntryPrice, stamp(r.Open.Opened))
	}
}

func printComparison(w io.Writer, results []backtest.Result) {
	fmt.Fprintf(w, "%-12s %-8s %8s %8s %12s %10s %8s %8s %8s\n",
		"STRATEGY", "METHOD", "TRADES", "WIN%", "NET P/L", "RETURN%", "PF", "MAXDD%", "SHARPE")
	for _, r := range results {
		fmt.Fprintf(w, "%-12s %-8s %8d %8.1f %12.2f %10.2f %8.2f %8.2f %8.4f\n",
			r.Strategy, r.Method, r.Trades, r.WinRate*100, r.NetPL, r.ReturnPct*100, r.ProfitFactor, r.MaxDDPct*100, r.Sharpe)
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
