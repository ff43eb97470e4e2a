package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for
// pasting into a trading journal. Structured facts go in a PROPERTIES drawer;
// the Thesis and Review headings are left for notes.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade %d: %s %s (%s)\n", t.TradeID, t.Side, t.Instrument, shortID(t.RunID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", t.RunID)
	fmt.Fprintf(&b, ":TRADE_ID: %d\n", t.TradeID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", t.Instrument)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":UNITS: %g\n", t.Units)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.5f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.OpenTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.CloseTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":COMMISSION: %.2f\n", t.Commission)
	fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", t.RealizedPL)
	fmt.Fprintf(&b, ":RETURN_PCT: %.4f\n", t.ReturnPct*100)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// FormatRunOrg renders a run summary as an Org-mode heading.
func FormatRunOrg(r RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "* Run %s: %s on %s, %s sizing\n", shortID(r.RunID), r.Strategy, r.Instrument, r.Method)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":RUN_ID: %s\n", r.RunID)
	fmt.Fprintf(&b, ":DATASET: %s\n", r.Dataset)
	fmt.Fprintf(&b, ":START: %s\n", r.Start.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":END: %s\n", r.End.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":BARS: %d\n", r.Bars)
	fmt.Fprintf(&b, ":TRADES: %d (%d won, %d lost)\n", r.Trades, r.Wins, r.Losses)
	fmt.Fprintf(&b, ":WIN_RATE: %.2f\n", r.WinRate*100)
	fmt.Fprintf(&b, ":START_BALANCE: %.2f\n", r.StartBalance)
	fmt.Fprintf(&b, ":END_EQUITY: %.2f\n", r.EndEquity)
	fmt.Fprintf(&b, ":NET_PL: %.2f\n", r.NetPL)
	fmt.Fprintf(&b, ":RETURN_PCT: %.2f\n", r.ReturnPct*100)
	fmt.Fprintf(&b, ":PROFIT_FACTOR: %.2f\n", r.ProfitFactor)
	fmt.Fprintf(&b, ":MAX_DD_PCT: %.2f\n", r.MaxDDPct*100)
	fmt.Fprintf(&b, ":SHARPE: %.4f\n", r.Sharpe)
	b.WriteString(":END:\n")
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
