package backtest

import (
	"time"

	"github.com/rustyeddy/kelly/history"
	"github.com/rustyeddy/kelly/journal"
	"github.com/rustyeddy/kelly/order"
	"github.com/rustyeddy/kelly/risk"
)

// Result summarises a finished run. Ratios are fractions: a ReturnPct of
// 0.05 is five percent.
type Result struct {
	RunID      string
	Created    time.Time
	Dataset    string
	Instrument string
	Strategy   string
	Method     risk.Method

	Start time.Time
	End   time.Time
	Bars  int

	Trades  int
	Wins    int
	Losses  int
	WinRate float64

	StartBalance float64
	EndBalance   float64
	EndEquity    float64
	NetPL        float64 // EndEquity - StartBalance, open position marked to market
	ReturnPct    float64

	// ProfitFactor is gross profit over gross loss, 0 without losing trades.
	ProfitFactor float64
	MaxDDPct     float64
	// Sharpe is the per-bar Sharpe ratio of the equity curve.
	Sharpe float64

	Stats    history.KellyStats // the sizer's window at the end of the run
	Open     *order.Trade
	Orders   map[order.Status]int
	Skipped  int
	Closed   []order.Trade
	LastPlan risk.Result
}

func (r *Result) fill(s Summary, cash, equity, maxDD, sharpe float64) {
	r.Bars = s.Bars
	r.Stats = s.Stats
	r.Open = s.Open
	r.Orders = s.Orders
	r.Skipped = s.Skipped
	r.Closed = s.Trades
	r.LastPlan = s.LastPlan

	var grossWin, grossLoss float64
	for _, tr := range s.Trades {
		// breakeven counts as a loss, as in the sizer's statistics
		if tr.PnL > 0 {
			r.Wins++
			grossWin += tr.PnL
		} else {
			r.Losses++
			grossLoss -= tr.PnL
		}
	}
	r.Trades = len(s.Trades)
	if r.Trades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Trades)
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossWin / grossLoss
	}

	r.EndBalance = cash
	r.EndEquity = equity
	r.NetPL = equity - r.StartBalance
	if r.StartBalance > 0 {
		r.ReturnPct = r.NetPL / r.StartBalance
	}
	r.MaxDDPct = maxDD
	r.Sharpe = sharpe
}

// Record converts the result to its journal row.
func (r Result) Record() journal.RunRecord {
	return journal.RunRecord{
		RunID:        r.RunID,
		Created:      r.Created,
		Dataset:      r.Dataset,
		Instrument:   r.Instrument,
		Strategy:     r.Strategy,
		Method:       string(r.Method),
		Start:        r.Start,
		End:          r.End,
		Bars:         r.Bars,
		Trades:       r.Trades,
		Wins:         r.Wins,
		Losses:       r.Losses,
		StartBalance: r.StartBalance,
		EndBalance:   r.EndBalance,
		EndEquity:    r.EndEquity,
		NetPL:        r.NetPL,
		ReturnPct:    r.ReturnPct,
		WinRate:      r.WinRate,
		ProfitFactor: r.ProfitFactor,
		MaxDDPct:     r.MaxDDPct,
		Sharpe:       r.Sharpe,
	}
}
