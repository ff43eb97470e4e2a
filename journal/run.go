package journal

import "time"

// RunRecord summarises one backtest run.
type RunRecord struct {
	RunID      string
	Created    time.Time
	Dataset    string
	Instrument string
	Strategy   string
	Method     string // sizing method

	Start time.Time
	End   time.Time
	Bars  int

	Trades int
	Wins   int
	Losses int

	StartBalance float64
	EndBalance   float64
	EndEquity    float64

	NetPL        float64
	ReturnPct    float64
	WinRate      float64
	ProfitFactor float64
	MaxDDPct     float64
	Sharpe       float64
}
