// Package risk decides how many units to commit to the next trade, either as
// a fixed fraction of cash or as a fractional Kelly bet sized from recent
// trade history.
package risk

import (
	"errors"
	"math"

	"github.com/rustyeddy/kelly/history"
)

var (
	// ErrInsufficientData marks a Kelly request made before enough trades
	// have closed. It is reported in Result.Fallback, never returned.
	ErrInsufficientData = errors.New("not enough closed trades for kelly")

	// ErrNoEdgeData marks a window with no wins or no losses, where the
	// win/loss ratio is undefined.
	ErrNoEdgeData = errors.New("win/loss ratio undefined")
)

// Result is the outcome of a sizing decision.
type Result struct {
	Units    float64
	Fraction float64 // share of cash committed
	Method   Method  // method actually applied
	KellyPct float64 // raw Kelly percentage before scaling, when computed
	Fallback error   // why kelly fell back to fixed, if it did
}

// Sizer is stateless; the zero value is ready to use.
type Sizer struct{}

// KellyPct is the Kelly criterion W - (1-W)/R with R = avgWin/|avgLoss|.
// ok is false when R is undefined.
func KellyPct(winRate, avgWin, avgLoss float64) (pct float64, ok bool) {
	if !(avgWin > 0) || avgLoss == 0 || math.IsNaN(avgLoss) {
		return 0, false
	}
	r := avgWin / math.Abs(avgLoss)
	return winRate - (1-winRate)/r, true
}

// Plan sizes a new entry. cfg must have passed Validate. Non-positive or
// non-finite cash or price yield zero units.
func (Sizer) Plan(cfg Config, cash, price float64, stats history.KellyStats) Result {
	res := Result{Method: Fixed, Fraction: math.Min(cfg.FixedFraction, cfg.MaxPositionFraction)}

	if cfg.Method == Kelly {
		switch {
		case stats.SampleCount < cfg.MinTradesForKelly:
			res.Fallback = ErrInsufficientData
		default:
			k, ok := KellyPct(stats.WinRate, stats.AvgWin, stats.AvgLoss)
			if !ok {
				res.Fallback = ErrNoEdgeData
				break
			}
			res.Method = Kelly
			res.KellyPct = k
			res.Fraction = clamp(k, 0, cfg.MaxPositionFraction) * cfg.KellyFraction
		}
	}

	res.Units = units(cash, price, res.Fraction, cfg.UnitSize)
	return res
}

// ComputeSize is Plan reduced to the unit count.
func (s Sizer) ComputeSize(cfg Config, cash, price float64, stats history.KellyStats) float64 {
	return s.Plan(cfg, cash, price, stats).Units
}

func units(cash, price, fraction, unit float64) float64 {
	if !finitePositive(cash) || !finitePositive(price) || !(fraction > 0) {
		return 0
	}
	if !finitePositive(unit) {
		unit = 1
	}

	// The epsilon keeps 2.9999999999 from flooring to 2.
	u := cash * fraction / price
	u = math.Floor(u/unit+1e-9) * unit

	// Never spend more than the cash on hand.
	if limit := cash / price; u > limit {
		u = math.Floor(limit/unit) * unit
	}
	if u < 0 {
		return 0
	}
	return u
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func finitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0)
}
