package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/rustyeddy/kelly/broker/sim"
	"github.com/rustyeddy/kelly/journal"
	"github.com/rustyeddy/kelly/market"
	"github.com/rustyeddy/kelly/pkg/id"
	"github.com/rustyeddy/kelly/risk"
	"github.com/rustyeddy/kelly/strategies"
)

// RunOptions describes one isolated backtest: every run builds its own
// broker, controller, tracker and history.
type RunOptions struct {
	RunID      string // empty issues a new one
	Dataset    string
	Instrument string

	Feed     market.Feed
	Strategy strategies.Strategy
	Sizing   risk.Config
	Broker   sim.Config

	Journal journal.Journal // nil discards; not closed by Run
	Logger  *log.Logger     // nil discards
}

// Run replays the feed bar by bar:
//  1. the broker fills orders queued on the previous bar
//  2. the controller asks the strategy about the bar and submits orders
//
// At the end of the feed the order in flight is canceled and the run summary
// is journaled. The feed is closed before Run returns.
func Run(ctx context.Context, opts RunOptions) (Result, error) {
	if opts.Feed == nil {
		return Result{}, fmt.Errorf("%w: feed", ErrMissingOption)
	}
	defer opts.Feed.Close()

	if opts.Strategy == nil {
		return Result{}, fmt.Errorf("%w: strategy", ErrMissingOption)
	}
	if opts.RunID == "" {
		opts.RunID = id.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	j := opts.Journal
	if j == nil {
		j = journal.Nop{}
	}
	j = journal.WithRun(j, opts.RunID)

	engine := sim.NewEngine(opts.Broker, j)
	ctrl, err := NewController(ControllerOptions{
		Instrument: opts.Instrument,
		Broker:     engine,
		Strategy:   opts.Strategy,
		Sizing:     opts.Sizing,
		AllowShort: opts.Broker.AllowShort,
		Commission: opts.Broker.Commission,
		Journal:    j,
		Logger:     opts.Logger,
	})
	if err != nil {
		return Result{}, err
	}
	engine.Attach(ctrl)

	opts.Strategy.Reset()
	opts.Logger.Printf("run %s: %s on %s, %s sizing, cash %.2f",
		opts.RunID, opts.Strategy.Name(), opts.Instrument, opts.Sizing.Method, opts.Broker.Cash)

	res := Result{
		RunID:        opts.RunID,
		Created:      time.Now().UTC(),
		Dataset:      opts.Dataset,
		Instrument:   opts.Instrument,
		Strategy:     opts.Strategy.Name(),
		Method:       opts.Sizing.Method,
		StartBalance: opts.Broker.Cash,
	}
	dd := drawdown{peak: opts.Broker.Cash}
	sr := sharpe{prev: opts.Broker.Cash}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		b, ok, err := opts.Feed.Next()
		if err != nil {
			return res, fmt.Errorf("feed: %w", err)
		}
		if !ok {
			break
		}

		if err := engine.ProcessBar(b); err != nil {
			return res, fmt.Errorf("bar %s: %w", b.Time.Format(time.RFC3339), err)
		}
		if err := ctrl.OnBar(ctx, b); err != nil {
			if errors.Is(err, market.ErrOutOfOrder) {
				return res, err
			}
			return res, fmt.Errorf("bar %s: %w", b.Time.Format(time.RFC3339), err)
		}

		if res.Start.IsZero() {
			res.Start = b.Time
		}
		res.End = b.Time
		dd.add(engine.Value())
		sr.add(engine.Value())
	}

	if err := ctrl.Stop(ctx, res.End); err != nil {
		return res, err
	}

	res.fill(ctrl.Summary(), engine.Cash(), engine.Value(), dd.maxPct, sr.ratio())
	opts.Logger.Printf("run %s: %d bars, %d trades, net %.2f (%.2f%%), max drawdown %.2f%%, sharpe %.4f",
		res.RunID, res.Bars, res.Trades, res.NetPL, res.ReturnPct*100, res.MaxDDPct*100, res.Sharpe)

	if err := j.RecordRun(res.Record()); err != nil {
		return res, fmt.Errorf("record run: %w", err)
	}
	return res, nil
}

// drawdown tracks the largest fall from an equity peak.
type drawdown struct {
	peak   float64
	maxPct float64
}

func (d *drawdown) add(equity float64) {
	if equity > d.peak {
		d.peak = equity
		return
	}
	if d.peak > 0 {
		if pct := (d.peak - equity) / d.peak; pct > d.maxPct {
			d.maxPct = pct
		}
	}
}

// sharpe accumulates per-bar equity returns with Welford's method. The ratio
// is mean over sample standard deviation, not annualised, with a zero risk
// free rate.
type sharpe struct {
	prev float64
	n    int
	mean float64
	m2   float64
}

func (s *sharpe) add(equity float64) {
	if s.prev > 0 {
		r := equity/s.prev - 1
		s.n++
		d := r - s.mean
		s.mean += d / float64(s.n)
		s.m2 += d * (r - s.mean)
	}
	s.prev = equity
}

// ratio is 0 with fewer than two returns or a flat equity curve.
func (s *sharpe) ratio() float64 {
	if s.n < 2 {
		return 0
	}
	sd := math.Sqrt(s.m2 / float64(s.n-1))
	if sd < 1e-12 {
		return 0
	}
	return s.mean / sd
}
