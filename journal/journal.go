// Package journal persists the audit trail of a backtest: every order status
// change, every closed trade, the equity curve and a run summary.
package journal

import (
	"errors"
	"time"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

type OrderRecord struct {
	RunID       string
	OrderID     uint64
	Instrument  string
	Side        string
	Size        float64
	Status      string
	FilledSize  float64
	FilledPrice float64
	Commission  float64
	Submitted   time.Time
	Updated     time.Time
}

type TradeRecord struct {
	RunID      string
	TradeID    uint64
	Instrument string
	Side       string
	Units      float64
	EntryPrice float64
	ExitPrice  float64
	Commission float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	ReturnPct  float64
	EntryOrder uint64
	ExitOrder  uint64
}

type EquitySnapshot struct {
	RunID    string
	Time     time.Time
	Balance  float64
	Equity   float64
	Position float64
	Price    float64
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordRun(RunRecord) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordRun(RunRecord) error         { return nil }
func (Nop) Close() error                      { return nil }

// Memory keeps records in slices. Useful for tests and for comparing runs
// without touching disk.
type Memory struct {
	Orders []OrderRecord
	Trades []TradeRecord
	Equity []EquitySnapshot
	Runs   []RunRecord
	Closed bool
}

func (m *Memory) RecordOrder(r OrderRecord) error {
	m.Orders = append(m.Orders, r)
	return nil
}

func (m *Memory) RecordTrade(r TradeRecord) error {
	m.Trades = append(m.Trades, r)
	return nil
}

func (m *Memory) RecordEquity(r EquitySnapshot) error {
	m.Equity = append(m.Equity, r)
	return nil
}

func (m *Memory) RecordRun(r RunRecord) error {
	m.Runs = append(m.Runs, r)
	return nil
}

func (m *Memory) Close() error {
	m.Closed = true
	return nil
}

// Multi fans records out to several journals, stopping at the first error.
type Multi []Journal

func (mj Multi) RecordOrder(r OrderRecord) error {
	for _, j := range mj {
		if err := j.RecordOrder(r); err != nil {
			return err
		}
	}
	return nil
}

func (mj Multi) RecordTrade(r TradeRecord) error {
	for _, j := range mj {
		if err := j.RecordTrade(r); err != nil {
			return err
		}
	}
	return nil
}

func (mj Multi) RecordEquity(r EquitySnapshot) error {
	for _, j := range mj {
		if err := j.RecordEquity(r); err != nil {
			return err
		}
	}
	return nil
}

func (mj Multi) RecordRun(r RunRecord) error {
	for _, j := range mj {
		if err := j.RecordRun(r); err != nil {
			return err
		}
	}
	return nil
}

func (mj Multi) Close() error {
	var errs []error
	for _, j := range mj {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}

// WithRun stamps runID on every record before passing it to j.
func WithRun(j Journal, runID string) Journal {
	return runScoped{j: j, runID: runID}
}

type runScoped struct {
	j     Journal
	runID string
}

func (s runScoped) RecordOrder(r OrderRecord) error {
	r.RunID = s.runID
	return s.j.RecordOrder(r)
}

func (s runScoped) RecordTrade(r TradeRecord) error {
	r.RunID = s.runID
	return s.j.RecordTrade(r)
}

func (s runScoped) RecordEquity(r EquitySnapshot) error {
	r.RunID = s.runID
	return s.j.RecordEquity(r)
}

func (s runScoped) RecordRun(r RunRecord) error {
	r.RunID = s.runID
	return s.j.RecordRun(r)
}

func (s runScoped) Close() error { return s.j.Close() }
