// Package backtest drives strategies through a broker one bar at a time.
// The Controller turns strategy signals into sized orders and keeps the
// order and trade bookkeeping; Run wires a feed, a simulated broker and a
// Controller into a complete backtest.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/rustyeddy/kelly/broker"
	"github.com/rustyeddy/kelly/history"
	"github.com/rustyeddy/kelly/journal"
	"github.com/rustyeddy/kelly/market"
	"github.com/rustyeddy/kelly/order"
	"github.com/rustyeddy/kelly/risk"
	"github.com/rustyeddy/kelly/strategies"
)

var ErrMissingOption = errors.New("missing controller option")

type ControllerOptions struct {
	Instrument string
	Broker     broker.Broker
	Strategy   strategies.Strategy
	Sizing     risk.Config

	// AllowShort lets a Sell while flat open a short and a Buy while short
	// cover it. It should match the broker's setting.
	AllowShort bool

	// Commission is the broker's rate on notional. Entries are sized from
	// cash / (1 + Commission) so a full fraction still covers the charge.
	Commission float64

	Journal journal.Journal // nil discards
	Logger  *log.Logger     // nil discards
}

// Controller connects one strategy on one instrument to a broker. It owns
// the order tracker and the trade history the position sizer reads.
// A Controller is driven from a single goroutine: OnBar, the broker
// notifications and Stop must not run concurrently.
type Controller struct {
	instrument string
	broker     broker.Broker
	strategy   strategies.Strategy
	sizing     risk.Config
	sizer      risk.Sizer
	allowShort bool
	commission float64
	journal    journal.Journal
	log        *log.Logger

	tracker *order.Tracker
	history *history.History
	guard   market.OrderGuard

	bars     int
	lastBar  market.Bar
	lastPlan risk.Result
	trades   []order.Trade
	skipped  int
	external int
	stopped  bool
}

var _ broker.Listener = (*Controller)(nil)

func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Broker == nil {
		return nil, fmt.Errorf("%w: broker", ErrMissingOption)
	}
	if opts.Strategy == nil {
		return nil, fmt.Errorf("%w: strategy", ErrMissingOption)
	}
	if err := opts.Sizing.Validate(); err != nil {
		return nil, err
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	c := &Controller{
		instrument: opts.Instrument,
		broker:     opts.Broker,
		strategy:   opts.Strategy,
		sizing:     opts.Sizing,
		allowShort: opts.AllowShort,
		commission: opts.Commission,
		journal:    opts.Journal,
		log:        opts.Logger,
		history:    history.New(opts.Sizing.Lookback),
	}
	c.tracker = order.NewTracker(opts.Broker, c.history, order.TrackerOptions{AllowShort: opts.AllowShort})
	return c, nil
}

// OnBar hands a closed bar to the strategy and acts on its decision. Bars
// must arrive in timestamp order.
func (c *Controller) OnBar(ctx context.Context, b market.Bar) error {
	if err := c.guard.Check(b); err != nil {
		return err
	}
	c.lastBar = b
	c.bars++

	acct, err := c.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	pos := c.tracker.Position()
	_, inflight := c.tracker.InFlight()

	d := c.strategy.OnBar(strategies.Context{
		Instrument: c.instrument,
		Position:   pos,
		InFlight:   inflight,
		Cash:       acct.Balance,
		Bar:        c.bars - 1,
	}, b)

	if d.Signal == strategies.Hold || inflight {
		return nil
	}

	switch {
	case d.Signal == strategies.Buy && pos.Flat():
		return c.enter(order.Buy, acct.Balance, b, d.Reason)
	case d.Signal == strategies.Sell && pos.Size > 0:
		return c.submit(order.Sell, pos.Size, b, d.Reason)
	case d.Signal == strategies.Sell && pos.Flat() && c.allowShort:
		return c.enter(order.Sell, acct.Balance, b, d.Reason)
	case d.Signal == strategies.Buy && pos.Size < 0:
		return c.submit(order.Buy, -pos.Size, b, d.Reason)
	}
	return nil
}

func (c *Controller) enter(side order.Side, cash float64, b market.Bar, reason string) error {
	if c.commission > 0 {
		cash /= 1 + c.commission
	}
	plan := c.sizer.Plan(c.sizing, cash, b.Close, c.history.Stats())
	c.lastPlan = plan
	if plan.Fallback != nil {
		c.log.Printf("%s %s: kelly unavailable, using fixed fraction %.4f: %v",
			b.Time.Format(time.RFC3339), c.instrument, plan.Fraction, plan.Fallback)
	}
	return c.submit(side, plan.Units, b, reason)
}

func (c *Controller) submit(side order.Side, size float64, b market.Bar, reason string) error {
	id, err := c.tracker.Submit(side, size, b.Time)
	switch {
	case errors.Is(err, order.ErrDuplicateOrder), errors.Is(err, order.ErrInvalidSize):
		c.skipped++
		c.log.Printf("%s %s: skip %s: %v", b.Time.Format(time.RFC3339), c.instrument, side, err)
		return nil
	case err != nil:
		return err
	}

	c.log.Printf("%s %s: %s %.4f submitted as order %d (%s)",
		b.Time.Format(time.RFC3339), c.instrument, side, size, id, reason)

	o, _ := c.tracker.Order(id)
	return c.recordOrder(o)
}

// NotifyOrder applies a broker status change to the tracker, journals it and
// tells the strategy. A trade the change closes is journaled and reported
// too.
func (c *Controller) NotifyOrder(n order.Order) error {
	up, err := c.tracker.OnNotification(n)
	if err != nil {
		return err
	}
	if err := c.recordOrder(up.Order); err != nil {
		return err
	}

	if up.Failed {
		c.log.Printf("%s %s: order %d %s", up.Order.Updated.Format(time.RFC3339), c.instrument, up.Order.ID, up.Order.Status)
	}
	c.strategy.OnOrder(up.Order)

	for _, tr := range up.Closed {
		c.trades = append(c.trades, tr)
		c.log.Printf("%s %s: trade %d closed %s %.4f @ %.5f -> %.5f pnl %.2f",
			tr.ClosedAt.Format(time.RFC3339), c.instrument, tr.ID, tr.Side, tr.Size, tr.EntryPrice, tr.ExitPrice, tr.PnL)
		if err := c.recordTrade(tr); err != nil {
			return err
		}
		c.strategy.OnTrade(tr)
	}
	return nil
}

// NotifyTrade forwards a trade reported by the broker itself to the strategy
// and the journal. It does not touch the tracker or the history.
func (c *Controller) NotifyTrade(tr order.Trade) error {
	c.external++
	if tr.Closed {
		if err := c.recordTrade(tr); err != nil {
			return err
		}
	}
	c.strategy.OnTrade(tr)
	return nil
}

// Stop cancels the order in flight, if any. An open trade stays open and is
// reported as such by Summary.
func (c *Controller) Stop(ctx context.Context, at time.Time) error {
	if c.stopped {
		return nil
	}
	c.stopped = true

	if o, ok := c.tracker.InFlight(); ok {
		if err := c.tracker.Cancel(o.ID); err != nil {
			c.log.Printf("%s %s: cancel order %d on stop: %v", at.Format(time.RFC3339), c.instrument, o.ID, err)
		}
	}

	acct, err := c.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	c.log.Printf("%s %s: stopped, final portfolio value %.2f", at.Format(time.RFC3339), c.instrument, acct.Equity)
	return nil
}

func (c *Controller) recordOrder(o order.Order) error {
	return c.journal.RecordOrder(journal.OrderRecord{
		OrderID:     uint64(o.ID),
		Instrument:  c.instrument,
		Side:        o.Side.String(),
		Size:        o.Size,
		Status:      o.Status.String(),
		FilledSize:  o.FilledSize,
		FilledPrice: o.FilledPrice,
		Commission:  o.Commission,
		Submitted:   o.Submitted,
		Updated:     orderTime(o),
	})
}

func orderTime(o order.Order) time.Time {
	if !o.Updated.IsZero() {
		return o.Updated
	}
	return o.Submitted
}

func (c *Controller) recordTrade(tr order.Trade) error {
	return c.journal.RecordTrade(journal.TradeRecord{
		TradeID:    tr.ID,
		Instrument: c.instrument,
		Side:       tr.Side.String(),
		Units:      tr.Size,
		EntryPrice: tr.EntryPrice,
		ExitPrice:  tr.ExitPrice,
		Commission: tr.Commission,
		OpenTime:   tr.Opened,
		CloseTime:  tr.ClosedAt,
		RealizedPL: tr.PnL,
		ReturnPct:  tr.PnLPct,
		EntryOrder: uint64(tr.EntryOrder),
		ExitOrder:  uint64(tr.ExitOrder),
	})
}

// Summary is a snapshot of the controller's bookkeeping.
type Summary struct {
	Instrument string
	Strategy   string
	Bars       int
	Last       time.Time

	Stats    history.KellyStats
	Trades   []order.Trade // every closed trade, in close order
	Open     *order.Trade
	Position order.Position

	Orders   map[order.Status]int // orders by final status
	Skipped  int                  // signals refused before reaching the broker
	External int                  // trades reported through NotifyTrade
	LastPlan risk.Result
}

func (c *Controller) Summary() Summary {
	s := Summary{
		Instrument: c.instrument,
		Strategy:   c.strategy.Name(),
		Bars:       c.bars,
		Last:       c.lastBar.Time,
		Stats:      c.history.Stats(),
		Trades:     append([]order.Trade(nil), c.trades...),
		Position:   c.tracker.Position(),
		Orders:     make(map[order.Status]int),
		Skipped:    c.skipped,
		External:   c.external,
		LastPlan:   c.lastPlan,
	}
	if tr, ok := c.tracker.OpenTrade(); ok {
		s.Open = &tr
	}
	for _, o := range c.tracker.Orders() {
		s.Orders[o.Status]++
	}
	return s
}

// InFlight reports whether an order awaits resolution.
func (c *Controller) InFlight() bool {
	_, ok := c.tracker.InFlight()
	return ok
}

// History exposes the closed trade window the sizer reads.
func (c *Controller) History() *history.History { return c.history }
