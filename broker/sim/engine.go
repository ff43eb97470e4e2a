// Package sim is a bar-driven simulated broker. Orders submitted during a bar
// are accepted and filled on the next bar, at its open by default.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/kelly/broker"
	"github.com/rustyeddy/kelly/journal"
	"github.com/rustyeddy/kelly/market"
	"github.com/rustyeddy/kelly/order"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrUnknownOrder = errors.New("order not found")
	ErrOrderClosed  = errors.New("order already closed")
	ErrNoListener   = errors.New("no listener attached")
)

const sizeEpsilon = 1e-9

type Config struct {
	AccountID string
	Currency  string
	Cash      float64

	// Commission is charged as a fraction of fill notional.
	Commission float64

	// FillOnClose fills at the bar close instead of the open.
	FillOnClose bool

	// AllowShort lets sells exceed the held position.
	AllowShort bool

	// MaxFillPerBar caps the size filled per bar, producing partial fills.
	// Zero means unlimited.
	MaxFillPerBar float64
}

// Engine is not safe for concurrent use; a backtest drives it from a single
// goroutine.
type Engine struct {
	cfg      Config
	acct     broker.Account
	listener broker.Listener
	journal  journal.Journal

	nextID  order.ID
	pending []*order.Order
	done    map[order.ID]order.Status
	last    market.Bar
	avgCost float64
}

var _ broker.Broker = (*Engine)(nil)

func NewEngine(cfg Config, j journal.Journal) *Engine {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Engine{
		cfg: cfg,
		acct: broker.Account{
			ID:       cfg.AccountID,
			Currency: cfg.Currency,
			Balance:  cfg.Cash,
			Equity:   cfg.Cash,
		},
		journal: j,
		done:    make(map[order.ID]order.Status),
	}
}

// Attach sets the listener notified of every order change.
func (e *Engine) Attach(l broker.Listener) {
	e.listener = l
}

func (e *Engine) GetAccount(ctx context.Context) (broker.Account, error) {
	return e.acct, nil
}

// SubmitOrder queues a market order for the next bar.
func (e *Engine) SubmitOrder(side order.Side, size float64) (order.ID, error) {
	if !(size > 0) || math.IsInf(size, 0) {
		return 0, fmt.Errorf("size %v: %w", size, ErrInvalidOrder)
	}
	if side != order.Buy && side != order.Sell {
		return 0, fmt.Errorf("side %d: %w", side, ErrInvalidOrder)
	}

	e.nextID++
	e.pending = append(e.pending, &order.Order{
		ID:        e.nextID,
		Side:      side,
		Size:      size,
		Status:    order.Submitted,
		Submitted: e.last.Time,
		Updated:   e.last.Time,
	})
	return e.nextID, nil
}

// CancelOrder cancels a pending order and notifies the listener before
// returning.
func (e *Engine) CancelOrder(id order.ID) error {
	if st, ok := e.done[id]; ok {
		return fmt.Errorf("cancel %d (%s): %w", id, st, ErrOrderClosed)
	}
	for _, o := range e.pending {
		if o.ID != id {
			continue
		}
		e.resolve(o, order.Canceled)
		e.compact()
		return e.notify(*o)
	}
	return fmt.Errorf("cancel %d: %w", id, ErrUnknownOrder)
}

// ProcessBar advances the simulation by one bar: pending orders are accepted
// and filled, then the account is marked to the bar close.
func (e *Engine) ProcessBar(b market.Bar) error {
	e.last = b

	work := make([]*order.Order, len(e.pending))
	copy(work, e.pending)

	for _, o := range work {
		if o.Status.Terminal() {
			continue
		}
		if err := e.step(o, b); err != nil {
			e.compact()
			return err
		}
	}
	e.compact()
	e.mark(b.Close)

	if e.journal != nil {
		return e.journal.RecordEquity(journal.EquitySnapshot{
			Time:     b.Time,
			Balance:  e.acct.Balance,
			Equity:   e.acct.Equity,
			Position: e.acct.Position,
			Price:    b.Close,
		})
	}
	return nil
}

func (e *Engine) step(o *order.Order, b market.Bar) error {
	price := b.Open
	if e.cfg.FillOnClose {
		price = b.Close
	}

	qty := o.Remaining()
	if e.cfg.MaxFillPerBar > 0 && qty > e.cfg.MaxFillPerBar {
		qty = e.cfg.MaxFillPerBar
	}
	comm := qty * price * e.cfg.Commission

	refuse := order.Status(-1)
	switch {
	case !(price > 0):
		refuse = order.Rejected
	case o.Side == order.Sell && !e.cfg.AllowShort && qty > e.acct.Position+sizeEpsilon:
		refuse = order.Rejected
	case o.Side == order.Buy && e.acct.Position >= 0 && qty*price+comm > e.acct.Balance+sizeEpsilon:
		refuse = order.MarginError
	}

	if o.Status == order.Submitted {
		if refuse >= 0 {
			e.resolve(o, refuse)
			return e.notify(*o)
		}
		o.Status = order.Accepted
		o.Updated = b.Time
		if err := e.notify(*o); err != nil {
			return err
		}
		if o.Status.Terminal() {
			// canceled by the listener on acceptance
			return nil
		}
	} else if refuse >= 0 {
		// Already part filled; the rest can no longer be honoured.
		e.resolve(o, order.Canceled)
		return e.notify(*o)
	}

	e.fill(o, qty, price, comm)
	o.Updated = b.Time
	if o.Remaining() <= sizeEpsilon {
		e.resolve(o, order.Completed)
	} else {
		o.Status = order.PartiallyFilled
	}
	return e.notify(*o)
}

func (e *Engine) fill(o *order.Order, qty, price, comm float64) {
	signed := o.Side.Sign() * qty

	o.FilledPrice = (o.FilledPrice*o.FilledSize + price*qty) / (o.FilledSize + qty)
	o.FilledSize += qty
	o.Commission += comm

	e.acct.Balance -= signed*price + comm

	pos := e.acct.Position
	switch {
	case pos == 0 || math.Signbit(pos) == math.Signbit(signed):
		e.avgCost = (math.Abs(pos)*e.avgCost + qty*price) / (math.Abs(pos) + qty)
	case math.Abs(signed) > math.Abs(pos):
		e.avgCost = price
	}
	e.acct.Position += signed
	if math.Abs(e.acct.Position) <= sizeEpsilon {
		e.acct.Position = 0
		e.avgCost = 0
	}
}

func (e *Engine) resolve(o *order.Order, st order.Status) {
	o.Status = st
	o.Updated = e.last.Time
	o.Resolved = e.last.Time
	e.done[o.ID] = st
}

func (e *Engine) compact() {
	kept := e.pending[:0]
	for _, o := range e.pending {
		if !o.Status.Terminal() {
			kept = append(kept, o)
		}
	}
	for i := len(kept); i < len(e.pending); i++ {
		e.pending[i] = nil
	}
	e.pending = kept
}

func (e *Engine) mark(price float64) {
	e.acct.Equity = e.acct.Balance + e.acct.Position*price
}

func (e *Engine) notify(o order.Order) error {
	if e.listener == nil {
		return ErrNoListener
	}
	return e.listener.NotifyOrder(o)
}

// Cash is the account balance.
func (e *Engine) Cash() float64 { return e.acct.Balance }

// Value is cash plus the position marked to the last bar close.
func (e *Engine) Value() float64 { return e.acct.Equity }

// Pending returns the number of orders not yet resolved.
func (e *Engine) Pending() int { return len(e.pending) }

// AverageCost is the average entry price of the current position.
func (e *Engine) AverageCost() float64 { return e.avgCost }
