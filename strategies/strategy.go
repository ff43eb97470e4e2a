// Package strategies holds the signal logic a backtest controller consults on
// every bar. Strategies decide direction only: sizing, order submission and
// bookkeeping belong to the controller.
package strategies

import (
	"github.com/rustyeddy/kelly/market"
	"github.com/rustyeddy/kelly/order"
)

type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Hold"
	}
}

// Decision is a strategy's answer for one bar.
type Decision struct {
	Signal Signal
	Reason string
}

func hold() Decision { return Decision{Signal: Hold} }

// Context is the controller state a strategy may look at.
type Context struct {
	Instrument string
	Position   order.Position
	InFlight   bool
	Cash       float64
	Bar        int // zero based index of the bar in the run
}

// Long reports whether the instrument has a positive position.
func (c Context) Long() bool { return c.Position.Size > 0 }

// Strategy is the minimal interface a backtest strategy must implement.
// OnBar is called once per closed bar, OnOrder on every order status change
// and OnTrade when a trade closes.
type Strategy interface {
	Name() string
	Reset()
	OnBar(ctx Context, b market.Bar) Decision
	OnOrder(o order.Order)
	OnTrade(t order.Trade)
}

// Base gives a strategy no-op notification handlers.
type Base struct{}

func (Base) OnOrder(order.Order) {}
func (Base) OnTrade(order.Trade) {}
