// Package order tracks orders from submission through fill or rejection and
// turns completed round trips into closed trades.
package order

import (
	"errors"
	"time"
)

var (
	// ErrInvalidSize is returned when a requested size is not a positive,
	// finite number, or would flip a long position short while shorting is
	// disabled.
	ErrInvalidSize = errors.New("invalid order size")

	// ErrDuplicateOrder is returned when an order is already in flight for
	// the position.
	ErrDuplicateOrder = errors.New("order already in flight")

	// ErrUnknownOrder is returned for notifications about orders the tracker
	// never submitted.
	ErrUnknownOrder = errors.New("unknown order")

	// ErrIllegalTransition is returned when a notification would move an
	// order backwards or out of a terminal state.
	ErrIllegalTransition = errors.New("illegal order status transition")
)

// ID identifies an order. IDs are assigned by the broker.
type ID uint64

type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "NONE"
	}
}

// Sign returns +1 for Buy and -1 for Sell.
func (s Side) Sign() float64 { return float64(s) }

type Status int

const (
	Submitted Status = iota
	Accepted
	PartiallyFilled
	Completed
	Canceled
	Rejected
	MarginError
)

var statusNames = [...]string{
	Submitted:       "Submitted",
	Accepted:        "Accepted",
	PartiallyFilled: "PartiallyFilled",
	Completed:       "Completed",
	Canceled:        "Canceled",
	Rejected:        "Rejected",
	MarginError:     "MarginError",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s >= Completed
}

// Failed reports whether the broker refused the order outright.
func (s Status) Failed() bool {
	return s == Rejected || s == MarginError
}

// next lists the statuses each non-terminal status may move to.
var next = map[Status][]Status{
	Submitted:       {Accepted, Rejected, MarginError, Canceled},
	Accepted:        {PartiallyFilled, Completed, Canceled},
	PartiallyFilled: {PartiallyFilled, Completed, Canceled},
}

// CanTransition reports whether from -> to is a legal forward move.
func CanTransition(from, to Status) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Order is a request to trade plus what the broker has reported about it.
// FilledPrice is the volume weighted average fill price; FilledSize and
// Commission are cumulative.
type Order struct {
	ID     ID
	Side   Side
	Size   float64
	Status Status

	FilledPrice float64
	FilledSize  float64
	Commission  float64

	Submitted time.Time
	Updated   time.Time // last status change reported by the broker
	Resolved  time.Time // zero until terminal
}

// Remaining is the unfilled part of the order.
func (o Order) Remaining() float64 {
	return o.Size - o.FilledSize
}

// Position is the net holding for one instrument. Size is signed; negative
// is short.
type Position struct {
	Size  float64
	Price float64
}

func (p Position) Flat() bool { return p.Size == 0 }

// Trade is one round trip from flat to flat.
type Trade struct {
	ID         uint64
	EntryOrder ID
	ExitOrder  ID // zero while open
	Side       Side

	Size       float64
	EntryPrice float64
	ExitPrice  float64
	Commission float64

	PnL    float64 // account currency, net of commission
	PnLPct float64 // PnL / capital committed at entry

	Closed   bool
	Opened   time.Time
	ClosedAt time.Time
}

// Committed is the capital put at risk when the trade was opened.
func (t Trade) Committed() float64 {
	c := t.EntryPrice * t.Size
	if c < 0 {
		return -c
	}
	return c
}
