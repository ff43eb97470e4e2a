package order

import (
	"fmt"
	"math"
	"time"
)

// sizeEpsilon absorbs float noise when deciding a position is flat.
const sizeEpsilon = 1e-9

// Submitter is the part of a broker the tracker drives. Implementations must
// not deliver notifications from inside SubmitOrder.
type Submitter interface {
	SubmitOrder(side Side, size float64) (ID, error)
	CancelOrder(id ID) error
}

// Recorder receives every closed trade.
type Recorder interface {
	Record(t Trade) error
}

type TrackerOptions struct {
	// AllowShort permits sells that take the position below zero.
	AllowShort bool
}

// Update describes what a single notification changed.
type Update struct {
	Order  Order
	Filled float64 // size filled by this notification
	Failed bool    // Rejected or MarginError

	Opened *Trade
	Closed []Trade
}

// Tracker owns the order state machine, the net position and the open trade
// for one instrument. At most one order is in flight at any time.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	broker     Submitter
	history    Recorder
	allowShort bool

	orders   map[ID]*Order
	sequence []ID
	inflight *Order

	pos      Position
	open     *Trade
	entryVal float64 // notional of every entry fill in the open trade
	exitQty  float64
	exitVal  float64
	tradeSeq uint64
	closed   int
}

func NewTracker(b Submitter, h Recorder, opts TrackerOptions) *Tracker {
	return &Tracker{
		broker:     b,
		history:    h,
		allowShort: opts.AllowShort,
		orders:     make(map[ID]*Order),
	}
}

// Submit validates and sends a new order to the broker.
func (t *Tracker) Submit(side Side, size float64, at time.Time) (ID, error) {
	if !(size > 0) || math.IsInf(size, 0) {
		return 0, fmt.Errorf("submit %s %v: %w", side, size, ErrInvalidSize)
	}
	if side != Buy && side != Sell {
		return 0, fmt.Errorf("submit side %d: %w", side, ErrInvalidSize)
	}
	if t.inflight != nil {
		return 0, fmt.Errorf("submit %s %v: %w: order %d is %s",
			side, size, ErrDuplicateOrder, t.inflight.ID, t.inflight.Status)
	}
	if !t.allowShort && side == Sell && size > t.pos.Size+sizeEpsilon {
		return 0, fmt.Errorf("submit SELL %v with position %v and shorting disabled: %w",
			size, t.pos.Size, ErrInvalidSize)
	}

	id, err := t.broker.SubmitOrder(side, size)
	if err != nil {
		return 0, fmt.Errorf("submit %s %v: %w", side, size, err)
	}
	if _, dup := t.orders[id]; dup {
		return 0, fmt.Errorf("broker reused order id %d: %w", id, ErrDuplicateOrder)
	}

	o := &Order{
		ID:        id,
		Side:      side,
		Size:      size,
		Status:    Submitted,
		Submitted: at,
	}
	t.orders[id] = o
	t.sequence = append(t.sequence, id)
	t.inflight = o
	return id, nil
}

// Cancel asks the broker to cancel an order that has not reached a terminal
// state. The status change arrives later as a notification.
func (t *Tracker) Cancel(id ID) error {
	o, ok := t.orders[id]
	if !ok {
		return fmt.Errorf("cancel %d: %w", id, ErrUnknownOrder)
	}
	if o.Status.Terminal() {
		return fmt.Errorf("cancel %d in %s: %w", id, o.Status, ErrIllegalTransition)
	}
	return t.broker.CancelOrder(id)
}

// OnNotification applies a broker status report. n carries the broker's view
// of the order: status, cumulative fill and commission.
func (t *Tracker) OnNotification(n Order) (Update, error) {
	o, ok := t.orders[n.ID]
	if !ok {
		return Update{}, fmt.Errorf("notification for %d: %w", n.ID, ErrUnknownOrder)
	}

	if n.Status == o.Status && n.Status != PartiallyFilled {
		return Update{Order: *o}, nil
	}
	if !CanTransition(o.Status, n.Status) {
		return Update{Order: *o}, fmt.Errorf("order %d %s -> %s: %w",
			o.ID, o.Status, n.Status, ErrIllegalTransition)
	}
	if n.FilledSize < o.FilledSize-sizeEpsilon || n.FilledSize > o.Size+sizeEpsilon {
		return Update{Order: *o}, fmt.Errorf("order %d fill %v of %v (was %v): %w",
			o.ID, n.FilledSize, o.Size, o.FilledSize, ErrInvalidSize)
	}

	up := Update{Failed: n.Status.Failed()}

	delta := n.FilledSize - o.FilledSize
	if delta > sizeEpsilon {
		price := (n.FilledPrice*n.FilledSize - o.FilledPrice*o.FilledSize) / delta
		comm := n.Commission - o.Commission
		at := n.Updated
		if at.IsZero() {
			at = n.Resolved
		}
		opened, closed, err := t.applyFill(o.ID, o.Side, delta, price, comm, at)
		if err != nil {
			return Update{Order: *o}, err
		}
		up.Filled = delta
		up.Opened = opened
		up.Closed = closed
	}

	o.Status = n.Status
	o.FilledPrice = n.FilledPrice
	o.FilledSize = n.FilledSize
	o.Commission = n.Commission
	o.Updated = n.Updated
	if o.Status.Terminal() {
		o.Resolved = n.Resolved
		if o.Resolved.IsZero() {
			o.Resolved = n.Updated
		}
		if t.inflight == o {
			t.inflight = nil
		}
	}

	up.Order = *o
	return up, nil
}

func (t *Tracker) applyFill(id ID, side Side, size, price, comm float64, at time.Time) (*Trade, []Trade, error) {
	signed := side.Sign() * size

	if t.pos.Flat() {
		return t.openTrade(id, side, size, price, comm, at), nil, nil
	}

	if math.Signbit(t.pos.Size) == math.Signbit(signed) {
		held := math.Abs(t.pos.Size)
		t.pos.Price = (held*t.pos.Price + size*price) / (held + size)
		t.pos.Size += signed
		// The trade's entry price averages every entry fill, including
		// units already exited; the position averages only what is held.
		t.entryVal += size * price
		t.open.Size += size
		t.open.EntryPrice = t.entryVal / t.open.Size
		t.open.Commission += comm
		return nil, nil, nil
	}

	held := math.Abs(t.pos.Size)
	closeQty := math.Min(size, held)
	closeComm := comm * closeQty / size

	t.exitQty += closeQty
	t.exitVal += closeQty * price
	t.open.Commission += closeComm
	t.pos.Size += side.Sign() * closeQty

	if math.Abs(t.pos.Size) > sizeEpsilon {
		return nil, nil, nil
	}

	tr, err := t.closeTrade(id, at)
	if err != nil {
		return nil, nil, err
	}
	closed := []Trade{tr}

	if rest := size - closeQty; rest > sizeEpsilon {
		opened := t.openTrade(id, side, rest, price, comm-closeComm, at)
		return opened, closed, nil
	}
	return nil, closed, nil
}

func (t *Tracker) openTrade(id ID, side Side, size, price, comm float64, at time.Time) *Trade {
	t.tradeSeq++
	t.open = &Trade{
		ID:         t.tradeSeq,
		EntryOrder: id,
		Side:       side,
		Size:       size,
		EntryPrice: price,
		Commission: comm,
		Opened:     at,
	}
	t.entryVal = size * price
	t.exitQty, t.exitVal = 0, 0
	t.pos = Position{Size: side.Sign() * size, Price: price}

	tr := *t.open
	return &tr
}

func (t *Tracker) closeTrade(id ID, at time.Time) (Trade, error) {
	tr := *t.open
	tr.ExitOrder = id
	tr.ExitPrice = t.exitVal / t.exitQty
	tr.Closed = true
	tr.ClosedAt = at
	tr.PnL = (tr.ExitPrice-tr.EntryPrice)*tr.Size*tr.Side.Sign() - tr.Commission
	if c := tr.Committed(); c > 0 {
		tr.PnLPct = tr.PnL / c
	}

	t.open = nil
	t.entryVal = 0
	t.exitQty, t.exitVal = 0, 0
	t.pos = Position{}
	t.closed++

	if t.history != nil {
		if err := t.history.Record(tr); err != nil {
			return tr, fmt.Errorf("record trade %d: %w", tr.ID, err)
		}
	}
	return tr, nil
}

// InFlight returns the order awaiting resolution, if any.
func (t *Tracker) InFlight() (Order, bool) {
	if t.inflight == nil {
		return Order{}, false
	}
	return *t.inflight, true
}

func (t *Tracker) Position() Position { return t.pos }

// OpenTrade returns the trade the current position belongs to.
func (t *Tracker) OpenTrade() (Trade, bool) {
	if t.open == nil {
		return Trade{}, false
	}
	return *t.open, true
}

func (t *Tracker) Order(id ID) (Order, bool) {
	o, ok := t.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders returns every order in submission order.
func (t *Tracker) Orders() []Order {
	out := make([]Order, 0, len(t.sequence))
	for _, id := range t.sequence {
		out = append(out, *t.orders[id])
	}
	return out
}

// ClosedTrades is the number of trades closed so far.
func (t *Tracker) ClosedTrades() int { return t.closed }
