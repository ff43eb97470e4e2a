// Package history keeps a bounded rolling window of closed trades and the
// win/loss statistics Kelly sizing is derived from.
package history

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/kelly/order"
)

// DefaultCapacity is the number of trades kept when none is configured.
const DefaultCapacity = 100

// ErrTradeOpen is returned when an open trade is offered to Record.
var ErrTradeOpen = errors.New("trade is not closed")

// KellyStats summarises the trades in the window.
//
// A trade with PnLPct > 0 is a win; anything else, breakeven included, is a
// loss. AvgLoss is the mean PnLPct of losses and is therefore <= 0. When the
// window holds no wins AvgWin is 0, and when it holds no losses AvgLoss is 0.
type KellyStats struct {
	SampleCount int
	Wins        int
	Losses      int
	WinRate     float64
	AvgWin      float64
	AvgLoss     float64
}

// History is a ring buffer of the most recent closed trades. Statistics are
// maintained incrementally from running sums. It is not safe for concurrent
// use; each backtest owns its own.
type History struct {
	buf   []order.Trade
	head  int // index of the oldest trade
	count int

	wins    int
	winSum  float64
	lossSum float64

	evictions int
	stats     KellyStats
}

// New returns a History holding at most capacity trades. A capacity <= 0
// selects DefaultCapacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{buf: make([]order.Trade, capacity)}
}

// Record appends a closed trade, evicting the oldest once the window is full.
func (h *History) Record(t order.Trade) error {
	if !t.Closed {
		return fmt.Errorf("record trade %d: %w", t.ID, ErrTradeOpen)
	}

	if h.count == len(h.buf) {
		h.remove(h.buf[h.head])
		h.buf[h.head] = t
		h.head = (h.head + 1) % len(h.buf)
		h.evictions++
	} else {
		h.buf[(h.head+h.count)%len(h.buf)] = t
		h.count++
	}
	h.add(t)

	// Subtracting evicted values slowly accumulates rounding error; rebuild
	// the sums from the window once per full rotation.
	if h.evictions >= len(h.buf) {
		h.resum()
	}

	h.recompute()
	return nil
}

func (h *History) add(t order.Trade) {
	if t.PnLPct > 0 {
		h.wins++
		h.winSum += t.PnLPct
		return
	}
	h.lossSum += t.PnLPct
}

func (h *History) remove(t order.Trade) {
	if t.PnLPct > 0 {
		h.wins--
		h.winSum -= t.PnLPct
		return
	}
	h.lossSum -= t.PnLPct
}

func (h *History) resum() {
	h.wins, h.winSum, h.lossSum = 0, 0, 0
	for i := 0; i < h.count; i++ {
		h.add(h.buf[(h.head+i)%len(h.buf)])
	}
	h.evictions = 0
}

func (h *History) recompute() {
	s := KellyStats{
		SampleCount: h.count,
		Wins:        h.wins,
		Losses:      h.count - h.wins,
	}
	if s.SampleCount > 0 {
		s.WinRate = float64(s.Wins) / float64(s.SampleCount)
	}
	if s.Wins > 0 {
		s.AvgWin = h.winSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = h.lossSum / float64(s.Losses)
	}
	h.stats = s
}

// Stats returns the statistics for the current window.
func (h *History) Stats() KellyStats { return h.stats }

// Trades returns a copy of the window, oldest first.
func (h *History) Trades() []order.Trade {
	out := make([]order.Trade, h.count)
	for i := range out {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

func (h *History) Len() int { return h.count }
func (h *History) Cap() int { return len(h.buf) }
