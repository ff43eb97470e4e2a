package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrOutOfOrder is returned when a bar's timestamp is earlier than the
// bar that preceded it.
var ErrOutOfOrder = errors.New("bar out of timestamp order")

// Bar is one OHLCV sample for a fixed interval.
type Bar struct {
	time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Feed yields bars one at a time in non-decreasing timestamp order.
// Implementations return (ok=false, err=nil) at EOF.
type Feed interface {
	Next() (b Bar, ok bool, err error)
	Close() error
}

// SliceFeed replays an in-memory slice of bars.
type SliceFeed struct {
	bars []Bar
	idx  int
}

func NewSliceFeed(bars []Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

func (f *SliceFeed) Next() (Bar, bool, error) {
	if f.idx >= len(f.bars) {
		return Bar{}, false, nil
	}
	b := f.bars[f.idx]
	f.idx++
	return b, true, nil
}

func (f *SliceFeed) Close() error { return nil }

// OrderGuard rejects bars that go backwards in time.
type OrderGuard struct {
	last time.Time
}

// Check returns ErrOutOfOrder when b is older than the previous bar seen.
// Equal timestamps are allowed.
func (g *OrderGuard) Check(b Bar) error {
	if !g.last.IsZero() && b.Time.Before(g.last) {
		return fmt.Errorf("%w: %s < %s", ErrOutOfOrder,
			b.Time.Format(time.RFC3339), g.last.Format(time.RFC3339))
	}
	g.last = b.Time
	return nil
}

// Last returns the timestamp of the most recent accepted bar.
func (g *OrderGuard) Last() time.Time { return g.last }
