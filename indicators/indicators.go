// Package indicators provides streaming technical analysis indicators for
// strategies.
package indicators

import "github.com/rustyeddy/kelly/market"

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to use in replays and backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current value, or 0 until Ready.
	Value() float64
}
