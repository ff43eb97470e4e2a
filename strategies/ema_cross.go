package strategies

import (
	"fmt"

	"github.com/rustyeddy/kelly/indicators"
	"github.com/rustyeddy/kelly/market"
)

type EMACrossConfig struct {
	FastPeriod int `json:"fast_period" yaml:"fast_period"` // 10
	SlowPeriod int `json:"slow_period" yaml:"slow_period"` // 30

	// MinADX filters entries to trending markets; 0 disables the filter.
	ADXPeriod int     `json:"adx_period" yaml:"adx_period"`
	MinADX    float64 `json:"min_adx" yaml:"min_adx"`

	// StopATR exits a long StopATR average true ranges below the entry
	// price; 0 disables the stop.
	ATRPeriod int     `json:"atr_period" yaml:"atr_period"`
	StopATR   float64 `json:"stop_atr" yaml:"stop_atr"`
}

func DefaultEMACrossConfig() EMACrossConfig {
	return EMACrossConfig{
		FastPeriod: 10,
		SlowPeriod: 30,
		ADXPeriod:  14,
		ATRPeriod:  14,
	}
}

func (c EMACrossConfig) Validate() error {
	if c.FastPeriod < 1 || c.SlowPeriod < 1 {
		return fmt.Errorf("%w: ema periods must be > 0", ErrBadParam)
	}
	if c.FastPeriod >= c.SlowPeriod {
		return fmt.Errorf("%w: ema cross requires fast_period < slow_period", ErrBadParam)
	}
	if c.MinADX < 0 || (c.MinADX > 0 && c.ADXPeriod < 1) {
		return fmt.Errorf("%w: adx filter %g/%d", ErrBadParam, c.MinADX, c.ADXPeriod)
	}
	if c.StopATR < 0 || (c.StopATR > 0 && c.ATRPeriod < 1) {
		return fmt.Errorf("%w: atr stop %g/%d", ErrBadParam, c.StopATR, c.ATRPeriod)
	}
	return nil
}

// EMACross trades a fast/slow EMA crossover long only: it enters on a bull
// cross and exits on a bear cross or the optional ATR stop.
type EMACross struct {
	Base
	EMACrossConfig

	fast *indicators.EMA
	slow *indicators.EMA
	adx  *indicators.ADX
	atr  *indicators.ATR

	lastDiff     float64
	haveLastDiff bool
}

func NewEMACross(cfg EMACrossConfig) (*EMACross, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &EMACross{
		EMACrossConfig: cfg,
		fast:           indicators.NewEMA(cfg.FastPeriod),
		slow:           indicators.NewEMA(cfg.SlowPeriod),
	}
	if cfg.MinADX > 0 {
		s.adx = indicators.NewADX(cfg.ADXPeriod)
	}
	if cfg.StopATR > 0 {
		s.atr = indicators.NewATR(cfg.ATRPeriod)
	}
	return s, nil
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) Reset() {
	for _, ind := range s.indicators() {
		ind.Reset()
	}
	s.lastDiff = 0
	s.haveLastDiff = false
}

func (s *EMACross) indicators() []indicators.Indicator {
	out := []indicators.Indicator{s.fast, s.slow}
	if s.adx != nil {
		out = append(out, s.adx)
	}
	if s.atr != nil {
		out = append(out, s.atr)
	}
	return out
}

func (s *EMACross) OnBar(ctx Context, b market.Bar) Decision {
	for _, ind := range s.indicators() {
		ind.Update(b)
	}

	if !s.fast.Ready() || !s.slow.Ready() {
		return hold()
	}

	diff := s.fast.Value() - s.slow.Value()
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return hold()
	}

	bullCross := diff > 0 && s.lastDiff <= 0
	bearCross := diff < 0 && s.lastDiff >= 0
	s.lastDiff = diff

	if ctx.InFlight {
		return hold()
	}

	if ctx.Long() {
		if bearCross {
			return Decision{Signal: Sell, Reason: "bear cross"}
		}
		if s.atr != nil && s.atr.Ready() {
			stop := ctx.Position.Price - s.StopATR*s.atr.Value()
			if b.Close < stop {
				return Decision{Signal: Sell, Reason: fmt.Sprintf("atr stop: price %.5f < %.5f", b.Close, stop)}
			}
		}
		return hold()
	}

	if !bullCross || !ctx.Position.Flat() {
		return hold()
	}
	if s.adx != nil {
		plus, minus := s.adx.DI()
		if !s.adx.Ready() || s.adx.Value() < s.MinADX || plus <= minus {
			return hold()
		}
	}
	return Decision{Signal: Buy, Reason: "bull cross"}
}
