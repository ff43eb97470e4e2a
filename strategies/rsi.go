package strategies

import (
	"fmt"

	"github.com/rustyeddy/kelly/indicators"
	"github.com/rustyeddy/kelly/market"
)

type RSIConfig struct {
	Period     int     `json:"period" yaml:"period"`
	Oversold   float64 `json:"oversold" yaml:"oversold"`
	Overbought float64 `json:"overbought" yaml:"overbought"`
}

func DefaultRSIConfig() RSIConfig {
	return RSIConfig{
		Period:     14,
		Oversold:   20,
		Overbought: 80,
	}
}

func (c RSIConfig) Validate() error {
	if c.Period < 1 {
		return fmt.Errorf("%w: rsi period %d", ErrBadParam, c.Period)
	}
	if c.Oversold < 0 || c.Overbought > 100 || c.Oversold >= c.Overbought {
		return fmt.Errorf("%w: rsi thresholds %g/%g", ErrBadParam, c.Oversold, c.Overbought)
	}
	return nil
}

// RSI buys when the index drops below Oversold while flat and sells when it
// rises above Overbought while long.
type RSI struct {
	Base
	RSIConfig

	rsi *indicators.RSI
}

func NewRSI(cfg RSIConfig) (*RSI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RSI{RSIConfig: cfg, rsi: indicators.NewRSI(cfg.Period)}, nil
}

func (s *RSI) Name() string { return "rsi" }

func (s *RSI) Reset() { s.rsi.Reset() }

func (s *RSI) OnBar(ctx Context, b market.Bar) Decision {
	s.rsi.Update(b)
	if !s.rsi.Ready() || ctx.InFlight {
		return hold()
	}

	v := s.rsi.Value()
	switch {
	case ctx.Position.Flat() && v < s.Oversold:
		return Decision{Signal: Buy, Reason: fmt.Sprintf("RSI %.2f < %g", v, s.Oversold)}
	case ctx.Long() && v > s.Overbought:
		return Decision{Signal: Sell, Reason: fmt.Sprintf("RSI %.2f > %g", v, s.Overbought)}
	}
	return hold()
}
