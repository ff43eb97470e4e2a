package strategies

import (
	"fmt"

	"github.com/rustyeddy/kelly/indicators"
	"github.com/rustyeddy/kelly/market"
)

// BollingerConfig percentages are whole numbers: StopLossPct of 2 exits 2%
// below the entry price. Zero disables either exit.
type BollingerConfig struct {
	Period        int     `json:"period" yaml:"period"`
	DevFactor     float64 `json:"devfactor" yaml:"devfactor"`
	ExitOnMiddle  bool    `json:"exit_on_middle" yaml:"exit_on_middle"`
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
}

func DefaultBollingerConfig() BollingerConfig {
	return BollingerConfig{
		Period:       20,
		DevFactor:    2,
		ExitOnMiddle: true,
	}
}

func (c BollingerConfig) Validate() error {
	if c.Period < 2 {
		return fmt.Errorf("%w: bollinger period %d", ErrBadParam, c.Period)
	}
	if c.DevFactor <= 0 {
		return fmt.Errorf("%w: bollinger devfactor %g", ErrBadParam, c.DevFactor)
	}
	if c.StopLossPct < 0 || c.StopLossPct >= 100 || c.TakeProfitPct < 0 {
		return fmt.Errorf("%w: bollinger stop %g take %g", ErrBadParam, c.StopLossPct, c.TakeProfitPct)
	}
	return nil
}

// Bollinger is a mean reversion strategy. It buys a close below the lower
// band and exits, in order of precedence, above the upper band, above the
// middle band, on the stop loss or on the take profit. A configured stop
// loss does not disable the take profit.
type Bollinger struct {
	Base
	BollingerConfig

	bb *indicators.Bollinger
}

func NewBollinger(cfg BollingerConfig) (*Bollinger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bollinger{
		BollingerConfig: cfg,
		bb:              indicators.NewBollinger(cfg.Period, cfg.DevFactor),
	}, nil
}

func (s *Bollinger) Name() string { return "bollinger" }

func (s *Bollinger) Reset() { s.bb.Reset() }

func (s *Bollinger) OnBar(ctx Context, b market.Bar) Decision {
	s.bb.Update(b)
	if !s.bb.Ready() || ctx.InFlight {
		return hold()
	}

	price := b.Close
	lower, middle, upper := s.bb.Bands()

	if ctx.Position.Flat() {
		if price < lower {
			return Decision{Signal: Buy, Reason: fmt.Sprintf("price %.5f < lower band %.5f", price, lower)}
		}
		return hold()
	}
	if !ctx.Long() {
		return hold()
	}

	entry := ctx.Position.Price
	switch {
	case price > upper:
		return Decision{Signal: Sell, Reason: fmt.Sprintf("price %.5f > upper band %.5f", price, upper)}
	case s.ExitOnMiddle && price > middle:
		return Decision{Signal: Sell, Reason: fmt.Sprintf("price %.5f > middle band %.5f", price, middle)}
	case s.StopLossPct > 0 && entry > 0 && price < entry*(1-s.StopLossPct/100):
		return Decision{Signal: Sell, Reason: fmt.Sprintf("stop loss: price %.5f < %.5f", price, entry*(1-s.StopLossPct/100))}
	case s.TakeProfitPct > 0 && entry > 0 && price > entry*(1+s.TakeProfitPct/100):
		return Decision{Signal: Sell, Reason: fmt.Sprintf("take profit: price %.5f > %.5f", price, entry*(1+s.TakeProfitPct/100))}
	}
	return hold()
}
