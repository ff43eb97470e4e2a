package strategies

import (
	"fmt"
	"math/rand"

	"github.com/rustyeddy/kelly/market"
)

// DefaultSeed keeps runs reproducible when no seed is configured.
const DefaultSeed int64 = 1

type RandomConfig struct {
	TradeProbability float64 `json:"trade_probability" yaml:"trade_probability"`
	HoldBars         int     `json:"hold_bars" yaml:"hold_bars"`
	Seed             int64   `json:"seed" yaml:"seed"`
}

func DefaultRandomConfig() RandomConfig {
	return RandomConfig{
		TradeProbability: 0.01,
		HoldBars:         10,
		Seed:             DefaultSeed,
	}
}

func (c RandomConfig) Validate() error {
	if c.TradeProbability < 0 || c.TradeProbability > 1 {
		return fmt.Errorf("%w: trade_probability %g", ErrBadParam, c.TradeProbability)
	}
	if c.HoldBars < 0 {
		return fmt.Errorf("%w: hold_bars %d", ErrBadParam, c.HoldBars)
	}
	return nil
}

// Random is the baseline: on each bar without a pending order it trades with
// TradeProbability, buying when flat and selling once HoldBars have passed in
// the market. The same seed replays the same decisions.
type Random struct {
	Base
	RandomConfig

	rng  *rand.Rand
	held int
}

func NewRandom(cfg RandomConfig) (*Random, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Random{
		RandomConfig: cfg,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (s *Random) Name() string { return "random" }

// Reset reseeds the generator so a replay starts from the same sequence.
func (s *Random) Reset() {
	s.rng = rand.New(rand.NewSource(s.Seed))
	s.held = 0
}

func (s *Random) OnBar(ctx Context, b market.Bar) Decision {
	if ctx.InFlight {
		return hold()
	}
	if ctx.Position.Flat() {
		s.held = 0
	} else {
		s.held++
	}

	if s.rng.Float64() >= s.TradeProbability {
		return hold()
	}

	switch {
	case ctx.Position.Flat():
		return Decision{Signal: Buy, Reason: "random buy"}
	case ctx.Long() && s.held >= s.HoldBars:
		return Decision{Signal: Sell, Reason: fmt.Sprintf("random sell after %d bars", s.held)}
	}
	return hold()
}
