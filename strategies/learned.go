package strategies

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/rustyeddy/kelly/market"
)

// Predictor maps a feature window to the probability that the next move is
// up.
type Predictor interface {
	Predict(features []float32) (float32, error)
}

type LearnedConfig struct {
	Window    int     `json:"window" yaml:"window"`         // log returns per prediction
	BuyAbove  float64 `json:"buy_above" yaml:"buy_above"`   // enter when p >= BuyAbove
	SellBelow float64 `json:"sell_below" yaml:"sell_below"` // exit when p <= SellBelow
}

func DefaultLearnedConfig() LearnedConfig {
	return LearnedConfig{
		Window:    16,
		BuyAbove:  0.6,
		SellBelow: 0.4,
	}
}

func (c LearnedConfig) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("%w: window %d", ErrBadParam, c.Window)
	}
	if c.BuyAbove <= c.SellBelow || c.BuyAbove > 1 || c.SellBelow < 0 {
		return fmt.Errorf("%w: thresholds buy_above %g sell_below %g", ErrBadParam, c.BuyAbove, c.SellBelow)
	}
	return nil
}

// Learned asks a Predictor for a probability on every bar once Window log
// returns are known. A failed prediction holds and is kept in Err.
type Learned struct {
	Base
	LearnedConfig

	model   Predictor
	closes  []float64
	feature []float32
	err     error
}

func NewLearned(cfg LearnedConfig, model Predictor) (*Learned, error) {
	if model == nil {
		return nil, errors.New("learned strategy needs a predictor")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Learned{
		LearnedConfig: cfg,
		model:         model,
		closes:        make([]float64, 0, cfg.Window+1),
		feature:       make([]float32, cfg.Window),
	}, nil
}

func (s *Learned) Name() string { return "learned" }

func (s *Learned) Reset() {
	s.closes = s.closes[:0]
	s.err = nil
}

// Err returns the last prediction error.
func (s *Learned) Err() error { return s.err }

// Close releases the predictor if it holds resources.
func (s *Learned) Close() error {
	if c, ok := s.model.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Learned) OnBar(ctx Context, b market.Bar) Decision {
	if len(s.closes) == s.Window+1 {
		copy(s.closes, s.closes[1:])
		s.closes = s.closes[:s.Window]
	}
	s.closes = append(s.closes, b.Close)

	if len(s.closes) <= s.Window || ctx.InFlight {
		return hold()
	}

	for i := 1; i < len(s.closes); i++ {
		prev, cur := s.closes[i-1], s.closes[i]
		if prev <= 0 || cur <= 0 {
			s.feature[i-1] = 0
			continue
		}
		s.feature[i-1] = float32(math.Log(cur / prev))
	}

	p, err := s.model.Predict(s.feature)
	if err != nil {
		s.err = fmt.Errorf("predict at %s: %w", b.Time, err)
		return Decision{Signal: Hold, Reason: s.err.Error()}
	}

	switch {
	case ctx.Position.Flat() && float64(p) >= s.BuyAbove:
		return Decision{Signal: Buy, Reason: fmt.Sprintf("p(up) %.3f >= %g", p, s.BuyAbove)}
	case ctx.Long() && float64(p) <= s.SellBelow:
		return Decision{Signal: Sell, Reason: fmt.Sprintf("p(up) %.3f <= %g", p, s.SellBelow)}
	}
	return hold()
}
