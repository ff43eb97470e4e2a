package strategies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/kelly/strategies/onnx"
)

type factory func(Params) (Strategy, error)

var registry = map[string]factory{
	"noop":      newNoop,
	"open-once": newOpenOnce,
	"rsi":       newRSI,
	"bollinger": newBollinger,
	"random":    newRandom,
	"ema-cross": newEMACross,
	"learned":   newLearned,
}

var aliases = map[string]string{
	"none":     "noop",
	"emacross": "ema-cross",
	"bb":       "bollinger",
	"rand":     "random",
	"onnx":     "learned",
}

// Names lists the registered strategies.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New builds a strategy by name. Missing parameters take the strategy's
// defaults.
func New(name string, params Params) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[key]; ok {
		key = a
	}
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
	s, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", key, err)
	}
	return s, nil
}

func newNoop(Params) (Strategy, error) {
	return Noop{}, nil
}

func newOpenOnce(p Params) (Strategy, error) {
	r := reader{p: p}
	s := &OpenOnce{HoldBars: r.Int("hold_bars", 0)}
	if r.err != nil {
		return nil, r.err
	}
	if s.HoldBars < 0 {
		return nil, fmt.Errorf("%w: hold_bars %d", ErrBadParam, s.HoldBars)
	}
	return s, nil
}

func newRSI(p Params) (Strategy, error) {
	r := reader{p: p}
	d := DefaultRSIConfig()
	cfg := RSIConfig{
		Period:     r.Int("period", d.Period),
		Oversold:   r.Float("oversold", d.Oversold),
		Overbought: r.Float("overbought", d.Overbought),
	}
	if r.err != nil {
		return nil, r.err
	}
	return NewRSI(cfg)
}

func newBollinger(p Params) (Strategy, error) {
	r := reader{p: p}
	d := DefaultBollingerConfig()
	cfg := BollingerConfig{
		Period:        r.Int("period", d.Period),
		DevFactor:     r.Float("devfactor", d.DevFactor),
		ExitOnMiddle:  r.Bool("exit_on_middle", d.ExitOnMiddle),
		StopLossPct:   r.Float("stop_loss_pct", d.StopLossPct),
		TakeProfitPct: r.Float("take_profit_pct", d.TakeProfitPct),
	}
	if r.err != nil {
		return nil, r.err
	}
	return NewBollinger(cfg)
}

func newRandom(p Params) (Strategy, error) {
	r := reader{p: p}
	d := DefaultRandomConfig()
	cfg := RandomConfig{
		TradeProbability: r.Float("trade_probability", d.TradeProbability),
		HoldBars:         r.Int("hold_bars", d.HoldBars),
		Seed:             r.Int64("seed", d.Seed),
	}
	if r.err != nil {
		return nil, r.err
	}
	return NewRandom(cfg)
}

func newEMACross(p Params) (Strategy, error) {
	r := reader{p: p}
	d := DefaultEMACrossConfig()
	cfg := EMACrossConfig{
		FastPeriod: r.Int("fast_period", d.FastPeriod),
		SlowPeriod: r.Int("slow_period", d.SlowPeriod),
		ADXPeriod:  r.Int("adx_period", d.ADXPeriod),
		MinADX:     r.Float("min_adx", d.MinADX),
		ATRPeriod:  r.Int("atr_period", d.ATRPeriod),
		StopATR:    r.Float("stop_atr", d.StopATR),
	}
	if r.err != nil {
		return nil, r.err
	}
	return NewEMACross(cfg)
}

func newLearned(p Params) (Strategy, error) {
	r := reader{p: p}
	d := DefaultLearnedConfig()
	cfg := LearnedConfig{
		Window:    r.Int("window", d.Window),
		BuyAbove:  r.Float("buy_above", d.BuyAbove),
		SellBelow: r.Float("sell_below", d.SellBelow),
	}
	ocfg := onnx.Config{
		ModelPath:   r.String("model", ""),
		LibraryPath: r.String("library", ""),
		InputName:   r.String("input", ""),
		OutputName:  r.String("output", ""),
		Window:      cfg.Window,
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ocfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: model path is required", ErrBadParam)
	}

	model, err := onnx.NewPredictor(ocfg)
	if err != nil {
		return nil, err
	}
	s, err := NewLearned(cfg, model)
	if err != nil {
		model.Close()
		return nil, err
	}
	return s, nil
}
