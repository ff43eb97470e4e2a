package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/rustyeddy/kelly/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kellyConfig() Config {
	cfg := DefaultConfig()
	cfg.Method = Kelly
	cfg.UnitSize = 1e-8
	return cfg
}

func edgeStats(n int) history.KellyStats {
	return history.KellyStats{
		SampleCount: n,
		Wins:        n * 6 / 10,
		Losses:      n - n*6/10,
		WinRate:     0.60,
		AvgWin:      0.03,
		AvgLoss:     -0.02,
	}
}

func TestFixedSizing(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	var s Sizer

	assert.Equal(t, 10.0, s.ComputeSize(cfg, 10_000, 100, history.KellyStats{}))

	res := s.Plan(cfg, 10_000, 100, history.KellyStats{})
	assert.Equal(t, Fixed, res.Method)
	assert.InDelta(t, 0.10, res.Fraction, 1e-12)
	assert.NoError(t, res.Fallback)
}

func TestFixedSizingFloorsToUnit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cash  float64
		price float64
		unit  float64
		want  float64
	}{
		{"whole units", 10_000, 33, 1, 30},
		{"lots of ten", 10_000, 33, 10, 30},
		{"fractional unit", 1_000, 30_000, 0.0001, 0.0033},
		{"below one unit", 100, 1_000, 1, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			cfg.UnitSize = tt.unit
			got := Sizer{}.ComputeSize(cfg, tt.cash, tt.price, history.KellyStats{})
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestKellyFormula(t *testing.T) {
	t.Parallel()

	k, ok := KellyPct(0.60, 0.03, -0.02)
	require.True(t, ok)
	assert.InDelta(t, 0.3333, k, 1e-4)

	res := Sizer{}.Plan(kellyConfig(), 10_000, 100, edgeStats(50))
	assert.Equal(t, Kelly, res.Method)
	assert.NoError(t, res.Fallback)
	assert.InDelta(t, 0.3333, res.KellyPct, 1e-4)
	assert.InDelta(t, 0.0833, res.Fraction, 1e-4)
	assert.InDelta(t, 10_000*res.Fraction/100, res.Units, 1e-6)
}

func TestKellyAcceptsPositiveAvgLoss(t *testing.T) {
	t.Parallel()

	neg, _ := KellyPct(0.6, 0.03, -0.02)
	pos, _ := KellyPct(0.6, 0.03, 0.02)
	assert.Equal(t, neg, pos)
}

func TestKellyFallsBackBelowMinTrades(t *testing.T) {
	t.Parallel()

	kelly := kellyConfig()
	fixed := kelly
	fixed.Method = Fixed

	for n := 0; n < kelly.MinTradesForKelly; n++ {
		stats := edgeStats(n)
		for _, price := range []float64{1, 37.5, 100, 2500} {
			want := Sizer{}.ComputeSize(fixed, 10_000, price, stats)
			res := Sizer{}.Plan(kelly, 10_000, price, stats)
			assert.Equal(t, want, res.Units, "n=%d price=%v", n, price)
			assert.Equal(t, Fixed, res.Method)
			assert.True(t, errors.Is(res.Fallback, ErrInsufficientData))
		}
	}
}

func TestKellyAllLossesFallsBack(t *testing.T) {
	t.Parallel()

	cfg := kellyConfig()
	stats := history.KellyStats{SampleCount: 30, Losses: 30, AvgLoss: -0.01}

	res := Sizer{}.Plan(cfg, 10_000, 100, stats)
	assert.Equal(t, Fixed, res.Method)
	assert.ErrorIs(t, res.Fallback, ErrNoEdgeData)
	assert.InDelta(t, 10, res.Units, 1e-6)
}

func TestKellyAllWinsFallsBack(t *testing.T) {
	t.Parallel()

	stats := history.KellyStats{SampleCount: 30, Wins: 30, WinRate: 1, AvgWin: 0.02}
	res := Sizer{}.Plan(kellyConfig(), 10_000, 100, stats)
	assert.Equal(t, Fixed, res.Method)
	assert.ErrorIs(t, res.Fallback, ErrNoEdgeData)
}

func TestKellyNegativeEdgeIsZero(t *testing.T) {
	t.Parallel()

	stats := history.KellyStats{SampleCount: 30, Wins: 9, Losses: 21, WinRate: 0.3, AvgWin: 0.01, AvgLoss: -0.02}
	res := Sizer{}.Plan(kellyConfig(), 10_000, 100, stats)
	assert.Equal(t, Kelly, res.Method)
	assert.Less(t, res.KellyPct, 0.0)
	assert.Zero(t, res.Fraction)
	assert.Zero(t, res.Units)
}

func TestKellyClampedToMaxPosition(t *testing.T) {
	t.Parallel()

	cfg := kellyConfig()
	cfg.MaxPositionFraction = 0.2
	cfg.KellyFraction = 1

	stats := history.KellyStats{SampleCount: 30, WinRate: 0.9, AvgWin: 0.05, AvgLoss: -0.01}
	res := Sizer{}.Plan(cfg, 10_000, 100, stats)
	assert.InDelta(t, 0.2, res.Fraction, 1e-12)
	assert.InDelta(t, 20, res.Units, 1e-6)
}

func TestSizeBounds(t *testing.T) {
	t.Parallel()

	cfgs := []Config{DefaultConfig(), kellyConfig()}
	cfgs[0].FixedFraction = 1
	cfgs[1].KellyFraction = 1

	stats := []history.KellyStats{
		{},
		edgeStats(40),
		{SampleCount: 40, WinRate: 0.99, AvgWin: 1, AvgLoss: -0.0001},
	}
	for _, cfg := range cfgs {
		for _, st := range stats {
			for _, cash := range []float64{0, 1, 999.99, 1e6} {
				for _, price := range []float64{0.01, 1, 97, 1e5} {
					u := Sizer{}.ComputeSize(cfg, cash, price, st)
					assert.GreaterOrEqual(t, u, 0.0)
					assert.LessOrEqual(t, u, cash/price+1e-9)
				}
			}
		}
	}
}

func TestDegenerateInputsNeverPanic(t *testing.T) {
	t.Parallel()

	cfg := kellyConfig()
	bad := []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, cash := range bad {
		assert.Zero(t, Sizer{}.ComputeSize(cfg, cash, 100, edgeStats(30)))
	}
	for _, price := range bad {
		assert.Zero(t, Sizer{}.ComputeSize(cfg, 10_000, price, edgeStats(30)))
	}

	st := edgeStats(30)
	st.AvgLoss = math.NaN()
	res := Sizer{}.Plan(cfg, 10_000, 100, st)
	assert.ErrorIs(t, res.Fallback, ErrNoEdgeData)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name  string
		field string
		mod   func(*Config)
	}{
		{"bad method", "position_method", func(c *Config) { c.Method = "martingale" }},
		{"zero fixed", "position_size", func(c *Config) { c.FixedFraction = 0 }},
		{"negative fixed", "position_size", func(c *Config) { c.FixedFraction = -0.1 }},
		{"fixed above one", "position_size", func(c *Config) { c.FixedFraction = 1.5 }},
		{"kelly above one", "kelly_fraction", func(c *Config) { c.KellyFraction = 2 }},
		{"nan kelly", "kelly_fraction", func(c *Config) { c.KellyFraction = math.NaN() }},
		{"zero max", "max_position_fraction", func(c *Config) { c.MaxPositionFraction = 0 }},
		{"zero lookback", "lookback_window", func(c *Config) { c.Lookback = 0 }},
		{"negative min trades", "min_trades_for_kelly", func(c *Config) { c.MinTradesForKelly = -1 }},
		{"min trades above lookback", "min_trades_for_kelly", func(c *Config) { c.MinTradesForKelly = 101 }},
		{"zero unit", "unit_size", func(c *Config) { c.UnitSize = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mod(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	m, err := ParseMethod(" Kelly ")
	require.NoError(t, err)
	assert.Equal(t, Kelly, m)

	_, err = ParseMethod("optimal-f")
	assert.ErrorIs(t, err, ErrConfiguration)
}
