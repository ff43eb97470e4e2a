package strategies

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"noop", "noop"},
		{"none", "noop"},
		{"open-once", "open-once"},
		{" RSI ", "rsi"},
		{"bb", "bollinger"},
		{"random", "random"},
		{"emacross", "ema-cross"},
	}

	for _, tt := range tests {
		s, err := New(tt.name, nil)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, s.Name())
	}

	s, _ := New("rsi", nil)
	assert.Equal(t, DefaultRSIConfig(), s.(*RSI).RSIConfig)

	r, _ := New("random", nil)
	assert.Equal(t, DefaultSeed, r.(*Random).Seed)
}

func TestRegistryParams(t *testing.T) {
	t.Parallel()

	// YAML decodes integers as int, JSON as float64
	s, err := New("rsi", Params{"period": 10, "oversold": 25, "overbought": 75.5})
	require.NoError(t, err)
	assert.Equal(t, RSIConfig{Period: 10, Oversold: 25, Overbought: 75.5}, s.(*RSI).RSIConfig)

	r, err := New("random", Params{"seed": float64(7), "trade_probability": "0.5", "hold_bars": 3})
	require.NoError(t, err)
	assert.Equal(t, RandomConfig{TradeProbability: 0.5, HoldBars: 3, Seed: 7}, r.(*Random).RandomConfig)

	b, err := New("bollinger", Params{"exit_on_middle": false, "stop_loss_pct": 2})
	require.NoError(t, err)
	assert.False(t, b.(*Bollinger).ExitOnMiddle)
	assert.Equal(t, 2.0, b.(*Bollinger).StopLossPct)
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()

	_, err := New("martingale", nil)
	assert.True(t, errors.Is(err, ErrUnknownStrategy))

	tests := []struct {
		name   string
		params Params
	}{
		{"rsi", Params{"period": "fourteen"}},
		{"rsi", Params{"period": 2.5}},
		{"bollinger", Params{"exit_on_middle": 3}},
		{"random", Params{"trade_probability": 2}},
		{"ema-cross", Params{"fast_period": 50, "slow_period": 10}},
		{"open-once", Params{"hold_bars": -1}},
		{"learned", nil},
		{"learned", Params{"model": 42}},
	}
	for _, tt := range tests {
		_, err := New(tt.name, tt.params)
		assert.True(t, errors.Is(err, ErrBadParam), "%s %v: %v", tt.name, tt.params, err)
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"bollinger", "ema-cross", "learned", "noop", "open-once", "random", "rsi"}, Names())
}
