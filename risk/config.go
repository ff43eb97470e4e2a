package risk

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrConfiguration is the sentinel wrapped by every *ConfigError.
var ErrConfiguration = errors.New("invalid sizing configuration")

// ConfigError names the offending field. It is fatal: values are never
// clamped into range.
type ConfigError struct {
	Field string
	Value any
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sizing.%s=%v: %s", e.Field, e.Value, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

type Method string

const (
	Fixed Method = "fixed"
	Kelly Method = "kelly"
)

// ParseMethod accepts "fixed" or "kelly", case insensitive.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case Fixed, Kelly:
		return m, nil
	default:
		return "", &ConfigError{Field: "position_method", Value: s, Msg: "must be fixed or kelly"}
	}
}

// Config is the sizing configuration. Every option has a default; see
// DefaultConfig.
type Config struct {
	Method              Method  `json:"position_method" yaml:"position_method"`
	FixedFraction       float64 `json:"position_size" yaml:"position_size"`
	KellyFraction       float64 `json:"kelly_fraction" yaml:"kelly_fraction"`
	Lookback            int     `json:"lookback_window" yaml:"lookback_window"`
	MinTradesForKelly   int     `json:"min_trades_for_kelly" yaml:"min_trades_for_kelly"`
	MaxPositionFraction float64 `json:"max_position_fraction" yaml:"max_position_fraction"`

	// UnitSize is the smallest tradable quantity; sizes are floored to a
	// multiple of it.
	UnitSize float64 `json:"unit_size" yaml:"unit_size"`
}

func DefaultConfig() Config {
	return Config{
		Method:              Fixed,
		FixedFraction:       0.10,
		KellyFraction:       0.25,
		Lookback:            100,
		MinTradesForKelly:   20,
		MaxPositionFraction: 1.0,
		UnitSize:            1,
	}
}

func fraction(field string, v float64) error {
	if math.IsNaN(v) || v <= 0 || v > 1 {
		return &ConfigError{Field: field, Value: v, Msg: "must be in (0, 1]"}
	}
	return nil
}

// Validate reports the first out of range option.
func (c Config) Validate() error {
	if c.Method != Fixed && c.Method != Kelly {
		return &ConfigError{Field: "position_method", Value: c.Method, Msg: "must be fixed or kelly"}
	}
	if err := fraction("position_size", c.FixedFraction); err != nil {
		return err
	}
	if err := fraction("kelly_fraction", c.KellyFraction); err != nil {
		return err
	}
	if err := fraction("max_position_fraction", c.MaxPositionFraction); err != nil {
		return err
	}
	if c.Lookback <= 0 {
		return &ConfigError{Field: "lookback_window", Value: c.Lookback, Msg: "must be positive"}
	}
	if c.MinTradesForKelly < 0 {
		return &ConfigError{Field: "min_trades_for_kelly", Value: c.MinTradesForKelly, Msg: "must not be negative"}
	}
	if c.MinTradesForKelly > c.Lookback {
		return &ConfigError{Field: "min_trades_for_kelly", Value: c.MinTradesForKelly,
			Msg: fmt.Sprintf("can never be reached with lookback_window %d", c.Lookback)}
	}
	if math.IsNaN(c.UnitSize) || math.IsInf(c.UnitSize, 0) || c.UnitSize <= 0 {
		return &ConfigError{Field: "unit_size", Value: c.UnitSize, Msg: "must be positive"}
	}
	return nil
}
