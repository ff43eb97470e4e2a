// Package config loads and validates backtest configuration files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/kelly/broker/sim"
	"github.com/rustyeddy/kelly/risk"
	"github.com/rustyeddy/kelly/strategies"
)

// Journal types.
const (
	JournalNone     = "none"
	JournalCSV      = "csv"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

// Config represents a complete backtest configuration
type Config struct {
	Run      RunConfig      `json:"run" yaml:"run"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Sizing   risk.Config    `json:"sizing" yaml:"sizing"`
	Broker   BrokerConfig   `json:"broker" yaml:"broker"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

type RunConfig struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"` // empty issues a new one per run
	Instrument string `json:"instrument" yaml:"instrument"`
}

// DataConfig points at a CSV file of datetime,open,high,low,close[,volume]
// rows.
type DataConfig struct {
	Path string `json:"path" yaml:"path"`
}

// BrokerConfig contains simulated broker parameters
type BrokerConfig struct {
	AccountID     string  `json:"account_id" yaml:"account_id"`
	Currency      string  `json:"currency" yaml:"currency"`
	Cash          float64 `json:"cash" yaml:"cash"`
	Commission    float64 `json:"commission" yaml:"commission"`
	FillOnClose   bool    `json:"fill_on_close" yaml:"fill_on_close"`
	AllowShort    bool    `json:"allow_short" yaml:"allow_short"`
	MaxFillPerBar float64 `json:"max_fill_per_bar,omitempty" yaml:"max_fill_per_bar,omitempty"`
}

// Sim converts the section to the simulator's configuration.
func (b BrokerConfig) Sim() sim.Config {
	return sim.Config{
		AccountID:     b.AccountID,
		Currency:      b.Currency,
		Cash:          b.Cash,
		Commission:    b.Commission,
		FillOnClose:   b.FillOnClose,
		AllowShort:    b.AllowShort,
		MaxFillPerBar: b.MaxFillPerBar,
	}
}

// StrategyConfig names a registered strategy and its parameters
type StrategyConfig struct {
	Name   string            `json:"name" yaml:"name"`
	Params strategies.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// Build constructs the configured strategy.
func (s StrategyConfig) Build() (strategies.Strategy, error) {
	return strategies.New(s.Name, s.Params)
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // none, csv, sqlite or postgres
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	DSN        string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// LoadFromFile loads configuration from a file. Missing keys keep the values
// from Default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file, YAML for .yaml and .yml paths
// and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid. Sizing errors are returned
// as *risk.ConfigError.
func (c *Config) Validate() error {
	if c.Run.Instrument == "" {
		return fmt.Errorf("run.instrument is required")
	}
	if c.Broker.Currency == "" {
		return fmt.Errorf("broker.currency is required")
	}
	if c.Broker.Cash <= 0 {
		return fmt.Errorf("broker.cash must be positive")
	}
	if c.Broker.Commission < 0 || c.Broker.Commission >= 1 {
		return fmt.Errorf("broker.commission must be in [0, 1)")
	}
	if c.Broker.MaxFillPerBar < 0 {
		return fmt.Errorf("broker.max_fill_per_bar must not be negative")
	}
	if err := c.Sizing.Validate(); err != nil {
		return err
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}

	switch c.Journal.Type {
	case "", JournalNone:
	case JournalCSV:
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case JournalSQLite:
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case JournalPostgres:
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal dsn required for Postgres type")
		}
	default:
		return fmt.Errorf("journal.type must be one of none, csv, sqlite, postgres")
	}
	return nil
}

// SizingConfig returns the position sizing section.
func (c *Config) SizingConfig() risk.Config { return c.Sizing }

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Instrument: "EUR_USD",
		},
		Data: DataConfig{
			Path: "./data/bars.csv",
		},
		Sizing: risk.DefaultConfig(),
		Broker: BrokerConfig{
			AccountID: "SIM-001",
			Currency:  "USD",
			Cash:      100000,
		},
		Strategy: StrategyConfig{
			Name: "rsi",
		},
		Journal: JournalConfig{
			Type:       JournalCSV,
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
		},
	}
}
