package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/kelly/config"
	"github.com/rustyeddy/kelly/risk"
	"github.com/rustyeddy/kelly/strategies"
)

// runFlags are the options shared by backtest and compare. Flags override
// the config file only when set on the command line.
type runFlags struct {
	config     string
	data       string
	strategy   string
	params     map[string]string
	method     string
	instrument string
	cash       float64
	runID      string
	db         string
}

func (f *runFlags) bind(c *cobra.Command) {
	fs := c.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "YAML or JSON config file (defaults apply when omitted)")
	fs.StringVarP(&f.data, "data", "d", "", "bar CSV (datetime,open,high,low,close[,volume])")
	fs.StringVarP(&f.strategy, "strategy", "s", "", fmt.Sprintf("strategy name (%s); compare accepts a comma separated list", joinNames()))
	fs.StringToStringVarP(&f.params, "param", "p", nil, "strategy parameter key=value, repeatable")
	fs.StringVarP(&f.method, "method", "m", "", "position sizing method (fixed, kelly)")
	fs.StringVarP(&f.instrument, "instrument", "i", "", "instrument name")
	fs.Float64VarP(&f.cash, "cash", "b", 0, "starting cash")
	fs.StringVar(&f.runID, "run-id", "", "run ID (a ULID is issued when empty)")
	fs.StringVar(&f.db, "db", "", "journal to this SQLite file instead of the configured journal")
}

func (f *runFlags) load(c *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.LoadFromFile(f.config); err != nil {
			return nil, err
		}
	}

	fs := c.Flags()
	if fs.Changed("data") {
		cfg.Data.Path = f.data
	}
	if fs.Changed("strategy") {
		cfg.Strategy = config.StrategyConfig{Name: f.strategyNames()[0]}
	}
	for k, v := range f.params {
		if cfg.Strategy.Params == nil {
			cfg.Strategy.Params = strategies.Params{}
		}
		cfg.Strategy.Params[k] = v
	}
	if fs.Changed("method") {
		m, err := risk.ParseMethod(f.method)
		if err != nil {
			return nil, err
		}
		cfg.Sizing.Method = m
	}
	if fs.Changed("instrument") {
		cfg.Run.Instrument = f.instrument
	}
	if fs.Changed("cash") {
		cfg.Broker.Cash = f.cash
	}
	if fs.Changed("run-id") {
		cfg.Run.ID = f.runID
	}
	if fs.Changed("db") {
		cfg.Journal = config.JournalConfig{Type: config.JournalSQLite, DBPath: f.db}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// strategyNames splits the -s value on commas. The first name is the one
// applied to the loaded config.
func (f *runFlags) strategyNames() []string {
	var names []string
	for _, n := range strings.Split(f.strategy, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return []string{""}
	}
	return names
}

func joinNames() string {
	return strings.Join(strategies.Names(), ", ")
}

// closeStrategy releases strategies that hold resources, such as a loaded
// model.
func closeStrategy(s strategies.Strategy) {
	if c, ok := s.(io.Closer); ok {
		c.Close()
	}
}
