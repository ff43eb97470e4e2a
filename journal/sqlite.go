package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(run_id, order_id, instrument, side, size, status, filled_size, filled_price, commission, submitted, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.OrderID, o.Instrument, o.Side, o.Size, o.Status,
		o.FilledSize, o.FilledPrice, o.Commission, o.Submitted, o.Updated,
	)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, trade_id, instrument, side, units, entry_price, exit_price, commission,
		 open_time, close_time, realized_pl, return_pct, entry_order, exit_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.TradeID, t.Instrument, t.Side, t.Units, t.EntryPrice, t.ExitPrice, t.Commission,
		t.OpenTime, t.CloseTime, t.RealizedPL, t.ReturnPct, t.EntryOrder, t.ExitOrder,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, balance, equity, position, price)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time, e.Balance, e.Equity, e.Position, e.Price,
	)
	return err
}

func (j *SQLite) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO backtest_runs
		(run_id, created, dataset, instrument, strategy, method, start_time, end_time, bars,
		 trades, wins, losses, start_balance, end_balance, end_equity,
		 net_pl, return_pct, win_rate, profit_factor, max_dd_pct, sharpe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Dataset, r.Instrument, r.Strategy, r.Method, r.Start, r.End, r.Bars,
		r.Trades, r.Wins, r.Losses, r.StartBalance, r.EndBalance, r.EndEquity,
		r.NetPL, r.ReturnPct, r.WinRate, r.ProfitFactor, r.MaxDDPct, r.Sharpe,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
