package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `run_id, trade_id, instrument, side, units, entry_price, exit_price, commission,
		       open_time, close_time, realized_pl, return_pct, entry_order, exit_order`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var t TradeRecord
	err := s.Scan(
		&t.RunID, &t.TradeID, &t.Instrument, &t.Side, &t.Units,
		&t.EntryPrice, &t.ExitPrice, &t.Commission,
		&t.OpenTime, &t.CloseTime, &t.RealizedPL, &t.ReturnPct,
		&t.EntryOrder, &t.ExitOrder,
	)
	return t, err
}

// GetTrade returns one closed trade of a run.
func (j *SQLite) GetTrade(runID string, tradeID uint64) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+`
		FROM trades
		WHERE run_id = ? AND trade_id = ?`, runID, tradeID)

	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TradeRecord{}, fmt.Errorf("trade %d of run %q: %w", tradeID, runID, ErrNotFound)
	}
	return t, err
}

// ListTradesClosedBetween returns a run's trades with start <= close_time < end,
// ordered by close time.
func (j *SQLite) ListTradesClosedBetween(runID string, start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`SELECT `+tradeColumns+`
		FROM trades
		WHERE run_id = ? AND close_time >= ? AND close_time < ?
		ORDER BY close_time ASC, trade_id ASC`, runID, start, end)
	if err != nil {
		return nil, err
	}
	return collectTrades(rows)
}

func collectTrades(rows *sql.Rows) ([]TradeRecord, error) {
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun returns the summary of a single run.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	var r RunRecord

	row := j.db.QueryRow(`
		SELECT run_id, created, dataset, instrument, strategy, method, start_time, end_time, bars,
		       trades, wins, losses, start_balance, end_balance, end_equity,
		       net_pl, return_pct, win_rate, profit_factor, max_dd_pct, sharpe
		FROM backtest_runs
		WHERE run_id = ?`, runID)

	err := row.Scan(
		&r.RunID, &r.Created, &r.Dataset, &r.Instrument, &r.Strategy, &r.Method,
		&r.Start, &r.End, &r.Bars,
		&r.Trades, &r.Wins, &r.Losses,
		&r.StartBalance, &r.EndBalance, &r.EndEquity,
		&r.NetPL, &r.ReturnPct, &r.WinRate, &r.ProfitFactor, &r.MaxDDPct, &r.Sharpe,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return r, err
}

// ListTrades returns a run's trades in close order.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`SELECT `+tradeColumns+`
		FROM trades
		WHERE run_id = ?
		ORDER BY trade_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	return collectTrades(rows)
}

// ListOrders returns every recorded status change of a run, oldest first.
func (j *SQLite) ListOrders(runID string) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, order_id, instrument, side, size, status, filled_size, filled_price,
		       commission, submitted, updated
		FROM orders
		WHERE run_id = ?
		ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(
			&o.RunID, &o.OrderID, &o.Instrument, &o.Side, &o.Size, &o.Status,
			&o.FilledSize, &o.FilledPrice, &o.Commission, &o.Submitted, &o.Updated,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquity returns a run's equity curve in time order.
func (j *SQLite) ListEquity(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, balance, equity, position, price
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.RunID, &e.Time, &e.Balance, &e.Equity, &e.Position, &e.Price); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
