package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rustyeddy/kelly/journal"
)

// DefaultTimeout bounds every statement issued by a Journal.
const DefaultTimeout = 10 * time.Second

// Journal implements journal.Journal on a Postgres pool. Closing the
// journal does not close the pool.
type Journal struct {
	pool    *Pool
	timeout time.Duration
}

// Compile-time interface check.
var _ journal.Journal = (*Journal)(nil)

func NewJournal(pool *Pool) *Journal {
	return &Journal{pool: pool, timeout: DefaultTimeout}
}

func (j *Journal) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), j.timeout)
}

func (j *Journal) RecordOrder(o journal.OrderRecord) error {
	ctx, cancel := j.ctx()
	defer cancel()

	_, err := j.pool.Exec(ctx, `
		INSERT INTO orders (
			run_id, order_id, instrument, side, size, status,
			filled_size, filled_price, commission, submitted, updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		o.RunID, int64(o.OrderID), o.Instrument, o.Side, o.Size, o.Status,
		o.FilledSize, o.FilledPrice, o.Commission, o.Submitted, o.Updated,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (j *Journal) RecordTrade(t journal.TradeRecord) error {
	ctx, cancel := j.ctx()
	defer cancel()

	_, err := j.pool.Exec(ctx, `
		INSERT INTO trades (
			run_id, trade_id, instrument, side, units, entry_price, exit_price, commission,
			open_time, close_time, realized_pl, return_pct, entry_order, exit_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		t.RunID, int64(t.TradeID), t.Instrument, t.Side, t.Units, t.EntryPrice, t.ExitPrice, t.Commission,
		t.OpenTime, t.CloseTime, t.RealizedPL, t.ReturnPct, int64(t.EntryOrder), int64(t.ExitOrder),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (j *Journal) RecordEquity(e journal.EquitySnapshot) error {
	ctx, cancel := j.ctx()
	defer cancel()

	_, err := j.pool.Exec(ctx, `
		INSERT INTO equity (run_id, time, balance, equity, position, price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.RunID, e.Time, e.Balance, e.Equity, e.Position, e.Price)
	if err != nil {
		return fmt.Errorf("insert equity: %w", err)
	}
	return nil
}

func (j *Journal) RecordRun(r journal.RunRecord) error {
	ctx, cancel := j.ctx()
	defer cancel()

	_, err := j.pool.Exec(ctx, `
		INSERT INTO backtest_runs (
			run_id, created, dataset, instrument, strategy, method, start_time, end_time, bars,
			trades, wins, losses, start_balance, end_balance, end_equity,
			net_pl, return_pct, win_rate, profit_factor, max_dd_pct, sharpe
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (run_id) DO UPDATE SET
			created = EXCLUDED.created,
			dataset = EXCLUDED.dataset,
			instrument = EXCLUDED.instrument,
			strategy = EXCLUDED.strategy,
			method = EXCLUDED.method,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			bars = EXCLUDED.bars,
			trades = EXCLUDED.trades,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			start_balance = EXCLUDED.start_balance,
			end_balance = EXCLUDED.end_balance,
			end_equity = EXCLUDED.end_equity,
			net_pl = EXCLUDED.net_pl,
			return_pct = EXCLUDED.return_pct,
			win_rate = EXCLUDED.win_rate,
			profit_factor = EXCLUDED.profit_factor,
			max_dd_pct = EXCLUDED.max_dd_pct,
			sharpe = EXCLUDED.sharpe
	`,
		r.RunID, r.Created, r.Dataset, r.Instrument, r.Strategy, r.Method, r.Start, r.End, r.Bars,
		r.Trades, r.Wins, r.Losses, r.StartBalance, r.EndBalance, r.EndEquity,
		r.NetPL, r.ReturnPct, r.WinRate, r.ProfitFactor, r.MaxDDPct, r.Sharpe,
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

func (j *Journal) Close() error { return nil }

// GetRun retrieves a run summary. Returns journal.ErrNotFound if not exists.
func (j *Journal) GetRun(ctx context.Context, runID string) (journal.RunRecord, error) {
	var r journal.RunRecord
	err := j.pool.QueryRow(ctx, `
		SELECT run_id, created, dataset, instrument, strategy, method, start_time, end_time, bars,
		       trades, wins, losses, start_balance, end_balance, end_equity,
		       net_pl, return_pct, win_rate, profit_factor, max_dd_pct, sharpe
		FROM backtest_runs
		WHERE run_id = $1
	`, runID).Scan(
		&r.RunID, &r.Created, &r.Dataset, &r.Instrument, &r.Strategy, &r.Method,
		&r.Start, &r.End, &r.Bars,
		&r.Trades, &r.Wins, &r.Losses,
		&r.StartBalance, &r.EndBalance, &r.EndEquity,
		&r.NetPL, &r.ReturnPct, &r.WinRate, &r.ProfitFactor, &r.MaxDDPct, &r.Sharpe,
	)
	if err != nil {
		if isNotFoundError(err) {
			return journal.RunRecord{}, fmt.Errorf("run %q: %w", runID, journal.ErrNotFound)
		}
		return journal.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListTrades returns a run's trades ordered by trade id.
func (j *Journal) ListTrades(ctx context.Context, runID string) ([]journal.TradeRecord, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT run_id, trade_id, instrument, side, units, entry_price, exit_price, commission,
		       open_time, close_time, realized_pl, return_pct, entry_order, exit_order
		FROM trades
		WHERE run_id = $1
		ORDER BY trade_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanTrade)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return out, nil
}

// ListEquity returns a run's equity curve in time order.
func (j *Journal) ListEquity(ctx context.Context, runID string) ([]journal.EquitySnapshot, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT run_id, time, balance, equity, position, price
		FROM equity
		WHERE run_id = $1
		ORDER BY time ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list equity: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.EquitySnapshot, error) {
		var e journal.EquitySnapshot
		err := row.Scan(&e.RunID, &e.Time, &e.Balance, &e.Equity, &e.Position, &e.Price)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("list equity: %w", err)
	}
	return out, nil
}

func scanTrade(row pgx.CollectableRow) (journal.TradeRecord, error) {
	var (
		t                 journal.TradeRecord
		id, entry, exitID int64
	)
	err := row.Scan(
		&t.RunID, &id, &t.Instrument, &t.Side, &t.Units,
		&t.EntryPrice, &t.ExitPrice, &t.Commission,
		&t.OpenTime, &t.CloseTime, &t.RealizedPL, &t.ReturnPct,
		&entry, &exitID,
	)
	t.TradeID = uint64(id)
	t.EntryOrder = uint64(entry)
	t.ExitOrder = uint64(exitID)
	return t, err
}
