package postgres

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	run_id       TEXT NOT NULL,
	order_id     BIGINT NOT NULL,
	instrument   TEXT NOT NULL,
	side         TEXT NOT NULL,
	size         DOUBLE PRECISION NOT NULL,
	status       TEXT NOT NULL,
	filled_size  DOUBLE PRECISION NOT NULL,
	filled_price DOUBLE PRECISION NOT NULL,
	commission   DOUBLE PRECISION NOT NULL,
	submitted    TIMESTAMPTZ NOT NULL,
	updated      TIMESTAMPTZ NOT NULL,
	seq          BIGSERIAL
);

CREATE INDEX IF NOT EXISTS idx_orders_run ON orders(run_id, seq);

CREATE TABLE IF NOT EXISTS trades (
	run_id      TEXT NOT NULL,
	trade_id    BIGINT NOT NULL,
	instrument  TEXT NOT NULL,
	side        TEXT NOT NULL,
	units       DOUBLE PRECISION NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price  DOUBLE PRECISION NOT NULL,
	commission  DOUBLE PRECISION NOT NULL,
	open_time   TIMESTAMPTZ NOT NULL,
	close_time  TIMESTAMPTZ NOT NULL,
	realized_pl DOUBLE PRECISION NOT NULL,
	return_pct  DOUBLE PRECISION NOT NULL,
	entry_order BIGINT NOT NULL,
	exit_order  BIGINT NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id   TEXT NOT NULL,
	time     TIMESTAMPTZ NOT NULL,
	balance  DOUBLE PRECISION NOT NULL,
	equity   DOUBLE PRECISION NOT NULL,
	position DOUBLE PRECISION NOT NULL,
	price    DOUBLE PRECISION NOT NULL,
	seq      BIGSERIAL
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id        TEXT PRIMARY KEY,
	created       TIMESTAMPTZ NOT NULL,
	dataset       TEXT NOT NULL,
	instrument    TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	method        TEXT NOT NULL,
	start_time    TIMESTAMPTZ NOT NULL,
	end_time      TIMESTAMPTZ NOT NULL,
	bars          INTEGER NOT NULL,
	trades        INTEGER NOT NULL,
	wins          INTEGER NOT NULL,
	losses        INTEGER NOT NULL,
	start_balance DOUBLE PRECISION NOT NULL,
	end_balance   DOUBLE PRECISION NOT NULL,
	end_equity    DOUBLE PRECISION NOT NULL,
	net_pl        DOUBLE PRECISION NOT NULL,
	return_pct    DOUBLE PRECISION NOT NULL,
	win_rate      DOUBLE PRECISION NOT NULL,
	profit_factor DOUBLE PRECISION NOT NULL,
	max_dd_pct    DOUBLE PRECISION NOT NULL,
	sharpe        DOUBLE PRECISION NOT NULL DEFAULT 0
);
`
