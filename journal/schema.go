// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	run_id TEXT NOT NULL,
	order_id INTEGER NOT NULL,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	size REAL NOT NULL,
	status TEXT NOT NULL,
	filled_size REAL NOT NULL,
	filled_price REAL NOT NULL,
	commission REAL NOT NULL,
	submitted DATETIME NOT NULL,
	updated DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_run ON orders(run_id, order_id);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	trade_id INTEGER NOT NULL,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	units REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	commission REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	return_pct REAL NOT NULL,
	entry_order INTEGER NOT NULL,
	exit_order INTEGER NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	position REAL NOT NULL,
	price REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	dataset TEXT NOT NULL,
	instrument TEXT NOT NULL,
	strategy TEXT NOT NULL,
	method TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	bars INTEGER NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	start_balance REAL NOT NULL,
	end_balance REAL NOT NULL,
	end_equity REAL NOT NULL,
	net_pl REAL NOT NULL,
	return_pct REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	max_dd_pct REAL NOT NULL,
	sharpe REAL NOT NULL DEFAULT 0
);
`
