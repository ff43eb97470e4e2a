package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rustyeddy/kelly/journal"
)

// setupTestDB starts a PostgreSQL container and applies the journal schema.
func setupTestDB(t *testing.T) *Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")
	require.NoError(t, pool.Migrate(ctx))

	t.Cleanup(func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return pool
}

func TestJournalRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	j := NewJournal(pool)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordOrder(journal.OrderRecord{
		RunID: "r1", OrderID: 1, Instrument: "EUR_USD", Side: "Buy", Size: 10,
		Status: "Completed", FilledSize: 10, FilledPrice: 1.1, Submitted: start, Updated: start.Add(time.Hour),
	}))

	for i, pnl := range []float64{12, -4} {
		require.NoError(t, j.RecordTrade(journal.TradeRecord{
			RunID:      "r1",
			TradeID:    uint64(i + 1),
			Instrument: "EUR_USD",
			Side:       "Buy",
			Units:      10,
			EntryPrice: 1.1,
			ExitPrice:  1.1 + pnl/10,
			OpenTime:   start,
			CloseTime:  start.Add(time.Duration(i+1) * time.Hour),
			RealizedPL: pnl,
			EntryOrder: uint64(2*i + 1),
			ExitOrder:  uint64(2*i + 2),
		}))
	}

	require.NoError(t, j.RecordEquity(journal.EquitySnapshot{RunID: "r1", Time: start.Add(time.Hour), Balance: 1012, Equity: 1012}))
	require.NoError(t, j.RecordEquity(journal.EquitySnapshot{RunID: "r1", Time: start, Balance: 1000, Equity: 1000}))

	run := journal.RunRecord{
		RunID: "r1", Created: start, Dataset: "d.csv", Instrument: "EUR_USD", Strategy: "rsi", Method: "fixed",
		Start: start, End: start.Add(2 * time.Hour), Bars: 3, Trades: 2, Wins: 1, Losses: 1,
		StartBalance: 1000, EndBalance: 1008, EndEquity: 1008, NetPL: 8, ProfitFactor: 3, Sharpe: 0.2,
	}
	require.NoError(t, j.RecordRun(run))
	run.Bars = 4
	require.NoError(t, j.RecordRun(run))

	trades, err := j.ListTrades(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(1), trades[0].TradeID)
	assert.Equal(t, uint64(4), trades[1].ExitOrder)
	assert.InDelta(t, -4.0, trades[1].RealizedPL, 1e-9)

	curve, err := j.ListEquity(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.True(t, curve[0].Time.Equal(start))

	got, err := j.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Bars)
	assert.InDelta(t, 3.0, got.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.2, got.Sharpe, 1e-9)

	_, err = j.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, journal.ErrNotFound))

	assert.NoError(t, j.Close())
}
