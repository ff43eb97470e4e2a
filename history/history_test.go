package history

import (
	"testing"

	"github.com/rustyeddy/kelly/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closed(id uint64, pct float64) order.Trade {
	return order.Trade{ID: id, PnLPct: pct, PnL: pct * 1000, Closed: true}
}

func TestNewDefaultCapacity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultCapacity, New(0).Cap())
	assert.Equal(t, DefaultCapacity, New(-3).Cap())
	assert.Equal(t, 7, New(7).Cap())
}

func TestRecordRejectsOpenTrade(t *testing.T) {
	t.Parallel()

	h := New(10)
	err := h.Record(order.Trade{ID: 1, PnLPct: 0.1})
	assert.ErrorIs(t, err, ErrTradeOpen)
	assert.Zero(t, h.Len())
	assert.Equal(t, KellyStats{}, h.Stats())
}

func TestStats(t *testing.T) {
	t.Parallel()

	h := New(10)
	for i, pct := range []float64{0.03, -0.02, 0.03, -0.02, 0.03} {
		require.NoError(t, h.Record(closed(uint64(i+1), pct)))
	}

	s := h.Stats()
	assert.Equal(t, 5, s.SampleCount)
	assert.Equal(t, 3, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, 0.6, s.WinRate, 1e-12)
	assert.InDelta(t, 0.03, s.AvgWin, 1e-12)
	assert.InDelta(t, -0.02, s.AvgLoss, 1e-12)
}

func TestBreakevenCountsAsLoss(t *testing.T) {
	t.Parallel()

	h := New(10)
	require.NoError(t, h.Record(closed(1, 0)))
	require.NoError(t, h.Record(closed(2, -0.04)))

	s := h.Stats()
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, -0.02, s.AvgLoss, 1e-12)
	assert.Zero(t, s.AvgWin)
}

func TestAllLossesAndAllWins(t *testing.T) {
	t.Parallel()

	losses := New(5)
	wins := New(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, losses.Record(closed(uint64(i), -0.01)))
		require.NoError(t, wins.Record(closed(uint64(i), 0.01)))
	}

	assert.Zero(t, losses.Stats().AvgWin)
	assert.Zero(t, losses.Stats().WinRate)
	assert.InDelta(t, -0.01, losses.Stats().AvgLoss, 1e-12)

	assert.Zero(t, wins.Stats().AvgLoss)
	assert.Equal(t, 1.0, wins.Stats().WinRate)
}

func TestEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	h := New(3)
	require.NoError(t, h.Record(closed(1, -0.5)))
	require.NoError(t, h.Record(closed(2, 0.1)))
	require.NoError(t, h.Record(closed(3, 0.2)))
	require.NoError(t, h.Record(closed(4, 0.3)))

	got := h.Trades()
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{2, 3, 4}, []uint64{got[0].ID, got[1].ID, got[2].ID})

	s := h.Stats()
	assert.Equal(t, 3, s.SampleCount)
	assert.Equal(t, 3, s.Wins)
	assert.Zero(t, s.Losses)
	assert.Zero(t, s.AvgLoss)
	assert.InDelta(t, 0.2, s.AvgWin, 1e-12)
}

func TestRunningSumsMatchRescan(t *testing.T) {
	t.Parallel()

	const capacity = 20
	h := New(capacity)

	pcts := make([]float64, 0, 500)
	for i := 0; i < 500; i++ {
		pct := float64((i*7919)%23-11) / 137.0
		pcts = append(pcts, pct)
		require.NoError(t, h.Record(closed(uint64(i), pct)))

		s := h.Stats()
		assert.LessOrEqual(t, s.SampleCount, capacity)

		window := pcts
		if len(window) > capacity {
			window = window[len(window)-capacity:]
		}
		var wins int
		var winSum, lossSum float64
		for _, p := range window {
			if p > 0 {
				wins++
				winSum += p
			} else {
				lossSum += p
			}
		}
		require.Equal(t, wins, s.Wins, "step %d", i)
		if wins > 0 {
			assert.InDelta(t, winSum/float64(wins), s.AvgWin, 1e-9)
		}
		if losses := len(window) - wins; losses > 0 {
			assert.InDelta(t, lossSum/float64(losses), s.AvgLoss, 1e-9)
		}
	}
}
