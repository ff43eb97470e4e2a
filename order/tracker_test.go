package order

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	nextID   ID
	submits  int
	canceled []ID
	err      error
}

func (b *fakeBroker) SubmitOrder(side Side, size float64) (ID, error) {
	if b.err != nil {
		return 0, b.err
	}
	b.nextID++
	b.submits++
	return b.nextID, nil
}

func (b *fakeBroker) CancelOrder(id ID) error {
	b.canceled = append(b.canceled, id)
	return nil
}

type fakeHistory struct {
	trades []Trade
}

func (h *fakeHistory) Record(t Trade) error {
	h.trades = append(h.trades, t)
	return nil
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTracker(t *testing.T, allowShort bool) (*Tracker, *fakeBroker, *fakeHistory) {
	t.Helper()
	b := &fakeBroker{}
	h := &fakeHistory{}
	return NewTracker(b, h, TrackerOptions{AllowShort: allowShort}), b, h
}

func notify(t *testing.T, tr *Tracker, id ID, st Status, filled, price, comm float64) Update {
	t.Helper()
	up, err := tr.OnNotification(Order{
		ID:          id,
		Status:      st,
		FilledSize:  filled,
		FilledPrice: price,
		Commission:  comm,
		Updated:     t0.Add(time.Hour),
	})
	require.NoError(t, err)
	return up
}

// fill drives an order through Accepted to Completed at a single price.
func fill(t *testing.T, tr *Tracker, id ID, size, price, comm float64) Update {
	t.Helper()
	notify(t, tr, id, Accepted, 0, 0, 0)
	return notify(t, tr, id, Completed, size, price, comm)
}

func TestSubmitInvalidSize(t *testing.T) {
	t.Parallel()

	for _, size := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		tr, b, _ := newTracker(t, false)
		_, err := tr.Submit(Buy, size, t0)
		assert.ErrorIs(t, err, ErrInvalidSize, "size %v", size)
		assert.Zero(t, b.submits)
		_, inflight := tr.InFlight()
		assert.False(t, inflight)
	}
}

func TestSubmitDuplicateWhileInFlight(t *testing.T) {
	t.Parallel()

	tr, b, _ := newTracker(t, false)

	id, err := tr.Submit(Buy, 10, t0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = tr.Submit(Buy, 10, t0)
		assert.ErrorIs(t, err, ErrDuplicateOrder)
	}
	assert.Equal(t, 1, b.submits)

	o, ok := tr.InFlight()
	require.True(t, ok)
	assert.Equal(t, id, o.ID)
	assert.Equal(t, Submitted, o.Status)

	fill(t, tr, id, 10, 100, 0)
	_, ok = tr.InFlight()
	assert.False(t, ok)

	_, err = tr.Submit(Sell, 10, t0)
	assert.NoError(t, err)
	assert.Equal(t, 2, b.submits)
}

func TestSubmitSellWithoutPosition(t *testing.T) {
	t.Parallel()

	tr, b, _ := newTracker(t, false)
	_, err := tr.Submit(Sell, 1, t0)
	assert.ErrorIs(t, err, ErrInvalidSize)
	assert.Zero(t, b.submits)
}

func TestSubmitBrokerError(t *testing.T) {
	t.Parallel()

	tr, b, _ := newTracker(t, false)
	b.err = errors.New("offline")
	_, err := tr.Submit(Buy, 1, t0)
	assert.ErrorContains(t, err, "offline")
	_, ok := tr.InFlight()
	assert.False(t, ok)
}

func TestRoundTripClosesOneTrade(t *testing.T) {
	t.Parallel()

	tr, _, h := newTracker(t, false)

	buy, err := tr.Submit(Buy, 10, t0)
	require.NoError(t, err)
	up := fill(t, tr, buy, 10, 100, 1.0)
	require.NotNil(t, up.Opened)
	assert.Empty(t, up.Closed)
	assert.Equal(t, Position{Size: 10, Price: 100}, tr.Position())

	open, ok := tr.OpenTrade()
	require.True(t, ok)
	assert.False(t, open.Closed)
	assert.Equal(t, buy, open.EntryOrder)

	sell, err := tr.Submit(Sell, 10, t0)
	require.NoError(t, err)
	up = fill(t, tr, sell, 10, 110, 1.1)

	require.Len(t, up.Closed, 1)
	got := up.Closed[0]
	assert.True(t, got.Closed)
	assert.Equal(t, buy, got.EntryOrder)
	assert.Equal(t, sell, got.ExitOrder)
	assert.InDelta(t, (110-100)*10-2.1, got.PnL, 1e-9)
	assert.InDelta(t, 97.9/1000, got.PnLPct, 1e-12)
	assert.InDelta(t, 2.1, got.Commission, 1e-12)

	require.Len(t, h.trades, 1)
	assert.Equal(t, got, h.trades[0])
	assert.True(t, tr.Position().Flat())
	_, ok = tr.OpenTrade()
	assert.False(t, ok)
	assert.Equal(t, 1, tr.ClosedTrades())
}

func TestRejectedAndMarginAreTerminal(t *testing.T) {
	t.Parallel()

	for _, st := range []Status{Rejected, MarginError} {
		tr, _, h := newTracker(t, false)

		id, err := tr.Submit(Buy, 10, t0)
		require.NoError(t, err)

		up := notify(t, tr, id, st, 0, 0, 0)
		assert.True(t, up.Failed)
		assert.Equal(t, st, up.Order.Status)
		assert.False(t, up.Order.Resolved.IsZero())

		_, ok := tr.InFlight()
		assert.False(t, ok)
		assert.True(t, tr.Position().Flat())
		assert.Empty(t, h.trades)

		_, err = tr.OnNotification(Order{ID: id, Status: Accepted})
		assert.ErrorIs(t, err, ErrIllegalTransition)
		o, _ := tr.Order(id)
		assert.Equal(t, st, o.Status)
	}
}

func TestIllegalBackwardsTransition(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTracker(t, false)
	id, err := tr.Submit(Buy, 10, t0)
	require.NoError(t, err)

	notify(t, tr, id, Accepted, 0, 0, 0)

	// Repeating the current status is a no-op.
	notify(t, tr, id, Accepted, 0, 0, 0)

	_, err = tr.OnNotification(Order{ID: id, Status: Submitted})
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = tr.OnNotification(Order{ID: id, Status: Rejected})
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestUnknownOrder(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTracker(t, false)
	_, err := tr.OnNotification(Order{ID: 42, Status: Accepted})
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.ErrorIs(t, tr.Cancel(42), ErrUnknownOrder)
}

func TestOverfillRejected(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTracker(t, false)
	id, err := tr.Submit(Buy, 10, t0)
	require.NoError(t, err)
	notify(t, tr, id, Accepted, 0, 0, 0)

	_, err = tr.OnNotification(Order{ID: id, Status: Completed, FilledSize: 11, FilledPrice: 100})
	assert.ErrorIs(t, err, ErrInvalidSize)
	assert.True(t, tr.Position().Flat())
}

func TestPartialFillsAverageEntry(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTracker(t, false)
	id, err := tr.Submit(Buy, 10, t0)
	require.NoError(t, err)

	notify(t, tr, id, Accepted, 0, 0, 0)
	up := notify(t, tr, id, PartiallyFilled, 4, 100, 0.4)
	assert.InDelta(t, 4, up.Filled, 1e-12)
	require.NotNil(t, up.Opened)

	// Cumulative average 101.2 means the second slice filled at 102.
	up = notify(t, tr, id, PartiallyFilled, 10, 101.2, 1.0)
	assert.InDelta(t, 6, up.Filled, 1e-12)
	assert.InDelta(t, 10, tr.Position().Size, 1e-12)
	assert.InDelta(t, 101.2, tr.Position().Price, 1e-9)

	up = notify(t, tr, id, Completed, 10, 101.2, 1.0)
	assert.Zero(t, up.Filled)
	assert.Equal(t, Completed, up.Order.Status)

	open, ok := tr.OpenTrade()
	require.True(t, ok)
	assert.InDelta(t, 1.0, open.Commission, 1e-12)
	assert.InDelta(t, 101.2, open.EntryPrice, 1e-9)
}

func TestCancelAfterPartialFillKeepsPosition(t *testing.T) {
	t.Parallel()

	tr, b, h := newTracker(t, false)
	id, err := tr.Submit(Buy, 10, t0)
	require.NoError(t, err)

	notify(t, tr, id, Accepted, 0, 0, 0)
	notify(t, tr, id, PartiallyFilled, 4, 100, 0)

	require.NoError(t, tr.Cancel(id))
	assert.Equal(t, []ID{id}, b.canceled)

	up := notify(t, tr, id, Canceled, 4, 100, 0)
	assert.False(t, up.Failed)
	_, ok := tr.InFlight()
	assert.False(t, ok)
	assert.InDelta(t, 4, tr.Position().Size, 1e-12)
	assert.Empty(t, h.trades)

	assert.ErrorIs(t, tr.Cancel(id), ErrIllegalTransition)
}

func TestCancelBeforeFillNoTrade(t *testing.T) {
	t.Parallel()

	tr, _, h := newTracker(t, false)
	id, err := tr.Submit(Buy, 10, t0)
	require.NoError(t, err)
	require.NoError(t, tr.Cancel(id))

	notify(t, tr, id, Canceled, 0, 0, 0)
	assert.True(t, tr.Position().Flat())
	_, ok := tr.OpenTrade()
	assert.False(t, ok)
	assert.Empty(t, h.trades)
}

func TestShortLossTrade(t *testing.T) {
	t.Parallel()

	tr, _, h := newTracker(t, true)

	id, err := tr.Submit(Sell, 5, t0)
	require.NoError(t, err)
	fill(t, tr, id, 5, 50, 0)
	assert.InDelta(t, -5, tr.Position().Size, 1e-12)

	id, err = tr.Submit(Buy, 5, t0)
	require.NoError(t, err)
	up := fill(t, tr, id, 5, 54, 0)

	require.Len(t, up.Closed, 1)
	assert.Equal(t, Sell, up.Closed[0].Side)
	assert.InDelta(t, -20, up.Closed[0].PnL, 1e-9)
	assert.InDelta(t, -0.08, up.Closed[0].PnLPct, 1e-12)
	require.Len(t, h.trades, 1)
}

func TestFlipThroughZeroOpensNewTrade(t *testing.T) {
	t.Parallel()

	tr, _, h := newTracker(t, true)

	id, err := tr.Submit(Buy, 5, t0)
	require.NoError(t, err)
	fill(t, tr, id, 5, 100, 0)

	flip, err := tr.Submit(Sell, 8, t0)
	require.NoError(t, err)
	up := fill(t, tr, flip, 8, 90, 0.8)

	require.Len(t, up.Closed, 1)
	assert.InDelta(t, -50-0.5, up.Closed[0].PnL, 1e-9)
	require.NotNil(t, up.Opened)
	assert.Equal(t, flip, up.Opened.EntryOrder)
	assert.Equal(t, Sell, up.Opened.Side)
	assert.InDelta(t, 3, up.Opened.Size, 1e-12)
	assert.InDelta(t, 0.3, up.Opened.Commission, 1e-12)
	assert.InDelta(t, -3, tr.Position().Size, 1e-12)
	assert.Len(t, h.trades, 1)
}

func TestScaleOutClosesOnLastFill(t *testing.T) {
	t.Parallel()

	tr, _, h := newTracker(t, false)

	id, err := tr.Submit(Buy, 10, t0)
	require.NoError(t, err)
	fill(t, tr, id, 10, 100, 0)

	id, err = tr.Submit(Sell, 4, t0)
	require.NoError(t, err)
	up := fill(t, tr, id, 4, 105, 0)
	assert.Empty(t, up.Closed)
	assert.Empty(t, h.trades)

	id, err = tr.Submit(Sell, 6, t0)
	require.NoError(t, err)
	up = fill(t, tr, id, 6, 110, 0)

	require.Len(t, up.Closed, 1)
	assert.InDelta(t, 4*5+6*10, up.Closed[0].PnL, 1e-9)
	assert.InDelta(t, 108, up.Closed[0].ExitPrice, 1e-9)
}

func TestScaleInAfterPartialExit(t *testing.T) {
	t.Parallel()

	tr, _, h := newTracker(t, false)

	id, err := tr.Submit(Buy, 10, t0)
	require.NoError(t, err)
	fill(t, tr, id, 10, 100, 0)

	id, err = tr.Submit(Sell, 4, t0)
	require.NoError(t, err)
	fill(t, tr, id, 4, 110, 0)

	id, err = tr.Submit(Buy, 6, t0)
	require.NoError(t, err)
	fill(t, tr, id, 6, 120, 0)

	// the position averages what is still held
	assert.Equal(t, 12.0, tr.Position().Size)
	assert.InDelta(t, 110, tr.Position().Price, 1e-9)

	id, err = tr.Submit(Sell, 12, t0)
	require.NoError(t, err)
	up := fill(t, tr, id, 12, 130, 0)

	// bought 10@100 + 6@120, sold 4@110 + 12@130
	require.Len(t, up.Closed, 1)
	got := up.Closed[0]
	assert.Equal(t, 16.0, got.Size)
	assert.InDelta(t, 107.5, got.EntryPrice, 1e-9)
	assert.InDelta(t, 125, got.ExitPrice, 1e-9)
	assert.InDelta(t, 2000-1720, got.PnL, 1e-9)
	assert.InDelta(t, 280.0/1720, got.PnLPct, 1e-12)
	require.Len(t, h.trades, 1)
}

func TestOrdersInSubmissionOrder(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTracker(t, false)
	a, _ := tr.Submit(Buy, 1, t0)
	fill(t, tr, a, 1, 10, 0)
	b, _ := tr.Submit(Sell, 1, t0)

	got := tr.Orders()
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].ID)
	assert.Equal(t, Completed, got[0].Status)
	assert.Equal(t, b, got[1].ID)
	assert.Equal(t, Submitted, got[1].Status)
}

func TestStatusHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		st       Status
		name     string
		terminal bool
		failed   bool
	}{
		{Submitted, "Submitted", false, false},
		{Accepted, "Accepted", false, false},
		{PartiallyFilled, "PartiallyFilled", false, false},
		{Completed, "Completed", true, false},
		{Canceled, "Canceled", true, false},
		{Rejected, "Rejected", true, true},
		{MarginError, "MarginError", true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.st.String())
		assert.Equal(t, tt.terminal, tt.st.Terminal(), tt.name)
		assert.Equal(t, tt.failed, tt.st.Failed(), tt.name)
	}
	assert.Equal(t, "Unknown", Status(99).String())
	assert.False(t, CanTransition(Completed, Canceled))
	assert.True(t, CanTransition(Submitted, Canceled))
}
