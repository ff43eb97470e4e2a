package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"time"
)

// CSVJournal writes closed trades and the equity curve to two CSV files.
// Orders and run summaries are not kept.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

var _ Journal = (*CSVJournal)(nil)

var (
	tradeHeader  = []string{"run_id", "trade_id", "instrument", "side", "units", "entry_price", "exit_price", "commission", "open_time", "close_time", "realized_pl", "return_pct"}
	equityHeader = []string{"run_id", "time", "balance", "equity", "position", "price"}
)

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	j := &CSVJournal{
		trades: csv.NewWriter(tf),
		equity: csv.NewWriter(ef),
		tf:     tf,
		ef:     ef,
	}
	if err := j.write(j.trades, tradeHeader); err != nil {
		j.Close()
		return nil, err
	}
	if err := j.write(j.equity, equityHeader); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordOrder(OrderRecord) error { return nil }
func (j *CSVJournal) RecordRun(RunRecord) error     { return nil }

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.write(j.trades, []string{
		t.RunID,
		strconv.FormatUint(t.TradeID, 10),
		t.Instrument,
		t.Side,
		f(t.Units),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.Commission),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		f(t.RealizedPL),
		f(t.ReturnPct),
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return j.write(j.equity, []string{
		e.RunID,
		e.Time.Format(time.RFC3339),
		f(e.Balance),
		f(e.Equity),
		f(e.Position),
		f(e.Price),
	})
}

func (j *CSVJournal) write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	j.equity.Flush()
	return errors.Join(
		j.trades.Error(),
		j.equity.Error(),
		j.tf.Close(),
		j.ef.Close(),
	)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
