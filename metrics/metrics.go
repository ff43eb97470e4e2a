// Package metrics exposes backtest activity as Prometheus metrics. A Metrics
// value plugs into a run as a journal, so anything journaled is also counted.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/kelly/journal"
)

const DefaultNamespace = "kelly"

// Metrics holds the collectors for every run recorded through it. All
// series carry strategy and method labels so concurrent runs stay apart.
type Metrics struct {
	reg *prometheus.Registry

	// Orders
	OrderUpdates *prometheus.CounterVec

	// Trades
	TradesClosed *prometheus.CounterVec
	TradeReturn  *prometheus.HistogramVec
	RealizedPL   *prometheus.GaugeVec

	// Account
	BarsProcessed *prometheus.CounterVec
	Equity        *prometheus.GaugeVec
	Position      *prometheus.GaugeVec

	// Runs
	RunsTotal   *prometheus.CounterVec
	RunReturn   *prometheus.GaugeVec
	RunDrawdown *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry, so several instances
// can coexist in one process.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := []string{"strategy", "method"}

	return &Metrics{
		reg: reg,

		OrderUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "updates_total",
			Help:      "Order status changes by status",
		}, append(labels, "status")),

		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "closed_total",
			Help:      "Closed trades by result (win or loss)",
		}, append(labels, "result")),
		TradeReturn: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "return_ratio",
			Help:      "Return on committed capital per closed trade",
			Buckets:   []float64{-0.1, -0.05, -0.02, -0.01, 0, 0.01, 0.02, 0.05, 0.1},
		}, labels),
		RealizedPL: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "realized_pl",
			Help:      "Cumulative realized profit and loss net of commission",
		}, labels),

		BarsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "bars_total",
			Help:      "Bars processed",
		}, labels),
		Equity: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "equity",
			Help:      "Account equity at the last processed bar",
		}, labels),
		Position: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "position_units",
			Help:      "Signed position size at the last processed bar",
		}, labels),

		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "completed_total",
			Help:      "Completed backtest runs",
		}, labels),
		RunReturn: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "return_ratio",
			Help:      "Return of the last completed run",
		}, labels),
		RunDrawdown: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "max_drawdown_ratio",
			Help:      "Maximum drawdown of the last completed run",
		}, labels),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler returns the HTTP handler for Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Journal returns a journal that counts the records of one strategy and
// sizing method. Close is a no-op; the collectors outlive the run.
func (m *Metrics) Journal(strategy, method string) journal.Journal {
	l := prometheus.Labels{"strategy": strategy, "method": method}
	return &recorder{
		orders:   m.OrderUpdates.MustCurryWith(l),
		trades:   m.TradesClosed.MustCurryWith(l),
		ret:      m.TradeReturn.With(l),
		pl:       m.RealizedPL.With(l),
		bars:     m.BarsProcessed.With(l),
		equity:   m.Equity.With(l),
		position: m.Position.With(l),
		runs:     m.RunsTotal.With(l),
		runRet:   m.RunReturn.With(l),
		runDD:    m.RunDrawdown.With(l),
	}
}

type recorder struct {
	orders   *prometheus.CounterVec
	trades   *prometheus.CounterVec
	ret      prometheus.Observer
	pl       prometheus.Gauge
	bars     prometheus.Counter
	equity   prometheus.Gauge
	position prometheus.Gauge
	runs     prometheus.Counter
	runRet   prometheus.Gauge
	runDD    prometheus.Gauge
}

func (r *recorder) RecordOrder(o journal.OrderRecord) error {
	r.orders.WithLabelValues(o.Status).Inc()
	return nil
}

func (r *recorder) RecordTrade(t journal.TradeRecord) error {
	result := "loss"
	if t.ReturnPct > 0 {
		result = "win"
	}
	r.trades.WithLabelValues(result).Inc()
	r.ret.Observe(t.ReturnPct)
	r.pl.Add(t.RealizedPL)
	return nil
}

func (r *recorder) RecordEquity(s journal.EquitySnapshot) error {
	r.bars.Inc()
	r.equity.Set(s.Equity)
	r.position.Set(s.Position)
	return nil
}

func (r *recorder) RecordRun(run journal.RunRecord) error {
	r.runs.Inc()
	r.runRet.Set(run.ReturnPct)
	r.runDD.Set(run.MaxDDPct)
	return nil
}

func (r *recorder) Close() error { return nil }
