package indicators

import (
	"fmt"

	"github.com/rustyeddy/kelly/market"
)

// SMA is a streaming Simple Moving Average of closes.
type SMA struct {
	period int
	window []float64
	next   int
	count  int
	sum    float64
}

// NewSMA creates a new Simple Moving Average indicator with the given period
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		window: make([]float64, period),
	}
}

func (m *SMA) Name() string {
	return fmt.Sprintf("SMA(%d)", m.period)
}

func (m *SMA) Warmup() int {
	return m.period
}

func (m *SMA) Reset() {
	clear(m.window)
	m.next, m.count, m.sum = 0, 0, 0
}

func (m *SMA) Update(b market.Bar) {
	m.add(b.Close)
}

func (m *SMA) add(v float64) {
	if m.count == m.period {
		m.sum -= m.window[m.next]
	} else {
		m.count++
	}
	m.window[m.next] = v
	m.sum += v
	m.next = (m.next + 1) % m.period
}

func (m *SMA) Ready() bool {
	return m.count >= m.period
}

func (m *SMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.sum / float64(m.period)
}

// EMA is a streaming Exponential Moving Average of closes, seeded with the
// SMA of the first period closes.
type EMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

// NewEMA creates a new Exponential Moving Average indicator with the given period
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *EMA) Warmup() int {
	return e.period
}

func (e *EMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *EMA) Update(b market.Bar) {
	if e.count < e.period {
		e.warmupSum += b.Close
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (b.Close-e.ema)*e.multiplier + e.ema
}

func (e *EMA) Ready() bool {
	return e.count >= e.period
}

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}
