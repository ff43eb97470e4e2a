package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/kelly/market"
)

// Bollinger tracks a moving average of closes with bands DevFactor population
// standard deviations above and below it. Value returns the middle band.
type Bollinger struct {
	DevFactor float64

	mid *SMA
	sq  *SMA
}

func NewBollinger(period int, devFactor float64) *Bollinger {
	return &Bollinger{
		DevFactor: devFactor,
		mid:       NewSMA(period),
		sq:        NewSMA(period),
	}
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BB(%d,%g)", b.mid.period, b.DevFactor)
}

func (b *Bollinger) Warmup() int {
	return b.mid.Warmup()
}

func (b *Bollinger) Reset() {
	b.mid.Reset()
	b.sq.Reset()
}

func (b *Bollinger) Update(bar market.Bar) {
	b.mid.add(bar.Close)
	b.sq.add(bar.Close * bar.Close)
}

func (b *Bollinger) Ready() bool {
	return b.mid.Ready()
}

func (b *Bollinger) Value() float64 {
	return b.mid.Value()
}

// StdDev is the population standard deviation of the window.
func (b *Bollinger) StdDev() float64 {
	if !b.Ready() {
		return 0
	}
	m := b.mid.Value()
	v := b.sq.Value() - m*m
	if v < 0 {
		// rounding on flat windows
		v = 0
	}
	return math.Sqrt(v)
}

// Bands returns the lower, middle and upper bands.
func (b *Bollinger) Bands() (lower, middle, upper float64) {
	if !b.Ready() {
		return 0, 0, 0
	}
	middle = b.mid.Value()
	d := b.DevFactor * b.StdDev()
	return middle - d, middle, middle + d
}
