package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/kelly/market"
)

// ADX implements Wilder's Average Directional Index (trend strength).
// Usage:
//
//	adx := indicators.NewADX(14)
//	adx.Update(bar)
//	if adx.Ready() && adx.Value() >= 20 { ... }
type ADX struct {
	period int

	prev     market.Bar
	havePrev bool

	// Wilder-smoothed values after warmup
	tr  float64
	pdm float64
	mdm float64

	pdi, mdi float64

	adx     float64
	dxSum   float64
	dxCount int

	// bars processed, including the first seed
	count int
	ready bool
}

func NewADX(period int) *ADX {
	if period < 1 {
		period = 1
	}
	return &ADX{period: period}
}

func (a *ADX) Name() string {
	return fmt.Sprintf("ADX(%d)", a.period)
}

// Warmup counts the seed bar plus the bars needed for period DX values.
func (a *ADX) Warmup() int {
	return 2 * a.period
}

func (a *ADX) Reset() {
	*a = ADX{period: a.period}
}

func (a *ADX) Ready() bool {
	return a.ready
}

func (a *ADX) Value() float64 {
	if !a.ready {
		return 0
	}
	return a.adx
}

// DI returns the latest +DI and -DI.
func (a *ADX) DI() (plus, minus float64) {
	return a.pdi, a.mdi
}

func (a *ADX) Update(b market.Bar) {
	if !a.havePrev {
		a.prev = b
		a.havePrev = true
		a.count = 1
		return
	}

	upMove := b.High - a.prev.High
	downMove := a.prev.Low - b.Low

	var pdm, mdm float64
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}

	tr := trueRange(b, a.prev)
	a.prev = b
	a.count++

	p := float64(a.period)

	// Phase A: simple averages of the first period samples
	if a.count <= a.period+1 {
		a.tr += tr / p
		a.pdm += pdm / p
		a.mdm += mdm / p
		if a.count < a.period+1 {
			return
		}
	} else {
		a.tr = (a.tr*(p-1) + tr) / p
		a.pdm = (a.pdm*(p-1) + pdm) / p
		a.mdm = (a.mdm*(p-1) + mdm) / p
	}

	if a.tr == 0 {
		return
	}
	a.pdi = 100 * a.pdm / a.tr
	a.mdi = 100 * a.mdm / a.tr

	var dx float64
	if den := a.pdi + a.mdi; den > 0 {
		dx = 100 * math.Abs(a.pdi-a.mdi) / den
	}

	// Phase B: seed the ADX with the mean of the first period DX values.
	if !a.ready {
		a.dxSum += dx
		a.dxCount++
		if a.dxCount == a.period {
			a.adx = a.dxSum / p
			a.ready = true
		}
		return
	}
	a.adx = (a.adx*(p-1) + dx) / p
}
