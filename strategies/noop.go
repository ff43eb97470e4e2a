package strategies

import "github.com/rustyeddy/kelly/market"

// Noop never trades. Useful to measure the broker and journal alone.
type Noop struct{ Base }

func (Noop) Name() string                       { return "noop" }
func (Noop) Reset()                             {}
func (Noop) OnBar(Context, market.Bar) Decision { return hold() }
