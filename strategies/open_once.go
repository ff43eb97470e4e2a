package strategies

import (
	"fmt"

	"github.com/rustyeddy/kelly/market"
)

// OpenOnce buys on the first bar it is allowed to and exits after HoldBars
// bars in the market. With HoldBars of zero the position is held to the end.
type OpenOnce struct {
	Base
	HoldBars int

	opened bool
	held   int
}

func (s *OpenOnce) Name() string { return "open-once" }

func (s *OpenOnce) Reset() {
	s.opened = false
	s.held = 0
}

func (s *OpenOnce) OnBar(ctx Context, b market.Bar) Decision {
	if ctx.InFlight {
		return hold()
	}
	if !s.opened {
		if ctx.Position.Flat() {
			s.opened = true
			return Decision{Signal: Buy, Reason: "open once"}
		}
		return hold()
	}
	if !ctx.Long() {
		return hold()
	}
	s.held++
	if s.HoldBars > 0 && s.held >= s.HoldBars {
		return Decision{Signal: Sell, Reason: fmt.Sprintf("held %d bars", s.held)}
	}
	return hold()
}
