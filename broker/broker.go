package broker

import (
	"context"

	"github.com/rustyeddy/kelly/order"
)

// Broker accepts orders and reports their progress to a Listener.
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	SubmitOrder(side order.Side, size float64) (order.ID, error)
	CancelOrder(id order.ID) error
}

// Listener receives order status changes. Every change is delivered once, in
// the order it happened. A returned error aborts the current broker step.
type Listener interface {
	NotifyOrder(o order.Order) error
}

type Account struct {
	ID       string
	Currency string
	Balance  float64 // cash
	Equity   float64 // cash plus open position marked to the last close
	Position float64
}
