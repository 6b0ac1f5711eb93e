package payments

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
)

// ErrAlreadyResolved is returned when a confirmation receives a second terminal outcome.
var ErrAlreadyResolved = errors.New("payment confirmation already resolved")

// Outcome is the single terminal result of a payment confirmation.
type Outcome struct {
	Result      enums.GatewayResult
	OrderID     string
	PaymentID   string
	Signature   string
	ErrorCode   string
	ErrorReason string
	IsMock      bool
}

// Confirmation is a single-shot handle: exactly one Outcome is ever delivered.
type Confirmation struct {
	orderID string
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newConfirmation(orderID string) *Confirmation {
	return &Confirmation{orderID: orderID, done: make(chan struct{})}
}

// OrderID returns the payment order the confirmation belongs to.
func (c *Confirmation) OrderID() string {
	return c.orderID
}

// Done is closed once the outcome is available.
func (c *Confirmation) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the outcome arrives or ctx ends.
func (c *Confirmation) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-c.done:
		return c.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (c *Confirmation) resolve(outcome Outcome) error {
	resolved := false
	c.once.Do(func() {
		if outcome.OrderID == "" {
			outcome.OrderID = c.orderID
		}
		c.outcome = outcome
		close(c.done)
		resolved = true
	})
	if !resolved {
		return ErrAlreadyResolved
	}
	return nil
}
