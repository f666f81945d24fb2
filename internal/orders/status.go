package orders

import (
	"fmt"

	"github.com/Zack-y11/e-commerce/internal/apperr"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusProcessing    Status = "processing"
	StatusPaid          Status = "paid"
	StatusPaymentFailed Status = "payment_failed"
	StatusShipped       Status = "shipped"
	StatusDelivered     Status = "delivered"
	StatusCancelled     Status = "cancelled"
	StatusRefunded      Status = "refunded"
)

// transitions lists, per current status, the statuses an order may move to.
// cancelled and refunded are terminal.
var transitions = map[Status][]Status{
	StatusPending:       {StatusProcessing, StatusPaid, StatusPaymentFailed, StatusCancelled},
	StatusPaymentFailed: {StatusPending, StatusProcessing, StatusPaid, StatusCancelled},
	StatusProcessing:    {StatusPaid, StatusPaymentFailed, StatusCancelled},
	StatusPaid:          {StatusShipped, StatusRefunded},
	StatusShipped:       {StatusDelivered},
	StatusDelivered:     {StatusRefunded},
	StatusCancelled:     nil,
	StatusRefunded:      nil,
}

var ErrIllegalTransition = apperr.InvalidInput("illegal order status transition")

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", apperr.InvalidInput(fmt.Sprintf("unknown order status %q", s))
	}
	return st, nil
}

// CanTransition reports whether an order in status from may be moved to status to.
// Rewriting the current status is always allowed so replays stay harmless.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition is CanTransition returning an error that names the pair.
func CheckTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return apperr.Wrap(apperr.KindInvalidInput,
		fmt.Sprintf("order cannot move from %s to %s", from, to), ErrIllegalTransition)
}

// Actor is the caller asking for a status change over the API.
type Actor struct {
	UserID string
	Admin  bool
}

// CheckRequestedTransition guards status changes asked for by a caller rather
// than by payment reconciliation. pending, processing, paid and payment_failed
// follow the payment gateway only. Owners may cancel an order that has not
// been paid. Fulfilment and refunds belong to administrators.
func CheckRequestedTransition(from, to Status, a Actor) error {
	switch to {
	case StatusCancelled:
		if !a.Admin && from != StatusPending && from != StatusPaymentFailed {
			return apperr.Forbidden(fmt.Sprintf("an order in status %s can only be cancelled by an administrator", from))
		}
	case StatusShipped, StatusDelivered, StatusRefunded:
		if !a.Admin {
			return apperr.Forbidden(fmt.Sprintf("only an administrator can mark an order %s", to))
		}
	default:
		return apperr.Wrap(apperr.KindInvalidInput,
			fmt.Sprintf("order status %s is set by payment processing", to), ErrIllegalTransition)
	}
	return CheckTransition(from, to)
}
