// Package gateway talks to the payment provider. The rest of the code only
// sees the Gateway interface and the small value types below.
package gateway

import (
	"context"
	"errors"
)

// Event types that drive payment reconciliation.
const (
	EventIntentSucceeded  = "payment_intent.succeeded"
	EventIntentFailed     = "payment_intent.payment_failed"
	EventIntentCanceled   = "payment_intent.canceled"
	EventIntentProcessing = "payment_intent.processing"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type Gateway interface {
	CreateTestClock(ctx context.Context, idempotencyKey string) (string, error)
	CreateCustomer(ctx context.Context, p CustomerParams) (string, error)
	CreateCardPaymentMethod(ctx context.Context, idempotencyKey string) (string, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID, idempotencyKey string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID, idempotencyKey string) error
	CreatePaymentIntent(ctx context.Context, p IntentParams) (Intent, error)
	ParseWebhook(payload []byte, signature string) (Event, error)
}

type CustomerParams struct {
	Email          string
	TestClockID    string
	IdempotencyKey string
}

type IntentParams struct {
	Amount          int64
	Currency        string
	CustomerID      string
	PaymentMethodID string
	Metadata        map[string]string
	IdempotencyKey  string
}

type Intent struct {
	ID           string
	Status       string
	ClientSecret string
}

// Event is a verified webhook notification. Intent is only set for
// payment_intent.* events.
type Event struct {
	ID     string
	Type   string
	Intent *IntentEvent
}

type IntentEvent struct {
	ID      string
	Status  string
	OrderID string
}

// Reconcilable reports whether the event type should update payment and order state.
func (e Event) Reconcilable() bool {
	switch e.Type {
	case EventIntentSucceeded, EventIntentFailed, EventIntentCanceled, EventIntentProcessing:
		return e.Intent != nil
	}
	return false
}
