package payments

import (
	"encoding/json"
	"time"

	"github.com/Zack-y11/e-commerce/internal/orders"
)

type Status string

const (
	StatusPending                Status = "pending"
	StatusAwaitingConfirmation   Status = "awaiting_confirmation"
	StatusRequiresAuthentication Status = "requires_authentication"
	StatusProcessing             Status = "processing"
	StatusCompleted              Status = "completed"
	StatusCancelled              Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAwaitingConfirmation, StatusRequiresAuthentication,
		StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Final reports whether the gateway is done with a payment in this status.
func (s Status) Final() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Payment mirrors a gateway payment intent for one order. Amounts are in
// minor currency units.
type Payment struct {
	ID                    string          `json:"id"`
	OrderID               string          `json:"order_id"`
	UserID                string          `json:"-"`
	StripeCustomerID      string          `json:"stripe_customer_id"`
	StripePaymentMethodID string          `json:"stripe_payment_method_id"`
	StripePaymentIntentID string          `json:"stripe_payment_intent_id"`
	StripeTestClockID     *string         `json:"stripe_test_clock_id"`
	Amount                int64           `json:"amount"`
	Currency              string          `json:"currency"`
	Status                Status          `json:"status"`
	PaymentMethodType     string          `json:"payment_method_type"`
	Metadata              json.RawMessage `json:"metadata"`
	TestMode              bool            `json:"test_mode"`
	ErrorMessage          *string         `json:"error_message"`
	RefundStatus          *string         `json:"refund_status"`
	RefundedAmount        int64           `json:"refunded_amount"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// NewPayment is the optional body of an intent creation request.
type NewPayment struct {
	Currency       string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Metadata       map[string]string `json:"metadata"`
	RefundedAmount int64             `json:"refunded_amount"`
}

// UpdatePayment carries an administrative change. Nil fields are left untouched.
type UpdatePayment struct {
	Currency       *string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Status         *Status          `json:"status"`
	Metadata       *json.RawMessage `json:"metadata"`
	ErrorMessage   *string          `json:"error_message"`
	RefundStatus   *string          `json:"refund_status"`
	RefundedAmount *int64           `json:"refunded_amount"`
}

// GatewayEvent is the part of a verified webhook notification the reconciler needs.
type GatewayEvent struct {
	ID            string
	Type          string
	IntentID      string
	OrderID       string
	GatewayStatus string
}

type ReconcileResult struct {
	Duplicate     bool          `json:"duplicate"`
	Stale         bool          `json:"stale"`
	PaymentID     string        `json:"payment_id,omitempty"`
	PaymentStatus Status        `json:"payment_status,omitempty"`
	OrderStatus   orders.Status `json:"order_status,omitempty"`
	OrderChanged  bool          `json:"order_changed"`
	Amount        int64         `json:"-"`
}

type IntentResult struct {
	Payment      Payment `json:"payment"`
	ClientSecret string  `json:"client_secret"`
}
