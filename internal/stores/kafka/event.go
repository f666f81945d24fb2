package kafka

import "time"

const (
	TopicOrderPaid = `ecommerce.order-paid`
)

// OrderPaidEvent is published once an order moves to paid after a
// successful payment.
type OrderPaidEvent struct {
	OrderID         string    `json:"order_id"`
	PaymentID       string    `json:"payment_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Amount          int64     `json:"amount"` // Minor currency units
	PaidAt          time.Time `json:"paid_at"`
}
