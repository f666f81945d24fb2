package payments

import "github.com/Zack-y11/e-commerce/internal/orders"

// Gateway intent statuses.
const (
	GatewayRequiresPaymentMethod = "requires_payment_method"
	GatewayRequiresConfirmation  = "requires_confirmation"
	GatewayRequiresAction        = "requires_action"
	GatewayProcessing            = "processing"
	GatewaySucceeded             = "succeeded"
	GatewayCanceled              = "canceled"
)

// MapGatewayStatus translates a gateway intent status into the payment status
// to store and, when hasOrderEffect is true, the status the order moves to.
// Unknown values map to pending with no order effect.
func MapGatewayStatus(gatewayStatus string) (payment Status, order orders.Status, hasOrderEffect bool) {
	switch gatewayStatus {
	case GatewayRequiresPaymentMethod:
		return StatusPending, orders.StatusPaymentFailed, true
	case GatewayRequiresConfirmation:
		return StatusAwaitingConfirmation, "", false
	case GatewayRequiresAction:
		return StatusRequiresAuthentication, "", false
	case GatewayProcessing:
		return StatusProcessing, "", false
	case GatewaySucceeded:
		return StatusCompleted, orders.StatusPaid, true
	case GatewayCanceled:
		return StatusCancelled, "", false
	default:
		return StatusPending, "", false
	}
}
