package payments

import (
	"testing"

	"github.com/Zack-y11/e-commerce/internal/orders"

	"github.com/stretchr/testify/assert"
)

func TestMapGatewayStatus(t *testing.T) {
	tests := []struct {
		gateway   string
		payment   Status
		order     orders.Status
		hasEffect bool
	}{
		{GatewayRequiresPaymentMethod, StatusPending, orders.StatusPaymentFailed, true},
		{GatewayRequiresConfirmation, StatusAwaitingConfirmation, "", false},
		{GatewayRequiresAction, StatusRequiresAuthentication, "", false},
		{GatewayProcessing, StatusProcessing, "", false},
		{GatewaySucceeded, StatusCompleted, orders.StatusPaid, true},
		{GatewayCanceled, StatusCancelled, "", false},
		{"requires_capture", StatusPending, "", false},
		{"", StatusPending, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.gateway, func(t *testing.T) {
			p, o, effect := MapGatewayStatus(tt.gateway)
			assert.Equal(t, tt.payment, p)
			assert.Equal(t, tt.order, o)
			assert.Equal(t, tt.hasEffect, effect)
		})
	}
}
