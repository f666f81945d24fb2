package orders

import (
	"errors"
	"testing"

	"github.com/Zack-y11/e-commerce/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusPaymentFailed, true},
		{StatusPending, StatusShipped, false},
		{StatusPaymentFailed, StatusPaid, true},
		{StatusProcessing, StatusPaid, true},
		{StatusPaid, StatusShipped, true},
		{StatusPaid, StatusPending, false},
		{StatusPaid, StatusPaymentFailed, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusRefunded, true},
		{StatusCancelled, StatusPending, false},
		{StatusRefunded, StatusPaid, false},
		{StatusPaid, StatusPaid, true},
		{StatusCancelled, StatusCancelled, true},
		{Status("archived"), StatusPaid, false},
		{StatusPending, Status("archived"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCheckTransition(t *testing.T) {
	require.NoError(t, CheckTransition(StatusPending, StatusPaid))

	err := CheckTransition(StatusPaid, StatusPending)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Equal(t, "order cannot move from paid to pending", apperr.Message(err))
}

func TestCheckRequestedTransition(t *testing.T) {
	owner := Actor{UserID: "u1"}
	admin := Actor{UserID: "a1", Admin: true}

	tests := []struct {
		name     string
		from, to Status
		actor    Actor
		want     apperr.Kind
	}{
		{"owner cancels pending", StatusPending, StatusCancelled, owner, apperr.KindUnknown},
		{"owner cancels failed payment", StatusPaymentFailed, StatusCancelled, owner, apperr.KindUnknown},
		{"owner cannot cancel processing", StatusProcessing, StatusCancelled, owner, apperr.KindForbidden},
		{"owner cannot pay", StatusPending, StatusPaid, owner, apperr.KindInvalidInput},
		{"owner cannot fail payment", StatusPending, StatusPaymentFailed, owner, apperr.KindInvalidInput},
		{"owner cannot ship", StatusPaid, StatusShipped, owner, apperr.KindForbidden},
		{"owner cannot refund", StatusPaid, StatusRefunded, owner, apperr.KindForbidden},
		{"admin cannot pay", StatusPending, StatusPaid, admin, apperr.KindInvalidInput},
		{"admin ships", StatusPaid, StatusShipped, admin, apperr.KindUnknown},
		{"admin delivers", StatusShipped, StatusDelivered, admin, apperr.KindUnknown},
		{"admin refunds", StatusDelivered, StatusRefunded, admin, apperr.KindUnknown},
		{"admin cancels processing", StatusProcessing, StatusCancelled, admin, apperr.KindUnknown},
		{"admin still follows the table", StatusPending, StatusShipped, admin, apperr.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRequestedTransition(tt.from, tt.to, tt.actor)
			if tt.want == apperr.KindUnknown {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, s)

	_, err = ParseStatus("lost")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}
