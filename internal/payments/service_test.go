package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/gateway"
	"github.com/Zack-y11/e-commerce/internal/orders"
	"github.com/Zack-y11/e-commerce/internal/stores/kafka"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	calls        []string
	keys         []string
	intentParams gateway.IntentParams
	intentStatus string
	failOn       string
}

func (f *fakeGateway) record(op, key string) error {
	f.calls = append(f.calls, op)
	f.keys = append(f.keys, key)
	if f.failOn == op {
		return apperr.Gateway("payment gateway failed to "+op, errors.New("boom"))
	}
	return nil
}

func (f *fakeGateway) CreateTestClock(_ context.Context, key string) (string, error) {
	return "clock_1", f.record("clock", key)
}

func (f *fakeGateway) CreateCustomer(_ context.Context, p gateway.CustomerParams) (string, error) {
	return "cus_1", f.record("customer", p.IdempotencyKey)
}

func (f *fakeGateway) CreateCardPaymentMethod(_ context.Context, key string) (string, error) {
	return "pm_1", f.record("payment-method", key)
}

func (f *fakeGateway) AttachPaymentMethod(_ context.Context, _, _, key string) error {
	return f.record("attach", key)
}

func (f *fakeGateway) SetDefaultPaymentMethod(_ context.Context, _, _, key string) error {
	return f.record("default", key)
}

func (f *fakeGateway) CreatePaymentIntent(_ context.Context, p gateway.IntentParams) (gateway.Intent, error) {
	f.intentParams = p
	if err := f.record("intent", p.IdempotencyKey); err != nil {
		return gateway.Intent{}, err
	}
	return gateway.Intent{ID: testIntent, Status: f.intentStatus, ClientSecret: "pi_secret_abc"}, nil
}

func (f *fakeGateway) ParseWebhook([]byte, string) (gateway.Event, error) {
	return gateway.Event{}, nil
}

type fakePublisher struct {
	events []kafka.OrderPaidEvent
	err    error
}

func (f *fakePublisher) PublishOrderPaid(_ context.Context, ev kafka.OrderPaidEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

func newTestService(t *testing.T, testMode bool) (*Service, sqlmock.Sqlmock, *fakeGateway, *fakePublisher) {
	t.Helper()
	c, mock := newMockConf(t)
	gw := &fakeGateway{intentStatus: GatewaySucceeded}
	pub := &fakePublisher{}
	s, err := NewService(c, gw, pub, testMode)
	require.NoError(t, err)
	return s, mock, gw, pub
}

func expectOrderLock(mock sqlmock.Sqlmock, total string, status orders.Status) {
	mock.ExpectQuery(`SELECT o.total_amount, o.status, u.email\s+FROM orders o\s+JOIN users u ON u.id = o.user_id\s+WHERE o.id = \$1 AND o.user_id = \$2\s+FOR UPDATE OF o`).
		WithArgs(testOrder, testUser).
		WillReturnRows(sqlmock.NewRows([]string{"total_amount", "status", "email"}).
			AddRow(total, string(status), "ada@example.com"))
}

func expectAttempts(mock sqlmock.Sqlmock, live, intents int) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FILTER \(WHERE status NOT IN \('pending', 'cancelled'\)\)`).
		WithArgs(testOrder).
		WillReturnRows(sqlmock.NewRows([]string{"live", "intents"}).AddRow(live, intents))
}

// expectReserve covers a reservation that inserts a fresh pending payment.
func expectReserve(mock sqlmock.Sqlmock, total string, status orders.Status, intents int, amount int64, currency string, testMode bool) {
	mock.ExpectBegin()
	expectOrderLock(mock, total, status)
	expectAttempts(mock, 0, intents)
	mock.ExpectQuery(`SELECT id FROM payments WHERE order_id = \$1 AND stripe_payment_intent_id IS NULL`).
		WithArgs(testOrder).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs(testOrder, amount, currency, string(StatusPending), "card", sqlmock.AnyArg(), testMode, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(testPayment, now, now))
	mock.ExpectCommit()
}

func expectAttach(mock sqlmock.Sqlmock, clock any, status Status) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`UPDATE payments\s+SET stripe_customer_id = \$1`).
		WithArgs("cus_1", "pm_1", testIntent, clock, string(status), testPayment)
}

// expectRejected covers a reservation the order itself refuses.
func expectRejected(mock sqlmock.Sqlmock, total string, status orders.Status) {
	mock.ExpectBegin()
	expectOrderLock(mock, total, status)
	mock.ExpectRollback()
}

func TestCreateIntent(t *testing.T) {
	s, mock, gw, _ := newTestService(t, true)

	expectReserve(mock, "25.00", orders.StatusPending, 0, 2500, "usd", true)
	expectAttach(mock, "clock_1", StatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"status", "updated_at"}).AddRow(string(StatusCompleted), now))

	res, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{
		Metadata: map[string]string{"source": "web", "order_id": "spoofed"},
	}, "req-1")
	require.NoError(t, err)

	assert.Equal(t, "pi_secret_abc", res.ClientSecret)
	assert.Equal(t, testPayment, res.Payment.ID)
	assert.Equal(t, int64(2500), res.Payment.Amount)
	assert.Equal(t, StatusCompleted, res.Payment.Status)
	assert.Equal(t, testIntent, res.Payment.StripePaymentIntentID)
	assert.Equal(t, []string{"clock", "customer", "payment-method", "attach", "default", "intent"}, gw.calls)
	assert.Equal(t, "order-"+testOrder+"-req-1-intent", gw.intentParams.IdempotencyKey)
	assert.Equal(t, testOrder, gw.intentParams.Metadata["order_id"])
	assert.Equal(t, "web", gw.intentParams.Metadata["source"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_WithoutTestMode(t *testing.T) {
	s, mock, gw, _ := newTestService(t, false)

	expectReserve(mock, "9.99", orders.StatusPaymentFailed, 1, 999, "eur", false)
	expectAttach(mock, nil, StatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"status", "updated_at"}).AddRow(string(StatusCompleted), now))

	_, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{Currency: "EUR"}, "")
	require.NoError(t, err)
	assert.NotContains(t, gw.calls, "clock")
	assert.Equal(t, "eur", gw.intentParams.Currency)
	// the declined first intent moves the retry onto fresh keys
	assert.Equal(t, "order-"+testOrder+"-999-2-intent", gw.intentParams.IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_DefaultKeyIsStable(t *testing.T) {
	s, mock, gw, _ := newTestService(t, true)
	gw.failOn = "intent"

	// A first request reserves a payment and dies at the gateway
	expectReserve(mock, "25.00", orders.StatusPending, 0, 2500, "usd", true)
	_, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{}, "")
	assert.Equal(t, apperr.KindGatewayFailure, apperr.KindOf(err))
	first := gw.keys

	// The repeat reuses the open reservation and sends the same keys
	gw.calls, gw.keys, gw.failOn = nil, nil, ""
	mock.ExpectBegin()
	expectOrderLock(mock, "25.00", orders.StatusPending)
	expectAttempts(mock, 0, 0)
	mock.ExpectQuery(`SELECT id FROM payments WHERE order_id = \$1 AND stripe_payment_intent_id IS NULL`).
		WithArgs(testOrder).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testPayment))
	mock.ExpectQuery(`UPDATE payments\s+SET amount = \$1`).
		WithArgs(int64(2500), "usd", sqlmock.AnyArg(), true, int64(0), testPayment).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()
	expectAttach(mock, "clock_1", StatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"status", "updated_at"}).AddRow(string(StatusCompleted), now))

	res, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{}, "")
	require.NoError(t, err)
	assert.Equal(t, testPayment, res.Payment.ID)
	assert.Equal(t, first, gw.keys)
	assert.Equal(t, "order-"+testOrder+"-2500-1-intent", gw.intentParams.IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_SecondChargeConflicts(t *testing.T) {
	s, mock, gw, _ := newTestService(t, true)

	// The order is still pending while its first payment waits for the webhook
	mock.ExpectBegin()
	expectOrderLock(mock, "25.00", orders.StatusPending)
	expectAttempts(mock, 1, 1)
	mock.ExpectRollback()

	_, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{}, "req-2")
	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, "order already has a payment in progress", apperr.Message(err))
	assert.Empty(t, gw.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_ZeroTotalNeverReachesGateway(t *testing.T) {
	s, mock, gw, _ := newTestService(t, true)

	expectRejected(mock, "0.00", orders.StatusPending)

	_, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{}, "")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Empty(t, gw.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_RefundedAmount(t *testing.T) {
	tests := []struct {
		refunded int64
		want     string
	}{
		{2501, "refunded amount cannot exceed payment amount"},
		{-1, "refunded amount cannot be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			s, mock, gw, _ := newTestService(t, true)

			expectRejected(mock, "25.00", orders.StatusPending)

			_, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{RefundedAmount: tt.refunded}, "")
			assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
			assert.Equal(t, tt.want, apperr.Message(err))
			assert.Empty(t, gw.calls)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateIntent_PaidOrder(t *testing.T) {
	s, mock, gw, _ := newTestService(t, true)

	expectRejected(mock, "25.00", orders.StatusPaid)

	_, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{}, "")
	assert.True(t, apperr.IsConflict(err))
	assert.Empty(t, gw.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_GatewayFailure(t *testing.T) {
	s, mock, gw, _ := newTestService(t, true)
	gw.failOn = "attach"

	// the reserved row stays open for the next request
	expectReserve(mock, "25.00", orders.StatusPending, 0, 2500, "usd", true)

	_, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{}, "")
	assert.Equal(t, apperr.KindGatewayFailure, apperr.KindOf(err))
	assert.NotContains(t, gw.calls, "intent")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_ChargeIsReservedBeforeGateway(t *testing.T) {
	s, mock, gw, _ := newTestService(t, true)

	expectReserve(mock, "25.00", orders.StatusPending, 0, 2500, "usd", true)
	expectAttach(mock, "clock_1", StatusCompleted).WillReturnError(errors.New("connection reset"))

	_, err := s.CreateIntent(context.Background(), testUser, testOrder, NewPayment{}, "")
	assert.Equal(t, apperr.KindStorageFailure, apperr.KindOf(err))
	assert.Contains(t, gw.calls, "intent")
	assert.NoError(t, mock.ExpectationsWereMet())

	// The webhook for the unrecorded intent lands on the reserved row
	mock.ExpectBegin()
	expectEventInsert(mock, "evt_1", true)
	expectPaymentUpdate(mock, StatusCompleted)
	expectOrderTransition(mock, "pending", orders.StatusPaid, true)
	mock.ExpectCommit()

	res, err := s.Store().Reconcile(context.Background(), succeeded("evt_1"))
	require.NoError(t, err)
	assert.Equal(t, testPayment, res.PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func intentEvent(id, typ, status string) gateway.Event {
	return gateway.Event{
		ID:   id,
		Type: typ,
		Intent: &gateway.IntentEvent{
			ID:      testIntent,
			Status:  status,
			OrderID: testOrder,
		},
	}
}

func TestHandleEvent_PublishesOnPaid(t *testing.T) {
	s, mock, _, pub := newTestService(t, true)

	mock.ExpectBegin()
	expectEventInsert(mock, "evt_1", true)
	expectPaymentUpdate(mock, StatusCompleted)
	expectOrderTransition(mock, "pending", orders.StatusPaid, true)
	mock.ExpectCommit()

	res, handled, err := s.HandleEvent(context.Background(), intentEvent("evt_1", gateway.EventIntentSucceeded, GatewaySucceeded))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, orders.StatusPaid, res.OrderStatus)
	require.Len(t, pub.events, 1)
	assert.Equal(t, testOrder, pub.events[0].OrderID)
	assert.Equal(t, int64(2500), pub.events[0].Amount)

	// Replaying the same delivery changes nothing and publishes nothing
	mock.ExpectBegin()
	expectEventInsert(mock, "evt_1", false)
	mock.ExpectCommit()

	res, handled, err = s.HandleEvent(context.Background(), intentEvent("evt_1", gateway.EventIntentSucceeded, GatewaySucceeded))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, res.Duplicate)
	assert.Len(t, pub.events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleEvent_PublishFailureIsNotFatal(t *testing.T) {
	s, mock, _, pub := newTestService(t, true)
	pub.err = errors.New("broker down")

	mock.ExpectBegin()
	expectEventInsert(mock, "evt_2", true)
	expectPaymentUpdate(mock, StatusCompleted)
	expectOrderTransition(mock, "processing", orders.StatusPaid, true)
	mock.ExpectCommit()

	_, _, err := s.HandleEvent(context.Background(), intentEvent("evt_2", gateway.EventIntentSucceeded, GatewaySucceeded))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleEvent_IgnoresOtherTypes(t *testing.T) {
	s, mock, _, pub := newTestService(t, true)

	_, handled, err := s.HandleEvent(context.Background(), gateway.Event{ID: "evt_3", Type: "charge.refunded"})
	require.NoError(t, err)
	assert.False(t, handled)

	_, handled, err = s.HandleEvent(context.Background(),
		intentEvent("evt_4", "payment_intent.created", "requires_payment_method"))
	require.NoError(t, err)
	assert.False(t, handled)

	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
