package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/gateway"
	"github.com/Zack-y11/e-commerce/internal/orders"
	"github.com/Zack-y11/e-commerce/internal/stores/kafka"
	"github.com/Zack-y11/e-commerce/pkg/logkey"
)

const defaultCurrency = "usd"

type Publisher interface {
	PublishOrderPaid(ctx context.Context, ev kafka.OrderPaidEvent) error
}

// Service ties the payment store to the gateway and the event publisher.
type Service struct {
	store    *Conf
	gw       gateway.Gateway
	pub      Publisher
	testMode bool
}

func NewService(store *Conf, gw gateway.Gateway, pub Publisher, testMode bool) (*Service, error) {
	if store == nil || gw == nil {
		return nil, fmt.Errorf("payment store and gateway are required")
	}
	if pub == nil {
		pub = kafka.Noop{}
	}
	return &Service{store: store, gw: gw, pub: pub, testMode: testMode}, nil
}

func (s *Service) Store() *Conf {
	return s.store
}

// CreateIntent charges the caller's order through the gateway. The payment
// row is reserved under the order lock before the gateway is called and gets
// the gateway ids afterwards, so a webhook always finds a row for the charge.
// requestKey scopes gateway idempotency keys. Without one the key comes from
// the order total and the attempt number, so a repeated request reuses the
// same gateway objects.
func (s *Service) CreateIntent(ctx context.Context, userID, orderID string, np NewPayment, requestKey string) (IntentResult, error) {
	currency := strings.ToLower(np.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	metadata := make(map[string]string, len(np.Metadata)+1)
	for k, v := range np.Metadata {
		metadata[k] = v
	}
	metadata["order_id"] = orderID
	meta, err := json.Marshal(metadata)
	if err != nil {
		return IntentResult{}, fmt.Errorf("marshal metadata: %w", err)
	}

	a, err := s.store.reserve(ctx, userID, orderID, func(ck checkout) (Payment, error) {
		amount := ck.Total.Shift(2).Round(0).IntPart()
		if amount <= 0 {
			return Payment{}, apperr.InvalidInput("order total must be greater than zero")
		}
		if np.RefundedAmount < 0 {
			return Payment{}, apperr.InvalidInput("refunded amount cannot be negative")
		}
		if np.RefundedAmount > amount {
			return Payment{}, apperr.InvalidInput("refunded amount cannot exceed payment amount")
		}
		if ck.Status != orders.StatusPending && ck.Status != orders.StatusPaymentFailed {
			return Payment{}, apperr.Conflict(fmt.Sprintf("order is %s and cannot be paid", ck.Status))
		}
		return Payment{
			Amount:            amount,
			Currency:          currency,
			Status:            StatusPending,
			PaymentMethodType: "card",
			Metadata:          meta,
			TestMode:          s.testMode,
			RefundedAmount:    np.RefundedAmount,
		}, nil
	})
	if err != nil {
		return IntentResult{}, err
	}

	if requestKey == "" {
		requestKey = fmt.Sprintf("%d-%d", a.Payment.Amount, a.Number)
	}
	key := func(step string) string {
		return fmt.Sprintf("order-%s-%s-%s", orderID, requestKey, step)
	}

	var clockID *string
	if s.testMode {
		id, err := s.gw.CreateTestClock(ctx, key("clock"))
		if err != nil {
			return IntentResult{}, err
		}
		clockID = &id
	}

	cp := gateway.CustomerParams{Email: a.Email, IdempotencyKey: key("customer")}
	if clockID != nil {
		cp.TestClockID = *clockID
	}
	customerID, err := s.gw.CreateCustomer(ctx, cp)
	if err != nil {
		return IntentResult{}, err
	}

	pmID, err := s.gw.CreateCardPaymentMethod(ctx, key("payment-method"))
	if err != nil {
		return IntentResult{}, err
	}
	if err := s.gw.AttachPaymentMethod(ctx, pmID, customerID, key("attach")); err != nil {
		return IntentResult{}, err
	}
	if err := s.gw.SetDefaultPaymentMethod(ctx, customerID, pmID, key("default")); err != nil {
		return IntentResult{}, err
	}

	intent, err := s.gw.CreatePaymentIntent(ctx, gateway.IntentParams{
		Amount:          a.Payment.Amount,
		Currency:        currency,
		CustomerID:      customerID,
		PaymentMethodID: pmID,
		Metadata:        metadata,
		IdempotencyKey:  key("intent"),
	})
	if err != nil {
		return IntentResult{}, err
	}

	status, _, _ := MapGatewayStatus(intent.Status)
	p, err := s.store.attachIntent(ctx, a.Payment, gatewayRefs{
		CustomerID:      customerID,
		PaymentMethodID: pmID,
		IntentID:        intent.ID,
		TestClockID:     clockID,
		Status:          status,
	})
	if err != nil {
		// the webhook for this intent still lands on the reserved row
		slog.Error("payment intent created but not recorded", slog.String(logkey.OrderID, orderID),
			slog.String(logkey.PaymentID, a.Payment.ID), slog.String("intent_id", intent.ID),
			slog.String(logkey.ERROR, err.Error()))
		return IntentResult{}, err
	}

	return IntentResult{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

// HandleEvent reconciles a verified webhook event. Event types that do not
// concern payment intents are acknowledged and skipped.
func (s *Service) HandleEvent(ctx context.Context, ev gateway.Event) (ReconcileResult, bool, error) {
	if !ev.Reconcilable() {
		return ReconcileResult{}, false, nil
	}

	res, err := s.store.Reconcile(ctx, GatewayEvent{
		ID:            ev.ID,
		Type:          ev.Type,
		IntentID:      ev.Intent.ID,
		OrderID:       ev.Intent.OrderID,
		GatewayStatus: ev.Intent.Status,
	})
	if err != nil {
		return ReconcileResult{}, true, err
	}
	if res.Stale {
		slog.Info("payment already settled, event recorded only", slog.String(logkey.PaymentID, res.PaymentID),
			slog.String(logkey.EventID, ev.ID), slog.String("event_type", ev.Type))
	}

	if res.OrderChanged && res.OrderStatus == orders.StatusPaid {
		err := s.pub.PublishOrderPaid(ctx, kafka.OrderPaidEvent{
			OrderID:         ev.Intent.OrderID,
			PaymentID:       res.PaymentID,
			PaymentIntentID: ev.Intent.ID,
			Amount:          res.Amount,
			PaidAt:          time.Now().UTC(),
		})
		if err != nil {
			slog.Error("failed to publish order paid event", slog.String(logkey.OrderID, ev.Intent.OrderID),
				slog.String(logkey.EventID, ev.ID), slog.String(logkey.ERROR, err.Error()))
		}
	}
	return res, true, nil
}
