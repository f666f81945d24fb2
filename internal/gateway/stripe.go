package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/pkg/logkey"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

// testCardToken is the provider's test token for a card that always succeeds.
const testCardToken = "tok_visa"

type Stripe struct {
	sc            *client.API
	webhookSecret string
	cb            *gobreaker.CircuitBreaker[any]
	maxRetries    uint64
	baseDelay     time.Duration
}

// NewStripe builds the adapter. SDK level retries are switched off so that
// retries and the breaker are handled in one place.
func NewStripe(secretKey, webhookSecret string) (*Stripe, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	if webhookSecret == "" {
		return nil, errors.New("stripe webhook secret is empty")
	}

	cfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(0)}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	sc := &client.API{}
	sc.Init(secretKey, backends)

	return &Stripe{
		sc:            sc,
		webhookSecret: webhookSecret,
		cb:            newBreaker("stripe"),
		maxRetries:    3,
		baseDelay:     200 * time.Millisecond,
	}, nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Card declines and bad requests say nothing about the provider's health
		IsSuccessful: func(err error) bool {
			return err == nil || !transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", slog.String("Breaker", name),
				slog.String("From", from.String()), slog.String("To", to.String()))
		},
	})
}

// call runs fn behind the breaker and retries transient failures with
// exponential backoff. Every write carries an idempotency key, so retrying is safe.
func (s *Stripe) call(ctx context.Context, op string, fn func() error) error {
	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.baseDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		_, err := s.cb.Execute(func() (any, error) {
			return nil, fn()
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return err
		}
		if transient(err) {
			slog.Warn("retrying gateway call", slog.String("Operation", op), slog.String(logkey.ERROR, err.Error()))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return apperr.Gateway(describe(op, err), err)
	}
	return nil
}

// transient is true for network failures, rate limiting and provider side errors.
func transient(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return !errors.Is(err, context.Canceled)
	}
	return se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= http.StatusInternalServerError
}

func describe(op string, err error) string {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return fmt.Sprintf("payment gateway failed to %s: %s", op, se.Msg)
	}
	return "payment gateway failed to " + op
}

func params(ctx context.Context, p *stripe.Params, idempotencyKey string) {
	p.Context = ctx
	if idempotencyKey != "" {
		p.SetIdempotencyKey(idempotencyKey)
	}
}

func (s *Stripe) CreateTestClock(ctx context.Context, idempotencyKey string) (string, error) {
	p := &stripe.TestHelpersTestClockParams{
		FrozenTime: stripe.Int64(time.Now().Unix()),
	}
	params(ctx, &p.Params, idempotencyKey)

	var id string
	err := s.call(ctx, "create test clock", func() error {
		clock, err := s.sc.TestHelpersTestClocks.New(p)
		if err != nil {
			return err
		}
		id = clock.ID
		return nil
	})
	return id, err
}

func (s *Stripe) CreateCustomer(ctx context.Context, cp CustomerParams) (string, error) {
	p := &stripe.CustomerParams{Email: stripe.String(cp.Email)}
	if cp.TestClockID != "" {
		p.TestClock = stripe.String(cp.TestClockID)
	}
	params(ctx, &p.Params, cp.IdempotencyKey)

	var id string
	err := s.call(ctx, "create customer", func() error {
		c, err := s.sc.Customers.New(p)
		if err != nil {
			return err
		}
		id = c.ID
		return nil
	})
	return id, err
}

func (s *Stripe) CreateCardPaymentMethod(ctx context.Context, idempotencyKey string) (string, error) {
	p := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{Token: stripe.String(testCardToken)},
	}
	params(ctx, &p.Params, idempotencyKey)

	var id string
	err := s.call(ctx, "create payment method", func() error {
		pm, err := s.sc.PaymentMethods.New(p)
		if err != nil {
			return err
		}
		id = pm.ID
		return nil
	})
	return id, err
}

func (s *Stripe) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID, idempotencyKey string) error {
	p := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	params(ctx, &p.Params, idempotencyKey)

	return s.call(ctx, "attach payment method", func() error {
		_, err := s.sc.PaymentMethods.Attach(paymentMethodID, p)
		return err
	})
}

func (s *Stripe) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID, idempotencyKey string) error {
	p := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	params(ctx, &p.Params, idempotencyKey)

	return s.call(ctx, "set default payment method", func() error {
		_, err := s.sc.Customers.Update(customerID, p)
		return err
	})
}

// CreatePaymentIntent creates and confirms an off-session card intent.
func (s *Stripe) CreatePaymentIntent(ctx context.Context, ip IntentParams) (Intent, error) {
	p := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(ip.Amount),
		Currency:           stripe.String(strings.ToLower(ip.Currency)),
		Customer:           stripe.String(ip.CustomerID),
		PaymentMethod:      stripe.String(ip.PaymentMethodID),
		PaymentMethodTypes: stripe.StringSlice([]string{string(stripe.PaymentMethodTypeCard)}),
		Confirm:            stripe.Bool(true),
		OffSession:         stripe.Bool(true),
	}
	for k, v := range ip.Metadata {
		p.AddMetadata(k, v)
	}
	params(ctx, &p.Params, ip.IdempotencyKey)

	var intent Intent
	err := s.call(ctx, "create payment intent", func() error {
		pi, err := s.sc.PaymentIntents.New(p)
		if err != nil {
			return err
		}
		intent = Intent{ID: pi.ID, Status: string(pi.Status), ClientSecret: pi.ClientSecret}
		return nil
	})
	return intent, err
}

// ParseWebhook verifies the signature header before decoding anything.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if !strings.HasPrefix(out.Type, "payment_intent.") || ev.Data == nil {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return Event{}, fmt.Errorf("decoding payment intent: %w", err)
	}
	out.Intent = &IntentEvent{
		ID:      pi.ID,
		Status:  string(pi.Status),
		OrderID: pi.Metadata["order_id"],
	}
	return out, nil
}
