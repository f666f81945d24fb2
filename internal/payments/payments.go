package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/orders"
	"github.com/Zack-y11/e-commerce/internal/stores/postgres"

	"github.com/shopspring/decimal"
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

const selectPayments = `
	SELECT p.id, p.order_id, o.user_id, p.stripe_customer_id, p.stripe_payment_method_id,
	       COALESCE(p.stripe_payment_intent_id, ''), p.stripe_test_clock_id, p.amount, p.currency, p.status,
	       p.payment_method_type, p.metadata, p.test_mode, p.error_message, p.refund_status,
	       p.refunded_amount, p.created_at, p.updated_at
	FROM payments p
	JOIN orders o ON o.id = p.order_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner, p *Payment) error {
	var meta []byte
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.StripeCustomerID, &p.StripePaymentMethodID,
		&p.StripePaymentIntentID, &p.StripeTestClockID, &p.Amount, &p.Currency, &p.Status,
		&p.PaymentMethodType, &meta, &p.TestMode, &p.ErrorMessage, &p.RefundStatus,
		&p.RefundedAmount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	p.Metadata = json.RawMessage(meta)
	return nil
}

func (p Payment) validate() error {
	if p.Amount <= 0 {
		return apperr.InvalidInput("payment amount must be greater than zero")
	}
	if p.RefundedAmount < 0 {
		return apperr.InvalidInput("refunded amount cannot be negative")
	}
	if p.RefundedAmount > p.Amount {
		return apperr.InvalidInput("refunded amount cannot exceed payment amount")
	}
	if !p.Status.Valid() {
		return apperr.InvalidInput(fmt.Sprintf("unknown payment status %q", p.Status))
	}
	if len(p.Metadata) > 0 && !json.Valid(p.Metadata) {
		return apperr.InvalidInput("metadata must be valid JSON")
	}
	return nil
}

func (c *Conf) GetPayment(ctx context.Context, id string) (Payment, error) {
	var p Payment
	err := postgres.Read(ctx, func(ctx context.Context) error {
		p = Payment{}
		err := scanPayment(c.db.QueryRowContext(ctx, selectPayments+` WHERE p.id = $1`, id), &p)
		return postgres.Classify(err, "payment")
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// ListByUser returns the payments of every order the user owns.
func (c *Conf) ListByUser(ctx context.Context, userID string) ([]Payment, error) {
	return c.list(ctx, selectPayments+` WHERE o.user_id = $1 ORDER BY p.created_at DESC`, userID)
}

func (c *Conf) ListByOrder(ctx context.Context, userID, orderID string) ([]Payment, error) {
	return c.list(ctx, selectPayments+` WHERE p.order_id = $1 AND o.user_id = $2 ORDER BY p.created_at DESC`, orderID, userID)
}

func (c *Conf) list(ctx context.Context, query string, args ...any) ([]Payment, error) {
	var list []Payment
	err := postgres.Read(ctx, func(ctx context.Context) error {
		list = []Payment{}
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return postgres.Classify(err, "payments")
		}
		defer rows.Close()

		for rows.Next() {
			var p Payment
			if err := scanPayment(rows, &p); err != nil {
				return postgres.Classify(err, "payments")
			}
			list = append(list, p)
		}
		return postgres.Classify(rows.Err(), "payments")
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// UpdatePayment applies an administrative change to a payment.
func (c *Conf) UpdatePayment(ctx context.Context, id string, u UpdatePayment) (Payment, error) {
	var p Payment
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		err := scanPayment(tx.QueryRowContext(ctx, selectPayments+` WHERE p.id = $1 FOR UPDATE OF p`, id), &p)
		if err != nil {
			return postgres.Classify(err, "payment")
		}

		if u.Currency != nil {
			p.Currency = *u.Currency
		}
		if u.Status != nil {
			p.Status = *u.Status
		}
		if u.Metadata != nil {
			p.Metadata = *u.Metadata
		}
		if u.ErrorMessage != nil {
			p.ErrorMessage = u.ErrorMessage
		}
		if u.RefundStatus != nil {
			p.RefundStatus = u.RefundStatus
		}
		if u.RefundedAmount != nil {
			p.RefundedAmount = *u.RefundedAmount
		}
		if err := p.validate(); err != nil {
			return err
		}

		query := `
			UPDATE payments
			SET currency = $1, status = $2, metadata = $3, error_message = $4,
			    refund_status = $5, refunded_amount = $6, updated_at = NOW()
			WHERE id = $7
			RETURNING updated_at
		`
		err = tx.QueryRowContext(ctx, query, p.Currency, p.Status, string(p.Metadata), p.ErrorMessage,
			p.RefundStatus, p.RefundedAmount, id).Scan(&p.UpdatedAt)
		return postgres.Classify(err, "payment")
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// DeletePayment removes a payment record. Completed payments are kept.
func (c *Conf) DeletePayment(ctx context.Context, id string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		var status Status
		err := tx.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if err != nil {
			return postgres.Classify(err, "payment")
		}
		if status == StatusCompleted {
			return apperr.Conflict("completed payments cannot be deleted")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id); err != nil {
			return postgres.Classify(err, "payment")
		}
		return nil
	})
}

// checkout is what intent creation needs to know about an order.
type checkout struct {
	Total  decimal.Decimal
	Status orders.Status
	Email  string
}

// attempt is the payment row reserved for one intent creation. Number is one
// more than the intents the order already has, so a retry after a declined
// card gets fresh gateway objects.
type attempt struct {
	Payment Payment
	Email   string
	Number  int
}

// reserve locks the order, lets build turn its checkout details into a
// payment and stores that payment as the order's open attempt. An order whose
// payment is under way or done cannot start another. An open attempt left by
// an earlier request is reused.
func (c *Conf) reserve(ctx context.Context, userID, orderID string, build func(checkout) (Payment, error)) (attempt, error) {
	var a attempt
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var ck checkout
		err := tx.QueryRowContext(ctx, `
			SELECT o.total_amount, o.status, u.email
			FROM orders o
			JOIN users u ON u.id = o.user_id
			WHERE o.id = $1 AND o.user_id = $2
			FOR UPDATE OF o
		`, orderID, userID).Scan(&ck.Total, &ck.Status, &ck.Email)
		if err != nil {
			return postgres.Classify(err, "order")
		}

		p, err := build(ck)
		if err != nil {
			return err
		}
		if len(p.Metadata) == 0 {
			p.Metadata = json.RawMessage(`{}`)
		}
		if err := p.validate(); err != nil {
			return err
		}

		var live, intents int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FILTER (WHERE status NOT IN ('pending', 'cancelled')),
			       COUNT(stripe_payment_intent_id)
			FROM payments
			WHERE order_id = $1
		`, orderID).Scan(&live, &intents)
		if err != nil {
			return postgres.Classify(err, "payment")
		}
		if live > 0 {
			return apperr.Conflict("order already has a payment in progress")
		}

		p.OrderID = orderID
		p.UserID = userID
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM payments WHERE order_id = $1 AND stripe_payment_intent_id IS NULL`, orderID).Scan(&p.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = tx.QueryRowContext(ctx, `
				INSERT INTO payments (order_id, amount, currency, status, payment_method_type, metadata,
				                      test_mode, refunded_amount, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
				RETURNING id, created_at, updated_at
			`, orderID, p.Amount, p.Currency, p.Status, p.PaymentMethodType, string(p.Metadata),
				p.TestMode, p.RefundedAmount).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		case err == nil:
			err = tx.QueryRowContext(ctx, `
				UPDATE payments
				SET amount = $1, currency = $2, metadata = $3, test_mode = $4, refunded_amount = $5, updated_at = NOW()
				WHERE id = $6
				RETURNING created_at, updated_at
			`, p.Amount, p.Currency, string(p.Metadata), p.TestMode, p.RefundedAmount, p.ID).Scan(&p.CreatedAt, &p.UpdatedAt)
		}
		if err != nil {
			return postgres.Classify(err, "payment")
		}

		a = attempt{Payment: p, Email: ck.Email, Number: intents + 1}
		return nil
	})
	if err != nil {
		return attempt{}, err
	}
	return a, nil
}

// gatewayRefs are the gateway objects created for a reserved payment.
type gatewayRefs struct {
	CustomerID      string
	PaymentMethodID string
	IntentID        string
	TestClockID     *string
	Status          Status
}

// attachIntent writes the gateway objects onto a reserved payment. A final
// status a webhook already wrote is kept.
func (c *Conf) attachIntent(ctx context.Context, p Payment, refs gatewayRefs) (Payment, error) {
	query := `
		UPDATE payments
		SET stripe_customer_id = $1, stripe_payment_method_id = $2, stripe_payment_intent_id = $3,
		    stripe_test_clock_id = $4,
		    status = CASE WHEN status IN ('completed', 'cancelled') THEN status ELSE $5 END,
		    updated_at = NOW()
		WHERE id = $6
		RETURNING status, updated_at
	`
	err := c.db.QueryRowContext(ctx, query, refs.CustomerID, refs.PaymentMethodID, refs.IntentID,
		refs.TestClockID, refs.Status, p.ID).Scan(&p.Status, &p.UpdatedAt)
	if err != nil {
		return Payment{}, postgres.Classify(err, "payment")
	}
	p.StripeCustomerID = refs.CustomerID
	p.StripePaymentMethodID = refs.PaymentMethodID
	p.StripePaymentIntentID = refs.IntentID
	p.StripeTestClockID = refs.TestClockID
	return p, nil
}

// Reconcile applies a gateway status notification to the payment and its
// order in one transaction. An event id seen before is a no-op, and so is an
// event that would move a completed or cancelled payment.
func (c *Conf) Reconcile(ctx context.Context, ev GatewayEvent) (ReconcileResult, error) {
	if ev.ID == "" || ev.IntentID == "" || ev.OrderID == "" {
		return ReconcileResult{}, apperr.InvalidInput("event is missing its id, intent or order reference")
	}

	paymentStatus, orderStatus, hasOrderEffect := MapGatewayStatus(ev.GatewayStatus)
	res := ReconcileResult{PaymentStatus: paymentStatus}

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx, `
			INSERT INTO webhook_events (event_id, event_type, received_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (event_id) DO NOTHING
		`, ev.ID, ev.Type)
		if err != nil {
			return postgres.Classify(err, "webhook event")
		}
		n, err := r.RowsAffected()
		if err != nil {
			return postgres.Classify(err, "webhook event")
		}
		if n == 0 {
			res.Duplicate = true
			return nil
		}

		// An event for an intent whose ids were never written back lands on
		// the order's open attempt.
		var current Status
		err = tx.QueryRowContext(ctx, `
			SELECT id, amount, status
			FROM payments
			WHERE order_id = $1 AND (stripe_payment_intent_id = $2 OR stripe_payment_intent_id IS NULL)
			ORDER BY stripe_payment_intent_id IS NULL
			LIMIT 1
			FOR UPDATE
		`, ev.OrderID, ev.IntentID).Scan(&res.PaymentID, &res.Amount, &current)
		if err != nil {
			return postgres.Classify(err, "payment")
		}

		// Events arrive out of order. A settled payment keeps its status and
		// the event is only recorded.
		if current.Final() && current != paymentStatus {
			res.PaymentStatus = current
			res.Stale = true
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE payments SET status = $1, stripe_payment_intent_id = $2, updated_at = NOW() WHERE id = $3
		`, paymentStatus, ev.IntentID, res.PaymentID)
		if err != nil {
			return postgres.Classify(err, "payment")
		}

		if !hasOrderEffect {
			return nil
		}
		from, err := orders.TransitionTx(ctx, tx, ev.OrderID, orderStatus)
		if err != nil {
			return err
		}
		res.OrderStatus = orderStatus
		res.OrderChanged = from != orderStatus
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return res, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return postgres.WithTx(ctx, c.db, fn)
}
