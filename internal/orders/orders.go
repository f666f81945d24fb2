package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/stores/postgres"

	"github.com/shopspring/decimal"
)

type Conf struct {
	db              *sql.DB
	keepEmptyOrders bool
}

type Option func(*Conf)

// WithKeepEmptyOrders leaves an order in place, with a zero total, when its
// last item is removed instead of deleting it.
func WithKeepEmptyOrders(keep bool) Option {
	return func(c *Conf) {
		c.keepEmptyOrders = keep
	}
}

func NewConf(db *sql.DB, opts ...Option) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	c := &Conf{db: db}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const orderColumns = `id, user_id, status, total_amount, shipping_address_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner, o *Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.ShippingAddressID, &o.CreatedAt, &o.UpdatedAt)
}

func (c *Conf) CreateOrder(ctx context.Context, userID string, n NewOrder) (Order, error) {
	if n.Status == "" {
		n.Status = StatusPending
	}
	if !n.Status.Valid() {
		return Order{}, apperr.InvalidInput(fmt.Sprintf("unknown order status %q", n.Status))
	}
	if n.Status != StatusPending {
		return Order{}, apperr.InvalidInput("new orders must start as pending")
	}

	o := Order{
		UserID:            userID,
		Status:            n.Status,
		TotalAmount:       decimal.Zero,
		ShippingAddressID: n.ShippingAddressID,
	}
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		// The address must exist and belong to the caller
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM shipping_addresses WHERE id = $1 AND user_id = $2`,
			n.ShippingAddressID, userID).Scan(&one)
		if err != nil {
			return postgres.Classify(err, "shipping address")
		}

		query := `
			INSERT INTO orders (user_id, status, total_amount, shipping_address_id, created_at, updated_at)
			VALUES ($1, $2, 0, $3, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`
		err = tx.QueryRowContext(ctx, query, userID, o.Status, n.ShippingAddressID).
			Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return postgres.Classify(err, "order")
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// GetOrder returns the caller's order with its items.
func (c *Conf) GetOrder(ctx context.Context, userID, orderID string) (Order, error) {
	var o Order
	err := postgres.Read(ctx, func(ctx context.Context) error {
		o = Order{}
		query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`
		if err := scanOrder(c.db.QueryRowContext(ctx, query, orderID, userID), &o); err != nil {
			return postgres.Classify(err, "order")
		}
		items, err := listItems(ctx, c.db, orderID)
		if err != nil {
			return err
		}
		o.Items = items
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListOrders returns the caller's orders, newest first, without their items.
func (c *Conf) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	var list []Order
	err := postgres.Read(ctx, func(ctx context.Context) error {
		list = []Order{}
		query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
		rows, err := c.db.QueryContext(ctx, query, userID)
		if err != nil {
			return postgres.Classify(err, "orders")
		}
		defer rows.Close()

		for rows.Next() {
			var o Order
			if err := scanOrder(rows, &o); err != nil {
				return postgres.Classify(err, "orders")
			}
			list = append(list, o)
		}
		return postgres.Classify(rows.Err(), "orders")
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetOrderInfo returns the order joined with its owner, its shipping address and its items.
func (c *Conf) GetOrderInfo(ctx context.Context, userID, orderID string) (Info, error) {
	var info Info
	err := postgres.Read(ctx, func(ctx context.Context) error {
		info = Info{}
		query := `
			SELECT o.id, o.user_id, o.status, o.total_amount, o.shipping_address_id, o.created_at, o.updated_at,
			       u.id, u.email, u.first_name, u.last_name, u.phone,
			       a.id, a.address_line1, a.address_line2, a.city, a.state, a.postal_code, a.country
			FROM orders o
			JOIN users u ON u.id = o.user_id
			JOIN shipping_addresses a ON a.id = o.shipping_address_id
			WHERE o.id = $1 AND o.user_id = $2
		`
		o := &info.Order
		u := &info.Customer
		a := &info.ShippingAddress
		err := c.db.QueryRowContext(ctx, query, orderID, userID).Scan(
			&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.ShippingAddressID, &o.CreatedAt, &o.UpdatedAt,
			&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone,
			&a.ID, &a.AddressLine1, &a.AddressLine2, &a.City, &a.State, &a.PostalCode, &a.Country,
		)
		if err != nil {
			return postgres.Classify(err, "order")
		}
		items, err := listItems(ctx, c.db, orderID)
		if err != nil {
			return err
		}
		o.Items = items
		return nil
	})
	if err != nil {
		return Info{}, err
	}
	return info, nil
}

// UpdateStatus moves an order to a new status on behalf of a caller and
// rewrites the total from the current items. Administrators may act on any
// order, everyone else only on their own.
func (c *Conf) UpdateStatus(ctx context.Context, a Actor, orderID string, to Status) (Order, error) {
	if !to.Valid() {
		return Order{}, apperr.InvalidInput(fmt.Sprintf("unknown order status %q", to))
	}

	var o Order
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if a.Admin {
			o, err = lockAnyOrder(ctx, tx, orderID)
		} else {
			o, err = lockOrder(ctx, tx, a.UserID, orderID)
		}
		if err != nil {
			return err
		}
		if err := CheckRequestedTransition(o.Status, to, a); err != nil {
			return err
		}

		o.Status = to
		return recompute(ctx, tx, &o)
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (c *Conf) DeleteOrder(ctx context.Context, userID, orderID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID)
	if err != nil {
		return postgres.Classify(err, "order")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return postgres.Classify(err, "order")
	}
	if n == 0 {
		return apperr.NotFound("order not found")
	}
	return nil
}

// AddItem snapshots the product's current price into a new line of the order
// and rewrites the order total, all in one transaction.
func (c *Conf) AddItem(ctx context.Context, userID, orderID string, n NewItem) (Order, error) {
	if n.Quantity <= 0 {
		return Order{}, apperr.InvalidInput("quantity must be greater than zero")
	}

	var o Order
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var price decimal.Decimal
		var active bool
		err := tx.QueryRowContext(ctx, `SELECT price, is_active FROM products WHERE id = $1`, n.ProductID).
			Scan(&price, &active)
		if err != nil {
			return postgres.Classify(err, "product")
		}
		if !active {
			return apperr.InvalidInput("product is not available")
		}

		o, err = lockOrder(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}
		if !o.editable() {
			return apperr.Conflict(fmt.Sprintf("order is %s and can no longer be modified", o.Status))
		}

		query := `
			INSERT INTO order_items (order_id, product_id, quantity, price_at_time, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (order_id, product_id) DO NOTHING
			RETURNING id
		`
		var itemID string
		err = tx.QueryRowContext(ctx, query, orderID, n.ProductID, n.Quantity, price).Scan(&itemID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Conflict("product already in order")
		}
		if err != nil {
			return postgres.Classify(err, "order item")
		}

		return recompute(ctx, tx, &o)
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// RemoveItem drops a line from the order. When it was the last line the
// order is deleted too, unless empty orders are kept or payments reference it.
func (c *Conf) RemoveItem(ctx context.Context, userID, orderID, productID string) (RemoveResult, error) {
	var result RemoveResult
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		o, err := lockOrder(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}
		if !o.editable() {
			return apperr.Conflict(fmt.Sprintf("order is %s and can no longer be modified", o.Status))
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM order_items WHERE order_id = $1 AND product_id = $2`, orderID, productID)
		if err != nil {
			return postgres.Classify(err, "order item")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return postgres.Classify(err, "order item")
		}
		if n == 0 {
			return apperr.NotFound("product not found in order")
		}

		var remaining int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, orderID).Scan(&remaining)
		if err != nil {
			return postgres.Classify(err, "order item")
		}

		if remaining == 0 && !c.keepEmptyOrders {
			var hasPayments bool
			err = tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1)`, orderID).Scan(&hasPayments)
			if err != nil {
				return postgres.Classify(err, "payment")
			}
			if !hasPayments {
				if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
					return postgres.Classify(err, "order")
				}
				result.OrderDeleted = true
				return nil
			}
		}

		if err := recompute(ctx, tx, &o); err != nil {
			return err
		}
		result.Order = &o
		return nil
	})
	if err != nil {
		return RemoveResult{}, err
	}
	return result, nil
}

// TransitionTx locks the order row inside tx and moves it to status to when
// the transition table allows it. It returns the status the order had before.
func TransitionTx(ctx context.Context, tx *sql.Tx, orderID string, to Status) (Status, error) {
	var from Status
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&from)
	if err != nil {
		return "", postgres.Classify(err, "order")
	}
	if err := CheckTransition(from, to); err != nil {
		return from, err
	}
	if from == to {
		return from, nil
	}

	_, err = tx.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, to, orderID)
	if err != nil {
		return from, postgres.Classify(err, "order")
	}
	return from, nil
}

func (o Order) editable() bool {
	return o.Status == StatusPending || o.Status == StatusPaymentFailed
}

func lockOrder(ctx context.Context, tx *sql.Tx, userID, orderID string) (Order, error) {
	var o Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`
	if err := scanOrder(tx.QueryRowContext(ctx, query, orderID, userID), &o); err != nil {
		return Order{}, postgres.Classify(err, "order")
	}
	return o, nil
}

func lockAnyOrder(ctx context.Context, tx *sql.Tx, orderID string) (Order, error) {
	var o Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	if err := scanOrder(tx.QueryRowContext(ctx, query, orderID), &o); err != nil {
		return Order{}, postgres.Classify(err, "order")
	}
	return o, nil
}

// recompute reloads the items of o and persists its status and the derived total.
func recompute(ctx context.Context, tx *sql.Tx, o *Order) error {
	items, err := listItems(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	o.Items = items
	o.TotalAmount = Total(items)

	query := `
		UPDATE orders
		SET status = $1, total_amount = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err = tx.QueryRowContext(ctx, query, o.Status, o.TotalAmount, o.ID).Scan(&o.UpdatedAt)
	if err != nil {
		return postgres.Classify(err, "order")
	}
	return nil
}

func listItems(ctx context.Context, q querier, orderID string) ([]Item, error) {
	query := `
		SELECT id, order_id, product_id, quantity, price_at_time, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, postgres.Classify(err, "order items")
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.PriceAtTime, &it.CreatedAt); err != nil {
			return nil, postgres.Classify(err, "order items")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Classify(err, "order items")
	}
	return items, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return postgres.WithTx(ctx, c.db, fn)
}
