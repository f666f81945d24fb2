package carts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/stores/postgres"
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

func (c *Conf) CreateCart(ctx context.Context, userID string) (Cart, error) {
	cart := Cart{UserID: userID}
	query := `
		INSERT INTO shopping_carts (user_id, created_at)
		VALUES ($1, NOW())
		RETURNING id, created_at
	`
	err := c.db.QueryRowContext(ctx, query, userID).Scan(&cart.ID, &cart.CreatedAt)
	if err != nil {
		err = postgres.Classify(err, "cart")
		// user_id foreign key
		if apperr.IsConflict(err) {
			return Cart{}, apperr.NotFound("user not found")
		}
		return Cart{}, err
	}
	return cart, nil
}

func (c *Conf) ListCarts(ctx context.Context, userID string) ([]Cart, error) {
	var list []Cart
	err := postgres.Read(ctx, func(ctx context.Context) error {
		list = []Cart{}
		rows, err := c.db.QueryContext(ctx,
			`SELECT id, user_id, created_at FROM shopping_carts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
		if err != nil {
			return postgres.Classify(err, "carts")
		}
		defer rows.Close()

		for rows.Next() {
			var cart Cart
			if err := rows.Scan(&cart.ID, &cart.UserID, &cart.CreatedAt); err != nil {
				return postgres.Classify(err, "carts")
			}
			list = append(list, cart)
		}
		return postgres.Classify(rows.Err(), "carts")
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetCart returns the caller's cart together with its items.
func (c *Conf) GetCart(ctx context.Context, userID, cartID string) (Cart, error) {
	var cart Cart
	err := postgres.Read(ctx, func(ctx context.Context) error {
		err := c.db.QueryRowContext(ctx,
			`SELECT id, user_id, created_at FROM shopping_carts WHERE id = $1 AND user_id = $2`,
			cartID, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
		if err != nil {
			return postgres.Classify(err, "cart")
		}

		cart.Items = []CartItem{}
		rows, err := c.db.QueryContext(ctx, `
			SELECT id, cart_id, product_id, quantity, created_at
			FROM cart_items
			WHERE cart_id = $1
			ORDER BY created_at`, cartID)
		if err != nil {
			return postgres.Classify(err, "cart items")
		}
		defer rows.Close()

		for rows.Next() {
			var item CartItem
			if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt); err != nil {
				return postgres.Classify(err, "cart items")
			}
			cart.Items = append(cart.Items, item)
		}
		return postgres.Classify(rows.Err(), "cart items")
	})
	if err != nil {
		return Cart{}, err
	}
	return cart, nil
}

func (c *Conf) DeleteCart(ctx context.Context, userID, cartID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM shopping_carts WHERE id = $1 AND user_id = $2`, cartID, userID)
	if err != nil {
		return postgres.Classify(err, "cart")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return postgres.Classify(err, "cart")
	}
	if n == 0 {
		return apperr.NotFound("cart not found")
	}
	return nil
}

// AddItem puts a product into the caller's cart. A product can only be in a
// cart once and the requested quantity must be in stock.
func (c *Conf) AddItem(ctx context.Context, userID, cartID string, n NewCartItem) (CartItem, error) {
	if n.Quantity <= 0 {
		return CartItem{}, apperr.InvalidInput("quantity must be greater than zero")
	}

	item := CartItem{CartID: cartID, ProductID: n.ProductID, Quantity: n.Quantity}
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM shopping_carts WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			cartID, userID).Scan(&id)
		if err != nil {
			return postgres.Classify(err, "cart")
		}

		var stock int
		err = tx.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, n.ProductID).Scan(&stock)
		if err != nil {
			return postgres.Classify(err, "product")
		}
		if n.Quantity > stock {
			return apperr.Conflict(fmt.Sprintf("insufficient stock: requested %d, available %d", n.Quantity, stock))
		}

		query := `
			INSERT INTO cart_items (cart_id, product_id, quantity, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (cart_id, product_id) DO NOTHING
			RETURNING id, created_at
		`
		err = tx.QueryRowContext(ctx, query, cartID, n.ProductID, n.Quantity).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			err = postgres.Classify(err, "cart item")
			if apperr.IsNotFound(err) {
				return apperr.Conflict("product already in cart")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return CartItem{}, err
	}
	return item, nil
}

func (c *Conf) RemoveItem(ctx context.Context, userID, cartID, productID string) error {
	query := `
		DELETE FROM cart_items ci
		USING shopping_carts sc
		WHERE ci.cart_id = sc.id AND sc.id = $1 AND sc.user_id = $2 AND ci.product_id = $3
	`
	res, err := c.db.ExecContext(ctx, query, cartID, userID, productID)
	if err != nil {
		return postgres.Classify(err, "cart item")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return postgres.Classify(err, "cart item")
	}
	if n == 0 {
		return apperr.NotFound("product not found in cart")
	}
	return nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return postgres.WithTx(ctx, c.db, fn)
}
