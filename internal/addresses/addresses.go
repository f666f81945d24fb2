package addresses

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

const selectAddresses = `
	SELECT id, user_id, address_line1, address_line2, city, state, postal_code, country, is_default, created_at
	FROM shipping_addresses
`

type scanner interface {
	Scan(dest ...any) error
}

func scanAddress(row scanner, a *Address) error {
	return row.Scan(&a.ID, &a.UserID, &a.AddressLine1, &a.AddressLine2, &a.City, &a.State,
		&a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt)
}

// CreateAddress stores a new address for the user. The user's first address
// becomes the default one.
func (c *Conf) CreateAddress(ctx context.Context, userID string, n NewAddress) (Address, error) {
	a := Address{
		UserID:       userID,
		AddressLine1: n.AddressLine1,
		AddressLine2: n.AddressLine2,
		City:         n.City,
		State:        n.State,
		PostalCode:   n.PostalCode,
		Country:      n.Country,
	}
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		// serialises concurrent first inserts for the same user
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
		if err != nil {
			return postgres.Classify(err, "user")
		}

		var count int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM shipping_addresses WHERE user_id = $1`, userID).Scan(&count)
		if err != nil {
			return postgres.Classify(err, "shipping address")
		}
		a.IsDefault = count == 0

		query := `
			INSERT INTO shipping_addresses (user_id, address_line1, address_line2, city, state, postal_code,
			                                country, is_default, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			RETURNING id, created_at
		`
		err = tx.QueryRowContext(ctx, query, userID, a.AddressLine1, a.AddressLine2, a.City, a.State,
			a.PostalCode, a.Country, a.IsDefault).Scan(&a.ID, &a.CreatedAt)
		return postgres.Classify(err, "shipping address")
	})
	if err != nil {
		return Address{}, err
	}
	return a, nil
}

func (c *Conf) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	var list []Address
	err := postgres.Read(ctx, func(ctx context.Context) error {
		list = []Address{}
		rows, err := c.db.QueryContext(ctx, selectAddresses+` WHERE user_id = $1 ORDER BY is_default DESC, created_at`, userID)
		if err != nil {
			return postgres.Classify(err, "shipping addresses")
		}
		defer rows.Close()

		for rows.Next() {
			var a Address
			if err := scanAddress(rows, &a); err != nil {
				return postgres.Classify(err, "shipping addresses")
			}
			list = append(list, a)
		}
		return postgres.Classify(rows.Err(), "shipping addresses")
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateAddress replaces the address fields. Marking it default clears the
// flag on the user's other addresses.
func (c *Conf) UpdateAddress(ctx context.Context, userID, addressID string, n NewAddress) (Address, error) {
	var a Address
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		err := scanAddress(tx.QueryRowContext(ctx,
			selectAddresses+` WHERE id = $1 AND user_id = $2 FOR UPDATE`, addressID, userID), &a)
		if err != nil {
			return postgres.Classify(err, "shipping address")
		}

		if n.IsDefault && !a.IsDefault {
			_, err = tx.ExecContext(ctx,
				`UPDATE shipping_addresses SET is_default = FALSE WHERE user_id = $1 AND id <> $2`, userID, addressID)
			if err != nil {
				return postgres.Classify(err, "shipping address")
			}
			a.IsDefault = true
		}

		a.AddressLine1 = n.AddressLine1
		a.AddressLine2 = n.AddressLine2
		a.City = n.City
		a.State = n.State
		a.PostalCode = n.PostalCode
		a.Country = n.Country

		query := `
			UPDATE shipping_addresses
			SET address_line1 = $1, address_line2 = $2, city = $3, state = $4, postal_code = $5,
			    country = $6, is_default = $7
			WHERE id = $8
		`
		_, err = tx.ExecContext(ctx, query, a.AddressLine1, a.AddressLine2, a.City, a.State, a.PostalCode,
			a.Country, a.IsDefault, a.ID)
		return postgres.Classify(err, "shipping address")
	})
	if err != nil {
		return Address{}, err
	}
	return a, nil
}

// DeleteAddress removes the address. Addresses still referenced by orders
// cannot be removed.
func (c *Conf) DeleteAddress(ctx context.Context, userID, addressID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM shipping_addresses WHERE id = $1 AND user_id = $2`, addressID, userID)
	if err != nil {
		err = postgres.Classify(err, "shipping address")
		if apperr.IsConflict(err) {
			return apperr.Conflict("shipping address is used by an order")
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return postgres.Classify(err, "shipping address")
	}
	if n == 0 {
		return apperr.NotFound("shipping address not found")
	}
	return nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return postgres.WithTx(ctx, c.db, fn)
}
