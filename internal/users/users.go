package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/auth"
	"github.com/Zack-y11/e-commerce/internal/stores/postgres"

	"golang.org/x/crypto/bcrypt"
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

const userColumns = `id, email, password_hash, first_name, last_name, phone, role, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, u *User) error {
	return row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt)
}

func (c *Conf) InsertUser(ctx context.Context, nu NewUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, phone, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + userColumns
	var u User
	err = scanUser(c.db.QueryRowContext(ctx, query, strings.ToLower(nu.Email), string(hash),
		nu.FirstName, nu.LastName, nu.Phone, auth.RoleUser), &u)
	if err != nil {
		err = postgres.Classify(err, "user")
		if apperr.IsConflict(err) {
			return User{}, apperr.Conflict("email already exists")
		}
		return User{}, err
	}
	return u, nil
}

// Authenticate checks the password of the user owning email. Unknown emails
// and wrong passwords fail the same way.
func (c *Conf) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	var u User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	err := scanUser(c.db.QueryRowContext(ctx, query, strings.ToLower(creds.Email)), &u)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return User{}, postgres.Classify(err, "user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)); err != nil {
		return User{}, apperr.Unauthorized("invalid email or password")
	}
	return u, nil
}

func (c *Conf) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := postgres.Read(ctx, func(ctx context.Context) error {
		err := scanUser(c.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), &u)
		return postgres.Classify(err, "user")
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (c *Conf) UpdateUser(ctx context.Context, id string, uu UpdateUser) (User, error) {
	var u User
	err := postgres.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id), &u)
		if err != nil {
			return postgres.Classify(err, "user")
		}

		if uu.Email != nil {
			u.Email = strings.ToLower(*uu.Email)
		}
		if uu.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*uu.Password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			u.PasswordHash = string(hash)
		}
		if uu.FirstName != nil {
			u.FirstName = *uu.FirstName
		}
		if uu.LastName != nil {
			u.LastName = *uu.LastName
		}
		if uu.Phone != nil {
			u.Phone = *uu.Phone
		}

		query := `
			UPDATE users
			SET email = $1, password_hash = $2, first_name = $3, last_name = $4, phone = $5, updated_at = NOW()
			WHERE id = $6
			RETURNING updated_at
		`
		err = tx.QueryRowContext(ctx, query, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, id).
			Scan(&u.UpdatedAt)
		if err != nil {
			err = postgres.Classify(err, "user")
			if apperr.IsConflict(err) {
				return apperr.Conflict("email already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (c *Conf) DeleteUser(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return postgres.Classify(err, "user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return postgres.Classify(err, "user")
	}
	if n == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}
