package categories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/stores/postgres"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewCategory struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

func (c *Conf) InsertCategory(ctx context.Context, nc NewCategory) (Category, error) {
	cat := Category{Name: nc.Name, Description: nc.Description}
	err := c.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, description, created_at) VALUES ($1, $2, NOW()) RETURNING id, created_at`,
		nc.Name, nc.Description).Scan(&cat.ID, &cat.CreatedAt)
	if err != nil {
		return Category{}, postgres.Classify(err, "category")
	}
	return cat, nil
}

func (c *Conf) UpdateCategory(ctx context.Context, id string, nc NewCategory) (Category, error) {
	cat := Category{ID: id, Name: nc.Name, Description: nc.Description}
	err := c.db.QueryRowContext(ctx,
		`UPDATE categories SET name = $1, description = $2 WHERE id = $3 RETURNING created_at`,
		nc.Name, nc.Description, id).Scan(&cat.CreatedAt)
	if err != nil {
		return Category{}, postgres.Classify(err, "category")
	}
	return cat, nil
}

func (c *Conf) DeleteCategory(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return postgres.Classify(err, "category")
	}
	if n, err := res.RowsAffected(); err != nil {
		return postgres.Classify(err, "category")
	} else if n == 0 {
		return apperr.NotFound("category not found")
	}
	return nil
}

func (c *Conf) GetCategory(ctx context.Context, id string) (Category, error) {
	var cat Category
	err := postgres.Read(ctx, func(ctx context.Context) error {
		err := c.db.QueryRowContext(ctx,
			`SELECT id, name, description, created_at FROM categories WHERE id = $1`, id).
			Scan(&cat.ID, &cat.Name, &cat.Description, &cat.CreatedAt)
		return postgres.Classify(err, "category")
	})
	if err != nil {
		return Category{}, err
	}
	return cat, nil
}

func (c *Conf) ListCategories(ctx context.Context) ([]Category, error) {
	var list []Category
	err := postgres.Read(ctx, func(ctx context.Context) error {
		list = []Category{}
		rows, err := c.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
		if err != nil {
			return postgres.Classify(err, "categories")
		}
		defer rows.Close()

		for rows.Next() {
			var cat Category
			if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.CreatedAt); err != nil {
				return postgres.Classify(err, "categories")
			}
			list = append(list, cat)
		}
		return postgres.Classify(rows.Err(), "categories")
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}
