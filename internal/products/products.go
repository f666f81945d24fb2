package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Zack-y11/e-commerce/internal/apperr"
	"github.com/Zack-y11/e-commerce/internal/stores/postgres"
	"github.com/Zack-y11/e-commerce/pkg/logkey"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache holds products by SKU. Failures are logged and never fail a request.
type Cache interface {
	Get(ctx context.Context, sku string) (*Product, error)
	Set(ctx context.Context, p *Product) error
	Delete(ctx context.Context, sku string) error
}

type Conf struct {
	db    *sql.DB
	cache Cache
}

// NewConf builds the product store. cache may be nil.
func NewConf(db *sql.DB, cache Cache) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db, cache: cache}, nil
}

const selectProducts = `
	SELECT p.id, p.sku, p.name, p.description, p.price, p.stock_quantity, p.category_id, c.name,
	       p.image_url, p.weight, p.dimensions, p.is_active, p.created_at, p.updated_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner, p *Product) error {
	return row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.StockQuantity, &p.CategoryID,
		&p.CategoryName, &p.ImageURL, &p.Weight, &p.Dimensions, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

func (np NewProduct) validate() error {
	if !np.Price.IsPositive() {
		return apperr.InvalidInput("price must be greater than zero")
	}
	if np.Weight.IsNegative() {
		return apperr.InvalidInput("weight cannot be negative")
	}
	return nil
}

func (np NewProduct) active() bool {
	return np.IsActive == nil || *np.IsActive
}

func (c *Conf) InsertProduct(ctx context.Context, np NewProduct) (Product, error) {
	if err := np.validate(); err != nil {
		return Product{}, err
	}

	query := `
		INSERT INTO products (sku, name, description, price, stock_quantity, category_id, image_url,
		                      weight, dimensions, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	p := Product{
		SKU:           np.SKU,
		Name:          np.Name,
		Description:   np.Description,
		Price:         np.Price,
		StockQuantity: np.StockQuantity,
		CategoryID:    np.CategoryID,
		ImageURL:      np.ImageURL,
		Weight:        np.Weight,
		Dimensions:    np.Dimensions,
		IsActive:      np.active(),
	}
	err := c.db.QueryRowContext(ctx, query, p.SKU, p.Name, p.Description, p.Price, p.StockQuantity,
		p.CategoryID, p.ImageURL, p.Weight, p.Dimensions, p.IsActive).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		err = postgres.Classify(err, "product")
		if apperr.IsConflict(err) {
			return Product{}, apperr.Conflict("product with the same SKU already exists")
		}
		return Product{}, err
	}
	return p, nil
}

func (c *Conf) UpdateProduct(ctx context.Context, sku string, np NewProduct) (Product, error) {
	if err := np.validate(); err != nil {
		return Product{}, err
	}

	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock_quantity = $4, category_id = $5,
		    image_url = $6, weight = $7, dimensions = $8, is_active = $9, updated_at = NOW()
		WHERE sku = $10
		RETURNING id
	`
	var id string
	err := c.db.QueryRowContext(ctx, query, np.Name, np.Description, np.Price, np.StockQuantity, np.CategoryID,
		np.ImageURL, np.Weight, np.Dimensions, np.active(), sku).Scan(&id)
	if err != nil {
		return Product{}, postgres.Classify(err, "product")
	}
	c.evict(ctx, sku)

	return c.load(ctx, sku)
}

func (c *Conf) DeleteProduct(ctx context.Context, sku string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM products WHERE sku = $1`, sku)
	if err != nil {
		return postgres.Classify(err, "product")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return postgres.Classify(err, "product")
	}
	if n == 0 {
		return apperr.NotFound("product not found")
	}
	c.evict(ctx, sku)
	return nil
}

// GetProductBySKU reads through the cache.
func (c *Conf) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	if c.cache != nil {
		p, err := c.cache.Get(ctx, sku)
		if err == nil {
			return *p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			slog.Warn("product cache read failed", slog.String(logkey.ProductID, sku), slog.String(logkey.ERROR, err.Error()))
		}
	}

	p, err := c.load(ctx, sku)
	if err != nil {
		return Product{}, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, &p); err != nil {
			slog.Warn("product cache write failed", slog.String(logkey.ProductID, sku), slog.String(logkey.ERROR, err.Error()))
		}
	}
	return p, nil
}

func (c *Conf) ListProducts(ctx context.Context) ([]Product, error) {
	return c.list(ctx, selectProducts+` ORDER BY p.created_at DESC`)
}

func (c *Conf) ListProductsByCategory(ctx context.Context, categoryID string) ([]Product, error) {
	return c.list(ctx, selectProducts+` WHERE p.category_id = $1 ORDER BY p.created_at DESC`, categoryID)
}

func (c *Conf) load(ctx context.Context, sku string) (Product, error) {
	var p Product
	err := postgres.Read(ctx, func(ctx context.Context) error {
		err := scanProduct(c.db.QueryRowContext(ctx, selectProducts+` WHERE p.sku = $1`, sku), &p)
		return postgres.Classify(err, "product")
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (c *Conf) list(ctx context.Context, query string, args ...any) ([]Product, error) {
	var list []Product
	err := postgres.Read(ctx, func(ctx context.Context) error {
		list = []Product{}
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return postgres.Classify(err, "products")
		}
		defer rows.Close()

		for rows.Next() {
			var p Product
			if err := scanProduct(rows, &p); err != nil {
				return postgres.Classify(err, "products")
			}
			list = append(list, p)
		}
		return postgres.Classify(rows.Err(), "products")
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Conf) evict(ctx context.Context, sku string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, sku); err != nil {
		slog.Warn("product cache eviction failed", slog.String(logkey.ProductID, sku), slog.String(logkey.ERROR, err.Error()))
	}
}
