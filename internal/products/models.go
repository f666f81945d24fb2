package products

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CategoryID    *string         `json:"category_id"`
	CategoryName  *string         `json:"category_name,omitempty"`
	ImageURL      string          `json:"image_url"`
	Weight        decimal.Decimal `json:"weight"`
	Dimensions    string          `json:"dimensions"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewProduct is used for both creation and full replacement of a product.
// SKU is ignored on update, the path decides which product changes.
type NewProduct struct {
	SKU           string          `json:"sku" validate:"required,max=100"`
	Name          string          `json:"name" validate:"required,max=255"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"min=0"`
	CategoryID    *string         `json:"category_id" validate:"omitempty,uuid"`
	ImageURL      string          `json:"image_url" validate:"omitempty,url"`
	Weight        decimal.Decimal `json:"weight"`
	Dimensions    string          `json:"dimensions"`
	IsActive      *bool           `json:"is_active"`
}
