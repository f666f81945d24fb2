package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents an order entity in the database
type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Status            Status          `json:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount"` // Always the sum of the items' quantity * price_at_time
	ShippingAddressID string          `json:"shipping_address_id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Items             []Item          `json:"items,omitempty"`
}

// Item is a line of an order. PriceAtTime is the product price captured when
// the line was added and is never re-read from the catalog.
type Item struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
	CreatedAt   time.Time       `json:"created_at"`
}

type NewOrder struct {
	ShippingAddressID string `json:"shipping_address_id" validate:"required,uuid"`
	Status            Status `json:"status"`
}

type NewItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

type UpdateOrder struct {
	Status Status `json:"status" validate:"required"`
}

// Customer is the owning user as shown in the detailed order view.
type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type Address struct {
	ID           string `json:"id"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// Info is an order joined with its owner and shipping address.
type Info struct {
	Order
	Customer        Customer `json:"user"`
	ShippingAddress Address  `json:"shipping_address"`
}

// RemoveResult tells the caller whether removing an item also removed the order.
type RemoveResult struct {
	Order        *Order `json:"order,omitempty"`
	OrderDeleted bool   `json:"order_deleted"`
}
