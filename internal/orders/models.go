package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductInStock      ProductStatus = "in_stock"
	ProductLowStock     ProductStatus = "low_stock"
	ProductOutOfStock   ProductStatus = "out_of_stock"
	ProductDiscontinued ProductStatus = "discontinued"
)

// DeriveStatus computes the stock status for a quantity. Discontinued is sticky.
func DeriveStatus(current ProductStatus, quantity, reorderLevel int) ProductStatus {
	switch {
	case current == ProductDiscontinued:
		return ProductDiscontinued
	case quantity == 0:
		return ProductOutOfStock
	case quantity <= reorderLevel:
		return ProductLowStock
	default:
		return ProductInStock
	}
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	UnitCost     decimal.Decimal `json:"unitCost"`
	Quantity     int             `json:"quantity"`
	ReorderLevel int             `json:"reorderLevel"`
	Status       ProductStatus   `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Order struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	CustomerID  string          `json:"customerId"`
	Status      Status          `json:"status"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Shipping    decimal.Decimal `json:"shipping"`
	Total       decimal.Decimal `json:"total"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type OrderItem struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
	ProductID    string          `json:"productId"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	LineSubtotal decimal.Decimal `json:"lineSubtotal"`
}

// OrderWithItems is the read model served by GET /orders/{id}.
type OrderWithItems struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

// Column limits: order_items.quantity is INT and money columns are NUMERIC(12,2).
const MaxLineQuantity = 1_000_000

var MaxAmount = decimal.RequireFromString("9999999999.99")

// ItemInput is a requested line: catalog price is applied server side.
type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// StockLevel is a product's stock right after a ledger mutation.
type StockLevel struct {
	ProductID      string        `json:"product_id"`
	Quantity       int           `json:"quantity"`
	ReorderLevel   int           `json:"reorder_level"`
	Status         ProductStatus `json:"status"`
	PreviousStatus ProductStatus `json:"previous_status"`
}
