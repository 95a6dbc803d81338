package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-order-ledger/internal/audit"
)

// CustomerDirectory and ProductCatalog are read-only lookups owned elsewhere.
type CustomerDirectory interface {
	FindCustomer(ctx context.Context, id string) (Customer, error)
}

type ProductCatalog interface {
	FindProduct(ctx context.Context, id string) (Product, error)
}

// Stock is the row-level primitive behind the inventory ledger. Both methods
// recompute and persist the derived product status in the same statement.
type Stock interface {
	// DecrementStock subtracts qty only while quantity >= qty. When the guard
	// fails applied is false and lvl holds the unchanged row.
	DecrementStock(ctx context.Context, productID string, qty int) (lvl StockLevel, applied bool, err error)
	IncrementStock(ctx context.Context, productID string, qty int) (StockLevel, error)
}

type OrderRepo interface {
	// InsertOrder returns ErrOrderNumberTaken when the order number collides.
	InsertOrder(ctx context.Context, o Order) error
	InsertOrderItems(ctx context.Context, items []OrderItem) error
	// LockOrder reads the order holding its row lock until the transaction ends.
	LockOrder(ctx context.Context, id string) (Order, error)
	ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	UpdateOrderStatus(ctx context.Context, id string, status Status, notes *string, at time.Time) (Order, error)
	// DeleteOrder removes the order's items and then the order.
	DeleteOrder(ctx context.Context, id string) error
}

// Tx is everything one order operation may touch inside a single transaction.
type Tx interface {
	CustomerDirectory
	ProductCatalog
	Stock
	OrderRepo
	audit.Writer
}

type Store interface {
	// InTx commits when fn returns nil and rolls back on error, panic or ctx cancellation.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetOrder(ctx context.Context, id string) (OrderWithItems, error)
	ListProducts(ctx context.Context) ([]Product, error)
}
