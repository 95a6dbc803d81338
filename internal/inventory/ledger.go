// Package inventory owns every change to product quantities.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

// Ledger is the only code path that mutates Product.quantity. It holds no
// state: quantities live in the store and are read under the caller's tx.
type Ledger struct{}

func NewLedger() *Ledger { return &Ledger{} }

// Reserve takes qty units of a product or fails with InsufficientStockError.
func (l *Ledger) Reserve(ctx context.Context, stock orders.Stock, productID string, qty int) (orders.StockLevel, error) {
	if err := checkQty(productID, qty); err != nil {
		return orders.StockLevel{}, err
	}
	lvl, applied, err := stock.DecrementStock(ctx, productID, qty)
	if err != nil {
		return orders.StockLevel{}, err
	}
	if !applied {
		return lvl, &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: lvl.Quantity}
	}
	return lvl, nil
}

// Release returns qty units to a product.
func (l *Ledger) Release(ctx context.Context, stock orders.Stock, productID string, qty int) (orders.StockLevel, error) {
	if err := checkQty(productID, qty); err != nil {
		return orders.StockLevel{}, err
	}
	return stock.IncrementStock(ctx, productID, qty)
}

// ReserveMany reserves every line or none. Lines are merged per product and
// applied in ascending product id order so concurrent batches lock rows in the
// same sequence. A failure leaves earlier decrements to the enclosing
// transaction's rollback.
func (l *Ledger) ReserveMany(ctx context.Context, stock orders.Stock, items []orders.ItemQty) ([]orders.StockLevel, error) {
	lines, err := normalize(items)
	if err != nil {
		return nil, err
	}
	out := make([]orders.StockLevel, 0, len(lines))
	for _, it := range lines {
		lvl, err := l.Reserve(ctx, stock, it.ProductID, it.Qty)
		if err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, nil
}

func (l *Ledger) ReleaseMany(ctx context.Context, stock orders.Stock, items []orders.ItemQty) ([]orders.StockLevel, error) {
	lines, err := normalize(items)
	if err != nil {
		return nil, err
	}
	out := make([]orders.StockLevel, 0, len(lines))
	for _, it := range lines {
		lvl, err := l.Release(ctx, stock, it.ProductID, it.Qty)
		if err != nil {
			return nil, fmt.Errorf("release %s: %w", it.ProductID, err)
		}
		out = append(out, lvl)
	}
	return out, nil
}

func normalize(items []orders.ItemQty) ([]orders.ItemQty, error) {
	sum := make(map[string]int, len(items))
	for _, it := range items {
		if err := checkQty(it.ProductID, it.Qty); err != nil {
			return nil, err
		}
		merged := sum[it.ProductID] + it.Qty
		if merged > orders.MaxLineQuantity {
			return nil, &orders.ValidationError{
				Field:   "quantity",
				Message: fmt.Sprintf("total for product %s exceeds %d", it.ProductID, orders.MaxLineQuantity),
			}
		}
		sum[it.ProductID] = merged
	}
	out := make([]orders.ItemQty, 0, len(sum))
	for id, qty := range sum {
		out = append(out, orders.ItemQty{ProductID: id, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func checkQty(productID string, qty int) error {
	if productID == "" {
		return &orders.ValidationError{Field: "productId", Message: "is required"}
	}
	if qty <= 0 {
		return &orders.ValidationError{Field: "quantity", Message: fmt.Sprintf("must be positive for product %s", productID)}
	}
	if qty > orders.MaxLineQuantity {
		return &orders.ValidationError{Field: "quantity", Message: fmt.Sprintf("must be at most %d for product %s", orders.MaxLineQuantity, productID)}
	}
	return nil
}
