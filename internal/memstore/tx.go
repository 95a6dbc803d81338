package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/go-order-ledger/internal/audit"
	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) FindCustomer(_ context.Context, id string) (orders.Customer, error) {
	c, ok := t.st.customers[id]
	if !ok {
		return orders.Customer{}, orders.NewNotFound("customer", id)
	}
	return c, nil
}

func (t *tx) FindProduct(_ context.Context, id string) (orders.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return orders.Product{}, orders.NewNotFound("product", id)
	}
	return p, nil
}

func (t *tx) DecrementStock(_ context.Context, productID string, qty int) (orders.StockLevel, bool, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return orders.StockLevel{}, false, orders.NewNotFound("product", productID)
	}
	if p.Quantity < qty {
		return level(p, p.Status), false, nil
	}
	return t.applyDelta(p, -qty), true, nil
}

func (t *tx) IncrementStock(_ context.Context, productID string, qty int) (orders.StockLevel, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return orders.StockLevel{}, orders.NewNotFound("product", productID)
	}
	return t.applyDelta(p, qty), nil
}

func (t *tx) applyDelta(p orders.Product, delta int) orders.StockLevel {
	prev := p.Status
	p.Quantity += delta
	p.Status = orders.DeriveStatus(p.Status, p.Quantity, p.ReorderLevel)
	p.UpdatedAt = t.now().UTC()
	t.st.products[p.ID] = p
	return level(p, prev)
}

func level(p orders.Product, prev orders.ProductStatus) orders.StockLevel {
	return orders.StockLevel{
		ProductID:      p.ID,
		Quantity:       p.Quantity,
		ReorderLevel:   p.ReorderLevel,
		Status:         p.Status,
		PreviousStatus: prev,
	}
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	if _, taken := t.st.numbers[o.OrderNumber]; taken {
		return orders.ErrOrderNumberTaken
	}
	t.st.orders[o.ID] = o
	t.st.numbers[o.OrderNumber] = o.ID
	return nil
}

func (t *tx) InsertOrderItems(_ context.Context, items []orders.OrderItem) error {
	for _, it := range items {
		if _, ok := t.st.orders[it.OrderID]; !ok {
			return orders.NewNotFound("order", it.OrderID)
		}
		t.st.items[it.OrderID] = append(t.st.items[it.OrderID], it)
	}
	return nil
}

func (t *tx) LockOrder(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, orders.NewNotFound("order", id)
	}
	return o, nil
}

func (t *tx) ListOrderItems(_ context.Context, orderID string) ([]orders.OrderItem, error) {
	return append([]orders.OrderItem{}, t.st.items[orderID]...), nil
}

func (t *tx) UpdateOrderStatus(_ context.Context, id string, status orders.Status, notes *string, at time.Time) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, orders.NewNotFound("order", id)
	}
	o.Status = status
	if notes != nil {
		o.Notes = *notes
	}
	o.UpdatedAt = at
	t.st.orders[id] = o
	return o, nil
}

func (t *tx) DeleteOrder(_ context.Context, id string) error {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.NewNotFound("order", id)
	}
	delete(t.st.items, id)
	delete(t.st.orders, id)
	delete(t.st.numbers, o.OrderNumber)
	return nil
}

func (t *tx) InsertAuditEntry(_ context.Context, e audit.Entry) error {
	t.st.audit = append(t.st.audit, e)
	return nil
}
