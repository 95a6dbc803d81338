// Package memstore is an in-process orders.Store. Transactions are serialised
// by one mutex and applied to a private copy of the data that replaces the
// live copy only on commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-ledger/internal/audit"
	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

type Store struct {
	mu  sync.Mutex
	st  *state
	Now func() time.Time
}

type state struct {
	customers map[string]orders.Customer
	products  map[string]orders.Product
	orders    map[string]orders.Order
	items     map[string][]orders.OrderItem
	numbers   map[string]string
	audit     []audit.Entry
}

func New() *Store {
	return &Store{
		st: &state{
			customers: map[string]orders.Customer{},
			products:  map[string]orders.Product{},
			orders:    map[string]orders.Order{},
			items:     map[string][]orders.OrderItem{},
			numbers:   map[string]string{},
		},
		Now: time.Now,
	}
}

func (s *state) clone() *state {
	c := &state{
		customers: make(map[string]orders.Customer, len(s.customers)),
		products:  make(map[string]orders.Product, len(s.products)),
		orders:    make(map[string]orders.Order, len(s.orders)),
		items:     make(map[string][]orders.OrderItem, len(s.items)),
		numbers:   make(map[string]string, len(s.numbers)),
		audit:     append([]audit.Entry(nil), s.audit...),
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]orders.OrderItem(nil), v...)
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	return c
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transaction panic: %v", p)
		}
	}()

	if err := fn(ctx, &tx{st: work, now: s.Now}); err != nil {
		return err
	}
	// a cancelled caller never commits
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.OrderWithItems, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.st.orders[id]
	if !ok {
		return orders.OrderWithItems{}, orders.NewNotFound("order", id)
	}
	return orders.OrderWithItems{Order: o, Items: append([]orders.OrderItem{}, s.st.items[id]...)}, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]orders.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PutCustomer and PutProduct stand in for the external CRUD services.
func (s *Store) PutCustomer(c orders.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.customers[c.ID] = c
}

func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = orders.DeriveStatus(p.Status, p.Quantity, p.ReorderLevel)
	}
	s.st.products[p.ID] = p
}

func (s *Store) Product(id string) (orders.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

func (s *Store) AuditEntries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.st.audit...)
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

// ItemCount counts order item rows across all orders.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, its := range s.st.items {
		n += len(its)
	}
	return n
}
