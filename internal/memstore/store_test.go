package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-ledger/internal/audit"
	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

func newStore() *Store {
	s := New()
	s.PutProduct(orders.Product{ID: "p1", Name: "Widget", UnitPrice: decimal.NewFromInt(5), Quantity: 10, ReorderLevel: 2})
	return s
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	s := newStore()
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		lvl, applied, err := tx.DecrementStock(ctx, "p1", 8)
		require.True(t, applied)
		assert.Equal(t, 2, lvl.Quantity)
		assert.Equal(t, orders.ProductLowStock, lvl.Status)
		assert.Equal(t, orders.ProductInStock, lvl.PreviousStatus)
		return err
	})
	require.NoError(t, err)

	p, _ := s.Product("p1")
	assert.Equal(t, 2, p.Quantity)
	assert.Equal(t, orders.ProductLowStock, p.Status)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	s := newStore()
	boom := errors.New("boom")
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		_, _, _ = tx.DecrementStock(ctx, "p1", 4)
		_ = tx.InsertAuditEntry(ctx, audit.Entry{ID: "a1"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, _ := s.Product("p1")
	assert.Equal(t, 10, p.Quantity)
	assert.Empty(t, s.AuditEntries())
}

func TestInTx_RollsBackOnPanic(t *testing.T) {
	s := newStore()
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		_, _, _ = tx.DecrementStock(ctx, "p1", 4)
		panic("unexpected")
	})
	require.Error(t, err)
	p, _ := s.Product("p1")
	assert.Equal(t, 10, p.Quantity)
}

func TestInTx_CancelledContextNeverCommits(t *testing.T) {
	s := newStore()
	ctx, cancel := context.WithCancel(context.Background())
	err := s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		_, _, _ = tx.DecrementStock(ctx, "p1", 4)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	p, _ := s.Product("p1")
	assert.Equal(t, 10, p.Quantity)
}

func TestDecrementStock_Guard(t *testing.T) {
	s := newStore()
	_ = s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		lvl, applied, err := tx.DecrementStock(ctx, "p1", 11)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, 10, lvl.Quantity)

		_, _, err = tx.DecrementStock(ctx, "nope", 1)
		assert.True(t, orders.IsNotFound(err, "product"))
		return nil
	})
}

func TestInsertOrder_UniqueNumber(t *testing.T) {
	s := newStore()
	now := time.Now()
	err := s.InTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		require.NoError(t, tx.InsertOrder(ctx, orders.Order{ID: "o1", OrderNumber: "ORD-1", CreatedAt: now}))
		assert.ErrorIs(t, tx.InsertOrder(ctx, orders.Order{ID: "o2", OrderNumber: "ORD-1"}), orders.ErrOrderNumberTaken)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.OrderCount())
}

func TestDeleteOrder_RemovesItems(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := tx.InsertOrder(ctx, orders.Order{ID: "o1", OrderNumber: "ORD-1"}); err != nil {
			return err
		}
		return tx.InsertOrderItems(ctx, []orders.OrderItem{{ID: "i1", OrderID: "o1", ProductID: "p1", Quantity: 1}})
	}))
	assert.Equal(t, 1, s.ItemCount())

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.DeleteOrder(ctx, "o1")
	}))
	assert.Equal(t, 0, s.ItemCount())
	_, err := s.GetOrder(ctx, "o1")
	assert.True(t, orders.IsNotFound(err, "order"))
}
