package inventory

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

// fakeStock applies the same guard as the real stores and records call order.
type fakeStock struct {
	qty     map[string]int
	reorder map[string]int
	calls   []string
}

func newFakeStock(qty map[string]int) *fakeStock {
	return &fakeStock{qty: qty, reorder: map[string]int{}}
}

func (f *fakeStock) DecrementStock(_ context.Context, id string, n int) (orders.StockLevel, bool, error) {
	f.calls = append(f.calls, "dec:"+id)
	q, ok := f.qty[id]
	if !ok {
		return orders.StockLevel{}, false, orders.NewNotFound("product", id)
	}
	if q < n {
		return orders.StockLevel{ProductID: id, Quantity: q}, false, nil
	}
	f.qty[id] = q - n
	return f.level(id), true, nil
}

func (f *fakeStock) IncrementStock(_ context.Context, id string, n int) (orders.StockLevel, error) {
	f.calls = append(f.calls, "inc:"+id)
	if _, ok := f.qty[id]; !ok {
		return orders.StockLevel{}, orders.NewNotFound("product", id)
	}
	f.qty[id] += n
	return f.level(id), nil
}

func (f *fakeStock) level(id string) orders.StockLevel {
	q := f.qty[id]
	return orders.StockLevel{ProductID: id, Quantity: q, Status: orders.DeriveStatus("", q, f.reorder[id])}
}

func TestLedger_Reserve(t *testing.T) {
	stock := newFakeStock(map[string]int{"p": 10})
	stock.reorder["p"] = 2

	lvl, err := NewLedger().Reserve(context.Background(), stock, "p", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, lvl.Quantity)
	assert.Equal(t, orders.ProductInStock, lvl.Status)
}

func TestLedger_Reserve_Insufficient(t *testing.T) {
	stock := newFakeStock(map[string]int{"p": 7})

	_, err := NewLedger().Reserve(context.Background(), stock, "p", 8)
	var ise *orders.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "p", ise.ProductID)
	assert.Equal(t, 8, ise.Requested)
	assert.Equal(t, 7, ise.Available)
	assert.Equal(t, 7, stock.qty["p"])
}

func TestLedger_Reserve_InvalidQuantity(t *testing.T) {
	stock := newFakeStock(map[string]int{"p": 7})
	for _, q := range []int{0, -3} {
		_, err := NewLedger().Reserve(context.Background(), stock, "p", q)
		assert.Equal(t, orders.CodeValidation, orders.Code(err))
	}
	assert.Empty(t, stock.calls)
}

func TestLedger_Release_MissingProduct(t *testing.T) {
	stock := newFakeStock(map[string]int{})
	_, err := NewLedger().Release(context.Background(), stock, "gone", 1)
	assert.True(t, orders.IsNotFound(err, "product"))
}

func TestLedger_ReserveMany_SortedAndMerged(t *testing.T) {
	stock := newFakeStock(map[string]int{"a": 5, "b": 5, "c": 5})

	levels, err := NewLedger().ReserveMany(context.Background(), stock, []orders.ItemQty{
		{ProductID: "c", Qty: 1},
		{ProductID: "a", Qty: 2},
		{ProductID: "c", Qty: 3},
		{ProductID: "b", Qty: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dec:a", "dec:b", "dec:c"}, stock.calls)
	require.Len(t, levels, 3)
	assert.Equal(t, 1, stock.qty["c"])
	assert.Equal(t, 3, stock.qty["a"])
}

func TestLedger_ReserveMany_StopsAtFirstShortage(t *testing.T) {
	stock := newFakeStock(map[string]int{"a": 5, "b": 1, "c": 5})

	_, err := NewLedger().ReserveMany(context.Background(), stock, []orders.ItemQty{
		{ProductID: "a", Qty: 1},
		{ProductID: "b", Qty: 2},
		{ProductID: "c", Qty: 1},
	})
	assert.Equal(t, orders.CodeInsufficientStock, orders.Code(err))
	assert.Equal(t, []string{"dec:a", "dec:b"}, stock.calls)
}

func TestLedger_ReserveMany_ValidatesBeforeTouchingStock(t *testing.T) {
	stock := newFakeStock(map[string]int{"a": 5})
	_, err := NewLedger().ReserveMany(context.Background(), stock, []orders.ItemQty{
		{ProductID: "a", Qty: 1},
		{ProductID: "a", Qty: 0},
	})
	assert.Equal(t, orders.CodeValidation, orders.Code(err))
	assert.Empty(t, stock.calls)
}

func TestLedger_ReleaseMany(t *testing.T) {
	stock := newFakeStock(map[string]int{"a": 0, "b": 1})
	levels, err := NewLedger().ReleaseMany(context.Background(), stock, []orders.ItemQty{
		{ProductID: "b", Qty: 4},
		{ProductID: "a", Qty: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inc:a", "inc:b"}, stock.calls)
	assert.Equal(t, 2, levels[0].Quantity)
	assert.Equal(t, 5, levels[1].Quantity)
}

func TestLedger_ReserveMany_MergedQuantityCannotWrap(t *testing.T) {
	stock := newFakeStock(map[string]int{"p": 10})

	_, err := NewLedger().ReserveMany(context.Background(), stock, []orders.ItemQty{
		{ProductID: "p", Qty: math.MaxInt},
		{ProductID: "p", Qty: math.MaxInt},
		{ProductID: "p", Qty: 3},
	})
	assert.Equal(t, orders.CodeValidation, orders.Code(err))
	assert.Empty(t, stock.calls)
	assert.Equal(t, 10, stock.qty["p"])
}

func TestLedger_ReserveMany_MergedQuantityCapped(t *testing.T) {
	stock := newFakeStock(map[string]int{"p": 2 * orders.MaxLineQuantity})

	_, err := NewLedger().ReserveMany(context.Background(), stock, []orders.ItemQty{
		{ProductID: "p", Qty: orders.MaxLineQuantity},
		{ProductID: "p", Qty: 1},
	})
	assert.Equal(t, orders.CodeValidation, orders.Code(err))
	assert.Empty(t, stock.calls)
}
