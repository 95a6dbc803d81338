package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ariefcatur/go-order-ledger/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	seen    map[string]bool
	flagged map[string]int
	failAdd error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{seen: map[string]bool{}, flagged: map[string]int{}}
}

func (q *fakeQueue) FirstDelivery(_ context.Context, id string) (bool, error) {
	if q.seen[id] {
		return false, nil
	}
	q.seen[id] = true
	return true, nil
}

func (q *fakeQueue) Flag(_ context.Context, id string, qty int) error {
	if q.failAdd != nil {
		return q.failAdd
	}
	q.flagged[id] = qty
	return nil
}

func (q *fakeQueue) Clear(_ context.Context, id string) error {
	delete(q.flagged, id)
	return nil
}

func (q *fakeQueue) Forget(_ context.Context, id string) error {
	delete(q.seen, id)
	return nil
}

func stockMsg(t *testing.T, lvl orders.StockLevel) kafkago.Message {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventStockChanged, "test", "o-1", "",
		orders.StockChangedPayload{StockLevel: lvl, OrderID: "o-1"})
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestWatcher_FlagsAndClears(t *testing.T) {
	q := newFakeQueue()
	w := &Watcher{Queue: q}
	ctx := context.Background()

	require.NoError(t, w.HandleStockChanged(ctx, stockMsg(t, orders.StockLevel{
		ProductID: "p1", Quantity: 2, ReorderLevel: 5,
		Status: orders.ProductLowStock, PreviousStatus: orders.ProductInStock,
	})))
	require.NoError(t, w.HandleStockChanged(ctx, stockMsg(t, orders.StockLevel{
		ProductID: "p2", Quantity: 0, ReorderLevel: 5,
		Status: orders.ProductOutOfStock, PreviousStatus: orders.ProductLowStock,
	})))
	assert.Equal(t, map[string]int{"p1": 2, "p2": 0}, q.flagged)

	require.NoError(t, w.HandleStockChanged(ctx, stockMsg(t, orders.StockLevel{
		ProductID: "p1", Quantity: 9, ReorderLevel: 5,
		Status: orders.ProductInStock, PreviousStatus: orders.ProductLowStock,
	})))
	assert.Equal(t, map[string]int{"p2": 0}, q.flagged)
}

func TestWatcher_DuplicateDeliveryIgnored(t *testing.T) {
	q := newFakeQueue()
	w := &Watcher{Queue: q}
	m := stockMsg(t, orders.StockLevel{ProductID: "p1", Quantity: 1, ReorderLevel: 5, Status: orders.ProductLowStock})

	require.NoError(t, w.HandleStockChanged(context.Background(), m))
	delete(q.flagged, "p1")
	require.NoError(t, w.HandleStockChanged(context.Background(), m))
	assert.Empty(t, q.flagged)
}

func TestWatcher_PoisonMessagesAreSkipped(t *testing.T) {
	w := &Watcher{Queue: newFakeQueue()}
	assert.NoError(t, w.HandleStockChanged(context.Background(), kafkago.Message{Value: []byte("{")}))

	env, err := orders.NewEnvelope(orders.EventOrderCreated, "test", "", "", map[string]string{})
	require.NoError(t, err)
	b, _ := json.Marshal(env)
	assert.NoError(t, w.HandleStockChanged(context.Background(), kafkago.Message{Value: b}))
}

func TestWatcher_QueueErrorIsRetried(t *testing.T) {
	q := newFakeQueue()
	q.failAdd = errors.New("redis down")
	w := &Watcher{Queue: q}
	m := stockMsg(t, orders.StockLevel{ProductID: "p1", Quantity: 0, Status: orders.ProductOutOfStock})

	assert.Error(t, w.HandleStockChanged(context.Background(), m))
	assert.Empty(t, q.seen)

	q.failAdd = nil
	require.NoError(t, w.HandleStockChanged(context.Background(), m))
	assert.Equal(t, map[string]int{"p1": 0}, q.flagged)
}
