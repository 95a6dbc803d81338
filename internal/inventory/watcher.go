package inventory

import (
	"context"

	kafkax "github.com/ariefcatur/go-order-ledger/internal/kafka"
	"github.com/ariefcatur/go-order-ledger/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ReorderQueue is the replenishment backlog fed by stock events.
type ReorderQueue interface {
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
	Flag(ctx context.Context, productID string, quantity int) error
	Clear(ctx context.Context, productID string) error
	Forget(ctx context.Context, eventID string) error
}

// Watcher keeps the reorder queue in line with published stock levels.
type Watcher struct {
	Queue ReorderQueue
	Log   *zap.Logger
}

// HandleStockChanged is installed as the consumer handler for inventory.stock_changed.
func (w *Watcher) HandleStockChanged(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m, &env); err != nil {
		// poison message: log and commit past it
		w.log().Warn("bad stock envelope", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventStockChanged {
		return nil
	}

	first, err := w.Queue.FirstDelivery(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.StockChangedPayload](env.Payload)
	if err != nil {
		w.log().Warn("bad stock payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	if err := w.apply(ctx, p); err != nil {
		// let the redelivery through
		if ferr := w.Queue.Forget(ctx, env.EventID); ferr != nil {
			w.log().Warn("forget dedup key", zap.String("event_id", env.EventID), zap.Error(ferr))
		}
		return err
	}
	return nil
}

func (w *Watcher) apply(ctx context.Context, p orders.StockChangedPayload) error {
	switch p.Status {
	case orders.ProductLowStock, orders.ProductOutOfStock:
		if err := w.Queue.Flag(ctx, p.ProductID, p.Quantity); err != nil {
			return err
		}
		if p.PreviousStatus != p.Status {
			w.log().Info("product needs reorder",
				zap.String("product_id", p.ProductID),
				zap.String("status", string(p.Status)),
				zap.Int("quantity", p.Quantity),
				zap.String("order_id", p.OrderID))
		}
		return nil
	default:
		return w.Queue.Clear(ctx, p.ProductID)
	}
}

func (w *Watcher) log() *zap.Logger {
	if w.Log == nil {
		return zap.NewNop()
	}
	return w.Log
}
