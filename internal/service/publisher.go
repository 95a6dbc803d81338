package service

import (
	"context"
	"encoding/json"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

// Publisher is satisfied by kafka.Producer. Events go out after commit and
// are best effort: a lost event never changes the outcome of the operation.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

func (s *OrderService) emit(ctx context.Context, topic, key, eventType, correlationID string, payload any) {
	if s.Publisher == nil {
		return
	}
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	env, err := orders.NewEnvelope(eventType, s.ServiceName, correlationID, traceID, payload)
	if err != nil {
		s.log().Error("build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		s.log().Error("encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	s.Publisher.Publish(topic, orders.PartitionKey(key), b,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}

func (s *OrderService) emitStock(ctx context.Context, orderID string, levels []orders.StockLevel) {
	for _, lvl := range levels {
		s.emit(ctx, orders.TopicStockChanged, lvl.ProductID, orders.EventStockChanged, orderID,
			orders.StockChangedPayload{StockLevel: lvl, OrderID: orderID})
	}
}
