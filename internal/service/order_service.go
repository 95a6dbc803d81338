package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-ledger/internal/audit"
	"github.com/ariefcatur/go-order-ledger/internal/inventory"
	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

const (
	entityOrder = "order"
	maxItems    = 100
	maxNotes    = 2000
)

var tracer = otel.Tracer("github.com/ariefcatur/go-order-ledger/internal/service")

type Pricing struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
	// FreeShippingOver waives shipping when positive and subtotal reaches it.
	FreeShippingOver decimal.Decimal
}

// OrderService runs order creation, status changes and deletion. Every
// operation is one Store transaction covering stock, order rows and audit.
type OrderService struct {
	Store     orders.Store
	Ledger    *inventory.Ledger
	Audit     *audit.Recorder
	Publisher Publisher
	Log       *zap.Logger
	Pricing   Pricing

	ServiceName         string
	TxTimeout           time.Duration
	OrderNumberAttempts int
	NewOrderNumber      func(time.Time) string
	Now                 func() time.Time
}

type CreateOrderInput struct {
	CustomerID string
	Items      []orders.ItemInput
	Notes      string
	// ClientTotal is whatever total the caller displayed. It is compared and
	// logged, never persisted.
	ClientTotal *decimal.Decimal
}

type UpdateStatusInput struct {
	Status string
	Notes  *string
}

// NewOrderNumber formats ORD-YYYYMMDD-XXXXXXXX with a random suffix.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + now.UTC().Format("20060102") + "-" + suffix
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (orders.OrderWithItems, error) {
	if err := validateCreate(in); err != nil {
		return orders.OrderWithItems{}, err
	}

	ctx, cancel := s.txContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("customer.id", in.CustomerID),
		attribute.Int("order.item_count", len(in.Items)),
	))
	defer span.End()

	var (
		created orders.OrderWithItems
		levels  []orders.StockLevel
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if _, err := tx.FindCustomer(ctx, in.CustomerID); err != nil {
			return err
		}

		catalog := make(map[string]orders.Product, len(in.Items))
		for i, it := range in.Items {
			if _, seen := catalog[it.ProductID]; seen {
				continue
			}
			p, err := tx.FindProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if p.Status == orders.ProductDiscontinued {
				return &orders.ValidationError{
					Field:   fmt.Sprintf("items[%d].productId", i),
					Message: "product " + p.ID + " is discontinued",
				}
			}
			catalog[it.ProductID] = p
		}

		now := s.now()
		order := orders.Order{
			ID:         uuid.NewString(),
			CustomerID: in.CustomerID,
			Status:     orders.StatusPending,
			Notes:      in.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		items := make([]orders.OrderItem, 0, len(in.Items))
		reserve := make([]orders.ItemQty, 0, len(in.Items))
		for _, it := range in.Items {
			price := catalog[it.ProductID].UnitPrice
			items = append(items, orders.OrderItem{
				ID:           uuid.NewString(),
				OrderID:      order.ID,
				ProductID:    it.ProductID,
				Quantity:     it.Quantity,
				UnitPrice:    price,
				LineSubtotal: price.Mul(decimal.NewFromInt(int64(it.Quantity))),
			})
			reserve = append(reserve, orders.ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
		}
		order.Subtotal, order.Tax, order.Shipping, order.Total = s.Pricing.Totals(items)
		if order.Total.GreaterThan(orders.MaxAmount) {
			return &orders.ValidationError{Field: "items", Message: "order total exceeds " + orders.MaxAmount.StringFixed(2)}
		}

		var err error
		if levels, err = s.Ledger.ReserveMany(ctx, tx, reserve); err != nil {
			return err
		}
		if err = s.insertWithNumber(ctx, tx, &order); err != nil {
			return err
		}
		if err = tx.InsertOrderItems(ctx, items); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		created = orders.OrderWithItems{Order: order, Items: items}
		_, err = s.Audit.Record(ctx, tx, audit.ActionCreate, entityOrder, order.ID, created)
		return err
	})
	if err != nil {
		endSpan(span, err)
		return orders.OrderWithItems{}, err
	}

	span.SetAttributes(attribute.String("order.id", created.Order.ID))
	if in.ClientTotal != nil && !in.ClientTotal.Equal(created.Order.Total) {
		s.log().Warn("client total differs from computed total",
			zap.String("order_id", created.Order.ID),
			zap.String("client_total", in.ClientTotal.String()),
			zap.String("total", created.Order.Total.String()))
	}
	s.log().Info("order created",
		zap.String("order_id", created.Order.ID),
		zap.String("order_number", created.Order.OrderNumber),
		zap.String("total", created.Order.Total.String()))

	qtys := make([]orders.ItemQty, 0, len(created.Items))
	for _, it := range created.Items {
		qtys = append(qtys, orders.ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	s.emit(ctx, orders.TopicOrderCreated, created.Order.ID, orders.EventOrderCreated, created.Order.ID,
		orders.OrderCreatedPayload{
			OrderID:     created.Order.ID,
			OrderNumber: created.Order.OrderNumber,
			CustomerID:  created.Order.CustomerID,
			Items:       qtys,
			Total:       created.Order.Total.StringFixed(2),
		})
	s.emitStock(ctx, created.Order.ID, levels)
	return created, nil
}

func (s *OrderService) insertWithNumber(ctx context.Context, tx orders.Tx, o *orders.Order) error {
	attempts := s.OrderNumberAttempts
	if attempts <= 0 {
		attempts = 5
	}
	gen := s.NewOrderNumber
	if gen == nil {
		gen = NewOrderNumber
	}
	for i := 0; i < attempts; i++ {
		o.OrderNumber = gen(o.CreatedAt)
		err := tx.InsertOrder(ctx, *o)
		if errors.Is(err, orders.ErrOrderNumberTaken) {
			s.log().Debug("order number collision", zap.String("order_number", o.OrderNumber))
			continue
		}
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	}
	return fmt.Errorf("allocate order number after %d attempts: %w", attempts, orders.ErrOrderNumberTaken)
}

// UpdateStatus moves an order through the state machine. Cancelling an
// already cancelled order is a no-op: no release, no audit entry.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, in UpdateStatusInput) (orders.Order, error) {
	to, err := orders.ParseStatus(in.Status)
	if err != nil {
		return orders.Order{}, err
	}
	if in.Notes != nil && len(*in.Notes) > maxNotes {
		return orders.Order{}, &orders.ValidationError{Field: "notes", Message: fmt.Sprintf("must be at most %d characters", maxNotes)}
	}

	ctx, cancel := s.txContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status.to", string(to)),
	))
	defer span.End()

	var (
		updated  orders.Order
		from     orders.Status
		levels   []orders.StockLevel
		noop     bool
		released bool
	)
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		current, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = current.Status

		if from == orders.StatusCancelled && to == orders.StatusCancelled {
			updated, noop = current, true
			return nil
		}
		if !orders.CanTransition(from, to) {
			return &orders.InvalidTransitionError{From: from, To: to}
		}

		var items []orders.OrderItem
		if orders.ReleasesStock(from, to) {
			if items, err = tx.ListOrderItems(ctx, orderID); err != nil {
				return fmt.Errorf("list order items: %w", err)
			}
			if levels, err = s.Ledger.ReleaseMany(ctx, tx, itemQtys(items)); err != nil {
				return err
			}
			released = true
		}

		if updated, err = tx.UpdateOrderStatus(ctx, orderID, to, in.Notes, s.now()); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		action := audit.ActionUpdate
		if to == orders.StatusCancelled {
			action = audit.ActionCancel
		}
		_, err = s.Audit.Record(ctx, tx, action, entityOrder, orderID, statusChange{
			From:     from,
			To:       to,
			Notes:    in.Notes,
			Released: itemQtys(items),
		})
		return err
	})
	if err != nil {
		endSpan(span, err)
		return orders.Order{}, err
	}
	if noop {
		span.SetAttributes(attribute.Bool("order.noop", true))
		s.log().Info("order already cancelled", zap.String("order_id", orderID))
		return updated, nil
	}

	s.log().Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Bool("stock_released", released))
	s.emit(ctx, orders.TopicOrderStatusChanged, orderID, orders.EventOrderStatusChanged, orderID,
		orders.OrderStatusChangedPayload{OrderID: orderID, From: from, To: to, StockReleased: released})
	s.emitStock(ctx, orderID, levels)
	return updated, nil
}

// DeleteOrder returns reserved stock (unless the order was cancelled and has
// already given it back), records the deletion and removes the rows.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	ctx, cancel := s.txContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "OrderService.DeleteOrder", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	var (
		deleted  orders.Order
		levels   []orders.StockLevel
		released bool
	)
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		current, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		items, err := tx.ListOrderItems(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		if current.Status != orders.StatusCancelled {
			if levels, err = s.Ledger.ReleaseMany(ctx, tx, itemQtys(items)); err != nil {
				return err
			}
			released = true
		}

		// the entry is written while the rows still exist
		if _, err = s.Audit.Record(ctx, tx, audit.ActionDelete, entityOrder, orderID, deletion{
			OrderWithItems: orders.OrderWithItems{Order: current, Items: items},
			StockReleased:  released,
		}); err != nil {
			return err
		}
		if err = tx.DeleteOrder(ctx, orderID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		deleted = current
		return nil
	})
	if err != nil {
		endSpan(span, err)
		return err
	}

	s.log().Info("order deleted", zap.String("order_id", orderID), zap.Bool("stock_released", released))
	s.emit(ctx, orders.TopicOrderDeleted, orderID, orders.EventOrderDeleted, orderID,
		orders.OrderDeletedPayload{OrderID: orderID, OrderNumber: deleted.OrderNumber, StockReleased: released})
	s.emitStock(ctx, orderID, levels)
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (orders.OrderWithItems, error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		endSpan(span, err)
	}
	return o, err
}

func (s *OrderService) ListProducts(ctx context.Context) ([]orders.Product, error) {
	return s.Store.ListProducts(ctx)
}

// Totals prices the lines: tax is rounded to cents, total is the exact sum.
func (p Pricing) Totals(items []orders.OrderItem) (subtotal, tax, shipping, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineSubtotal)
	}
	tax = subtotal.Mul(p.TaxRate).Round(2)
	shipping = p.ShippingFee.Round(2)
	if p.FreeShippingOver.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingOver) {
		shipping = decimal.Zero
	}
	total = subtotal.Add(tax).Add(shipping)
	return subtotal, tax, shipping, total
}

type statusChange struct {
	From     orders.Status    `json:"from"`
	To       orders.Status    `json:"to"`
	Notes    *string          `json:"notes,omitempty"`
	Released []orders.ItemQty `json:"released,omitempty"`
}

type deletion struct {
	orders.OrderWithItems
	StockReleased bool `json:"stockReleased"`
}

func validateCreate(in CreateOrderInput) error {
	if strings.TrimSpace(in.CustomerID) == "" {
		return &orders.ValidationError{Field: "customerId", Message: "is required"}
	}
	if len(in.Items) == 0 {
		return &orders.ValidationError{Field: "items", Message: "must contain at least one item"}
	}
	if len(in.Items) > maxItems {
		return &orders.ValidationError{Field: "items", Message: fmt.Sprintf("must contain at most %d items", maxItems)}
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return &orders.ValidationError{Field: fmt.Sprintf("items[%d].productId", i), Message: "is required"}
		}
		if it.Quantity < 1 {
			return &orders.ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be at least 1"}
		}
		if it.Quantity > orders.MaxLineQuantity {
			return &orders.ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: fmt.Sprintf("must be at most %d", orders.MaxLineQuantity)}
		}
	}
	if len(in.Notes) > maxNotes {
		return &orders.ValidationError{Field: "notes", Message: fmt.Sprintf("must be at most %d characters", maxNotes)}
	}
	return nil
}

func itemQtys(items []orders.OrderItem) []orders.ItemQty {
	out := make([]orders.ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, orders.ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return out
}

func (s *OrderService) txContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.TxTimeout > 0 {
		return context.WithTimeout(ctx, s.TxTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OrderService) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func endSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, orders.Code(err))
}
