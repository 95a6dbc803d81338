package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-ledger/internal/audit"
	"github.com/ariefcatur/go-order-ledger/internal/orders"
	"github.com/ariefcatur/go-order-ledger/internal/service"
)

const maxBodyBytes = 1 << 20

// IdempotencyStore is satisfied by redisx.Idempotency.
type IdempotencyStore interface {
	Claim(ctx context.Context, actor, key string) (orderID string, claimed bool, err error)
	Complete(ctx context.Context, actor, key, orderID string) error
	Abandon(ctx context.Context, actor, key string) error
}

// OrderCache is satisfied by redisx.OrderCache.
type OrderCache interface {
	Get(ctx context.Context, orderID string) ([]byte, bool)
	Set(ctx context.Context, orderID string, body []byte) error
	Invalidate(ctx context.Context, orderID string) error
}

type OrdersHandler struct {
	Svc *service.OrderService
	// Idem and Cache are optional.
	Idem  IdempotencyStore
	Cache OrderCache
	Log   *zap.Logger
}

type createOrderReq struct {
	CustomerID string             `json:"customerId"`
	Items      []orders.ItemInput `json:"items"`
	Notes      string             `json:"notes"`
	// Total is the client's own figure; the server recomputes it.
	Total *decimal.Decimal `json:"total,omitempty"`
}

type updateOrderReq struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products", h.listProducts)
	r.Group(func(r chi.Router) {
		r.Use(requireActor)
		r.Post("/orders", h.createOrder)
		r.Patch("/orders/{id}", h.updateOrder)
		r.Delete("/orders/{id}", h.deleteOrder)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	actor := audit.ActorFrom(ctx).UserID

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.Idem != nil {
		existing, claimed, err := h.Idem.Claim(ctx, actor, idemKey)
		switch {
		case err != nil:
			// redis unavailable: serve the request without replay protection
			h.log().Warn("idempotency claim failed", zap.String("key", idemKey), zap.Error(err))
			idemKey = ""
		case existing != "":
			out, err := h.Svc.GetOrder(ctx, existing)
			if err != nil {
				writeError(w, r, h.log(), err)
				return
			}
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, out)
			return
		case !claimed:
			writeAPIError(w, http.StatusConflict, codeInProgress, "a request with this Idempotency-Key is still being processed", nil)
			return
		}
	}

	out, err := h.Svc.CreateOrder(ctx, service.CreateOrderInput{
		CustomerID:  req.CustomerID,
		Items:       req.Items,
		Notes:       req.Notes,
		ClientTotal: req.Total,
	})
	if err != nil {
		if idemKey != "" && h.Idem != nil {
			if aerr := h.Idem.Abandon(context.WithoutCancel(ctx), actor, idemKey); aerr != nil {
				h.log().Warn("idempotency abandon failed", zap.String("key", idemKey), zap.Error(aerr))
			}
		}
		writeError(w, r, h.log(), err)
		return
	}
	if idemKey != "" && h.Idem != nil {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), actor, idemKey, out.Order.ID); err != nil {
			h.log().Warn("idempotency complete failed", zap.String("key", idemKey), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx := r.Context()

	if h.Cache != nil {
		if b, ok := h.Cache.Get(ctx, orderID); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
	}

	out, err := h.Svc.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	b, err := json.Marshal(out)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, orderID, b); err != nil {
			h.log().Debug("order cache set failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(b, '\n'))
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req updateOrderReq
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.Svc.UpdateStatus(r.Context(), orderID, service.UpdateStatusInput{Status: req.Status, Notes: req.Notes})
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	h.invalidate(r.Context(), orderID)
	writeJSON(w, http.StatusOK, map[string]orders.Order{"order": o})
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if err := h.Svc.DeleteOrder(r.Context(), orderID); err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	h.invalidate(r.Context(), orderID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Svc.ListProducts(ctx)
	if err != nil {
		writeError(w, r, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIError(w, http.StatusBadRequest, orders.CodeValidation, "request body is not valid JSON", nil)
		return false
	}
	return true
}

// invalidate drops the cached view once a mutation has committed.
func (h *OrdersHandler) invalidate(ctx context.Context, orderID string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(context.WithoutCancel(ctx), orderID); err != nil {
		h.log().Warn("order cache invalidate failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
