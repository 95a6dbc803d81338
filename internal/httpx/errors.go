package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

const (
	codeUnauthorized = "unauthorized"
	codeInProgress   = "request_in_progress"
)

type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: msg, Details: details}})
}

// writeError maps domain errors to status codes. Anything unrecognised is a
// 500 whose cause only reaches the log.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var (
		ve *orders.ValidationError
		nf *orders.NotFoundError
		is *orders.InsufficientStockError
		it *orders.InvalidTransitionError
	)
	switch {
	case errors.As(err, &ve):
		var details map[string]any
		if ve.Field != "" {
			details = map[string]any{"field": ve.Field}
		}
		writeAPIError(w, http.StatusBadRequest, orders.CodeValidation, ve.Error(), details)
	case errors.As(err, &nf):
		writeAPIError(w, http.StatusNotFound, orders.CodeNotFound, nf.Error(),
			map[string]any{"entity": nf.Entity, "id": nf.ID})
	case errors.As(err, &is):
		writeAPIError(w, http.StatusBadRequest, orders.CodeInsufficientStock, is.Error(),
			map[string]any{"productId": is.ProductID, "requested": is.Requested, "available": is.Available})
	case errors.As(err, &it):
		writeAPIError(w, http.StatusConflict, orders.CodeInvalidTransition, it.Error(),
			map[string]any{"from": it.From, "to": it.To})
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeAPIError(w, http.StatusInternalServerError, orders.CodeInternal, "internal server error", nil)
	}
}
