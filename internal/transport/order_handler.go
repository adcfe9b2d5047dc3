package transport

import (
	"net/http"
	"strconv"

	"outfit-studio/internal/middleware"
	"outfit-studio/internal/order"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderHandler exposes the order ledger to operators
type OrderHandler struct {
	reconciler *order.Reconciler
	logger     *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(reconciler *order.Reconciler, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// RegisterRoutes registers the operator routes behind opsMiddleware
func (h *OrderHandler) RegisterRoutes(r chi.Router, opsMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(opsMiddleware)
		r.Get("/undelivered", h.ListUndelivered)
		r.Post("/{orderID}/redeliver", h.Redeliver)
	})
}

// ListUndelivered handles GET /api/orders/undelivered
func (h *OrderHandler) ListUndelivered(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			middleware.RespondWithErrorCode(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	orders, err := h.reconciler.Pending(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// Redeliver handles POST /api/orders/{orderID}/redeliver
func (h *OrderHandler) Redeliver(w http.ResponseWriter, r *http.Request) {
	o, err := h.reconciler.Redeliver(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, o)
}
