package transport

import (
	"context"
	"errors"
	"net/http"

	"outfit-studio/internal/analytics"
	"outfit-studio/internal/catalog"
	"outfit-studio/internal/domain"
	"outfit-studio/internal/generation"
	"outfit-studio/internal/middleware"
	"outfit-studio/internal/order"
	"outfit-studio/internal/repository"
	"outfit-studio/internal/service"
	"outfit-studio/internal/session"

	"go.uber.org/zap"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{domain.ErrInvalidSelection, http.StatusBadRequest, "invalid_selection", "selection is empty or contains unknown items"},
	{domain.ErrIncompleteSizing, http.StatusUnprocessableEntity, "incomplete_sizing", "every item needs a size"},
	{domain.ErrInvalidSize, http.StatusUnprocessableEntity, "invalid_size", "size not available for item"},
	{domain.ErrNoGeneratedLook, http.StatusConflict, "no_generated_look", "generate a look before adding it to the cart"},
	{domain.ErrEmptyCart, http.StatusConflict, "empty_cart", "cart is empty"},
	{domain.ErrLookNotFound, http.StatusNotFound, "look_not_found", "look not found"},
	{domain.ErrItemNotFound, http.StatusNotFound, "item_not_found", "item not found in look"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found", "product not found"},
	{catalog.ErrCategoryNotFound, http.StatusNotFound, "category_not_found", "category not found"},
	{service.ErrSuperseded, http.StatusConflict, "superseded", "a newer generation was started for this session"},
	{generation.ErrGenerationFailed, http.StatusServiceUnavailable, "generation_unavailable", "image service is unavailable, try again later"},
	{generation.ErrTransientProvider, http.StatusServiceUnavailable, "generation_unavailable", "image service is unavailable, try again later"},
	{generation.ErrGenerationRejected, http.StatusUnprocessableEntity, "generation_rejected", "image service rejected the request"},
	{session.ErrInvalidSession, http.StatusUnauthorized, "session_invalid", "invalid session"},
	{repository.ErrOrderNotFound, http.StatusNotFound, "order_not_found", "order not found"},
	{order.ErrAlreadyDelivered, http.StatusConflict, "already_delivered", "order event was already delivered"},
	{analytics.ErrDeliveryFailed, http.StatusServiceUnavailable, "analytics_unavailable", "analytics stream is unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", "request timed out"},
}

// respondWithServiceError renders err as a structured error response.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		logger.Debug("Client went away", zap.String("path", r.URL.Path), zap.Error(err))
		return
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		var details map[string]interface{}
		var pe *generation.ProviderError
		if errors.As(err, &pe) && !pe.Transient() {
			details = map[string]interface{}{"reason": pe.Reason}
			if pe.Code != "" {
				details["provider_code"] = pe.Code
			}
		}
		if m.status >= http.StatusInternalServerError {
			logger.Warn("Request failed", zap.String("path", r.URL.Path), zap.String("code", m.code), zap.Error(err))
		}
		middleware.RespondWithErrorCode(w, m.status, m.code, m.message, details)
		return
	}

	logger.Error("Unhandled service error", zap.String("path", r.URL.Path), zap.Error(err))
	middleware.RespondWithErrorCode(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
}

// decodeRequest reports decode and validation failures itself and returns
// false when the handler should stop.
func decodeRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(w, r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithErrorCode(w, http.StatusBadRequest, "invalid_body", "invalid request body", nil)
		return false
	}
	return true
}
