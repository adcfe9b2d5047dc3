package transport

import (
	"net/http"
	"time"

	"outfit-studio/internal/domain"
	"outfit-studio/internal/middleware"
	"outfit-studio/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionResponse is returned when a shopper session starts
type SessionResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SelectionRequest adds one product to the selection
type SelectionRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
}

// SelectionResponse lists the selected product ids in pick order
type SelectionResponse struct {
	ProductIDs []string `json:"product_ids"`
}

// GenerateRequest optionally replaces the selection before generating
type GenerateRequest struct {
	ProductIDs []string `json:"product_ids" validate:"omitempty,max=12,unique,dive,required,max=64"`
}

// AddToCartRequest commits the last look with one size per product
type AddToCartRequest struct {
	Sizes map[string]string `json:"sizes" validate:"required,dive,keys,required,max=64,endkeys,required,max=16"`
}

// CartResponse represents the cart with its derived totals
type CartResponse struct {
	Looks     []domain.CartLook `json:"looks"`
	Total     string            `json:"total"`
	ItemCount int               `json:"item_count"`
}

// StudioHandler handles the shopper's compose, cart and checkout flow
type StudioHandler struct {
	studio   service.StudioService
	sessions service.SessionService
	logger   *zap.Logger
}

// NewStudioHandler creates a new StudioHandler
func NewStudioHandler(studio service.StudioService, sessions service.SessionService, logger *zap.Logger) *StudioHandler {
	return &StudioHandler{
		studio:   studio,
		sessions: sessions,
		logger:   logger,
	}
}

// SessionResolver adapts the session service for SessionMiddleware
func (h *StudioHandler) SessionResolver() middleware.SessionResolver {
	return func(token string) (string, error) {
		claims, err := h.sessions.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.SessionID, nil
	}
}

// RegisterRoutes registers all studio routes. generateLimiter may be nil.
func (h *StudioHandler) RegisterRoutes(r chi.Router, generateLimiter func(http.Handler) http.Handler) {
	r.Post("/api/session", h.StartSession)

	r.Route("/api/studio", func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(h.SessionResolver(), h.logger))

		r.Get("/", h.GetStudio)

		r.Post("/selection", h.AddToSelection)
		r.Delete("/selection", h.ResetSelection)
		r.Delete("/selection/{productID}", h.RemoveFromSelection)

		r.Group(func(r chi.Router) {
			if generateLimiter != nil {
				r.Use(generateLimiter)
			}
			r.Post("/generate", h.Generate)
		})

		r.Get("/cart", h.GetCart)
		r.Post("/cart", h.AddToCart)
		r.Delete("/cart", h.ClearCart)
		r.Delete("/cart/looks/{lookID}", h.RemoveLook)
		r.Delete("/cart/looks/{lookID}/items/{productID}", h.RemoveItem)

		r.Post("/checkout", h.Checkout)
	})
}

// StartSession handles POST /api/session
func (h *StudioHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	token, claims, err := h.sessions.Issue()
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Debug("Session started", zap.String("session_id", claims.SessionID))
	middleware.RespondWithJSON(w, http.StatusCreated, SessionResponse{
		Token:     token,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// GetStudio handles GET /api/studio
func (h *StudioHandler) GetStudio(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	state, err := h.studio.Studio(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, state)
}

// AddToSelection handles POST /api/studio/selection
func (h *StudioHandler) AddToSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	sessionID, _ := middleware.GetSessionID(r.Context())

	selection, err := h.studio.AddToSelection(r.Context(), sessionID, req.ProductID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, SelectionResponse{ProductIDs: selection.IDs()})
}

// RemoveFromSelection handles DELETE /api/studio/selection/{productID}
func (h *StudioHandler) RemoveFromSelection(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	selection, err := h.studio.RemoveFromSelection(r.Context(), sessionID, chi.URLParam(r, "productID"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, SelectionResponse{ProductIDs: selection.IDs()})
}

// ResetSelection handles DELETE /api/studio/selection
func (h *StudioHandler) ResetSelection(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	if err := h.studio.ResetSelection(r.Context(), sessionID); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Generate handles POST /api/studio/generate
func (h *StudioHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if r.ContentLength != 0 {
		if !decodeRequest(w, r, h.logger, &req) {
			return
		}
	}
	sessionID, _ := middleware.GetSessionID(r.Context())

	look, err := h.studio.Generate(r.Context(), sessionID, req.ProductIDs)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, look)
}

// GetCart handles GET /api/studio/cart
func (h *StudioHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	cart, err := h.studio.Cart(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(cart))
}

// AddToCart handles POST /api/studio/cart
func (h *StudioHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	sessionID, _ := middleware.GetSessionID(r.Context())

	look, err := h.studio.AddToCart(r.Context(), sessionID, req.Sizes)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Look added to cart",
		zap.String("session_id", sessionID),
		zap.String("look_id", look.ID),
		zap.Int("items", len(look.Items)),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, look)
}

// ClearCart handles DELETE /api/studio/cart
func (h *StudioHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	if err := h.studio.ClearCart(r.Context(), sessionID); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveLook handles DELETE /api/studio/cart/looks/{lookID}
func (h *StudioHandler) RemoveLook(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	cart, err := h.studio.RemoveLook(r.Context(), sessionID, chi.URLParam(r, "lookID"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(cart))
}

// RemoveItem handles DELETE /api/studio/cart/looks/{lookID}/items/{productID}
func (h *StudioHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	cart, err := h.studio.RemoveItem(r.Context(), sessionID, chi.URLParam(r, "lookID"), chi.URLParam(r, "productID"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newCartResponse(cart))
}

// Checkout handles POST /api/studio/checkout
func (h *StudioHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	order, err := h.studio.Checkout(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

func newCartResponse(cart domain.Cart) CartResponse {
	looks := cart.Looks
	if looks == nil {
		looks = []domain.CartLook{}
	}
	return CartResponse{
		Looks:     looks,
		Total:     cart.Total().StringFixed(2),
		ItemCount: cart.ItemCount(),
	}
}
