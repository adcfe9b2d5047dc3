package transport

import (
	"net/http"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/domain"
	"outfit-studio/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CategoryResponse is one category with its product count
type CategoryResponse struct {
	domain.Category
	Products int `json:"products"`
}

// CatalogHandler serves read-only catalog data
type CatalogHandler struct {
	catalog catalog.Accessor
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(accessor catalog.Accessor, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: accessor,
		logger:  logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/categories", h.ListCategories)
	r.Get("/api/products/{category}", h.ListProducts)
	r.Get("/api/product/{productID}", h.GetProduct)
}

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	out := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		products, err := h.catalog.ListByCategory(r.Context(), c.ID)
		if err != nil {
			respondWithServiceError(w, r, h.logger, err)
			return
		}
		out = append(out, CategoryResponse{Category: c, Products: len(products)})
	}

	middleware.RespondWithJSON(w, http.StatusOK, out)
}

// ListProducts handles GET /api/products/{category}
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetProduct handles GET /api/product/{productID}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Lookup(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}
