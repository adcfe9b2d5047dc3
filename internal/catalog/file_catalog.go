package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"outfit-studio/internal/domain"

	"github.com/shopspring/decimal"
)

type rawProduct struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Brand         string           `json:"brand"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	Color         string           `json:"color"`
	Sizes         []string         `json:"sizes"`
	Image         string           `json:"image"`
}

// FileCatalog serves products from a catalog.json keyed by category id.
// It is safe for concurrent use once loaded.
type FileCatalog struct {
	products   map[string]domain.ProductRecord
	byCategory map[string][]domain.ProductRecord
	categories []domain.Category
}

// LoadFile reads and validates the catalog file at path.
func LoadFile(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from the raw JSON document.
func Parse(data []byte) (*FileCatalog, error) {
	var raw map[string][]rawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &FileCatalog{
		products:   make(map[string]domain.ProductRecord),
		byCategory: make(map[string][]domain.ProductRecord),
	}

	categoryIDs := make([]string, 0, len(raw))
	for id := range raw {
		categoryIDs = append(categoryIDs, id)
	}
	sort.Strings(categoryIDs)

	for _, categoryID := range categoryIDs {
		c.categories = append(c.categories, domain.Category{ID: categoryID, Name: DisplayName(categoryID)})
		for _, rp := range raw[categoryID] {
			product := domain.ProductRecord{
				ID:            rp.ID,
				Category:      categoryID,
				Name:          rp.Name,
				Brand:         rp.Brand,
				Price:         rp.Price,
				OriginalPrice: rp.OriginalPrice,
				Color:         rp.Color,
				Sizes:         rp.Sizes,
				Image:         rp.Image,
			}
			if err := validateProduct(product); err != nil {
				return nil, err
			}
			if _, dup := c.products[product.ID]; dup {
				return nil, fmt.Errorf("duplicate product id %q in catalog", product.ID)
			}
			product.ApplyDiscount()
			c.products[product.ID] = product
			c.byCategory[categoryID] = append(c.byCategory[categoryID], product)
		}
	}

	return c, nil
}

func validateProduct(p domain.ProductRecord) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("product in category %q has no id", p.Category)
	case CategoryOf(p.ID) != p.Category:
		return fmt.Errorf("product %q is not prefixed by its category %q", p.ID, p.Category)
	case len(p.Sizes) == 0:
		return fmt.Errorf("product %q has no sizes", p.ID)
	case p.Image == "":
		return fmt.Errorf("product %q has no image", p.ID)
	case p.Price.IsNegative():
		return fmt.Errorf("product %q has a negative price", p.ID)
	}
	return nil
}

func (c *FileCatalog) Lookup(_ context.Context, id string) (*domain.ProductRecord, error) {
	product, ok := c.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return &product, nil
}

func (c *FileCatalog) ListByCategory(_ context.Context, category string) ([]domain.ProductRecord, error) {
	products, ok := c.byCategory[category]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	out := make([]domain.ProductRecord, len(products))
	copy(out, products)
	return out, nil
}

func (c *FileCatalog) Categories(_ context.Context) ([]domain.Category, error) {
	out := make([]domain.Category, len(c.categories))
	copy(out, c.categories)
	return out, nil
}

// All returns every product, ordered by category then catalog position.
func (c *FileCatalog) All() []domain.ProductRecord {
	var out []domain.ProductRecord
	for _, category := range c.categories {
		out = append(out, c.byCategory[category.ID]...)
	}
	return out
}
