package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// ProductRecord is a catalog entry. Records are immutable once loaded.
type ProductRecord struct {
	ID            string           `json:"id"`
	Category      string           `json:"category"`
	Name          string           `json:"name"`
	Brand         string           `json:"brand"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Discount      *int             `json:"discount,omitempty"`
	Color         string           `json:"color"`
	Sizes         []string         `json:"sizes"`
	Image         string           `json:"image"`
}

// Category groups products under a display name.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HasSize reports whether size is one of the product's size labels.
func (p ProductRecord) HasSize(size string) bool {
	return slices.Contains(p.Sizes, size)
}

// AssetRef is the product image location relative to the products root.
func (p ProductRecord) AssetRef() string {
	return p.Category + "/" + p.Image
}

// ApplyDiscount derives the discount percentage from the original price.
// Both fields are cleared unless the original price exceeds the current one.
func (p *ProductRecord) ApplyDiscount() {
	if p.OriginalPrice == nil || !p.OriginalPrice.GreaterThan(p.Price) || p.OriginalPrice.IsZero() {
		p.OriginalPrice = nil
		p.Discount = nil
		return
	}
	ratio := decimal.NewFromInt(1).Sub(p.Price.Div(*p.OriginalPrice))
	pct := int(ratio.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	p.Discount = &pct
}
