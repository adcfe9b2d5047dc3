// Package catalog resolves product identifiers to product records and owns
// the mapping from identifier prefix to garment category and role.
package catalog

import (
	"context"
	"errors"
	"strings"

	"outfit-studio/internal/domain"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// Accessor is the read-only catalog contract consumed by the core.
type Accessor interface {
	Lookup(ctx context.Context, id string) (*domain.ProductRecord, error)
	ListByCategory(ctx context.Context, category string) ([]domain.ProductRecord, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

// Role is the garment slot an item fills on the model.
type Role string

const (
	RoleOuterwear Role = "outerwear"
	RoleTop       Role = "top"
	RoleLegwear   Role = "legwear"
	RoleDress     Role = "dress"
	RoleFootwear  Role = "footwear"
	RoleHeadwear  Role = "headwear"
	RoleAccessory Role = "accessory"
)

var categoryRoles = map[string]Role{
	"jacken":   RoleOuterwear,
	"maentel":  RoleOuterwear,
	"pullover": RoleTop,
	"shirts":   RoleTop,
	"blusen":   RoleTop,
	"hosen":    RoleLegwear,
	"roecke":   RoleLegwear,
	"kleider":  RoleDress,
	"schuhe":   RoleFootwear,
	"muetzen":  RoleHeadwear,
	"huete":    RoleHeadwear,
}

var categoryNames = map[string]string{
	"hosen":    "Hosen",
	"jacken":   "Jacken",
	"pullover": "Pullover",
	"schuhe":   "Schuhe",
	"roecke":   "Röcke",
	"kleider":  "Kleider",
}

// CategoryOf derives the category from an identifier such as "hosen-3".
// Identifiers without a numeric suffix separator map to "".
func CategoryOf(id string) string {
	idx := strings.LastIndex(id, "-")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(id[:idx])
}

// RoleOf maps a category to the garment role used in prompts.
func RoleOf(category string) Role {
	if role, ok := categoryRoles[category]; ok {
		return role
	}
	return RoleAccessory
}

// DisplayName returns the shopper-facing category name.
func DisplayName(category string) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	if category == "" {
		return ""
	}
	return strings.ToUpper(category[:1]) + category[1:]
}

// Resolve looks up ids in order, failing with domain.ErrInvalidSelection
// if the list is empty or any id is unknown.
func Resolve(ctx context.Context, accessor Accessor, ids []string) ([]domain.ProductRecord, error) {
	if len(ids) == 0 {
		return nil, domain.ErrInvalidSelection
	}
	items := make([]domain.ProductRecord, 0, len(ids))
	for _, id := range ids {
		product, err := accessor.Lookup(ctx, id)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return nil, errors.Join(domain.ErrInvalidSelection, err)
			}
			return nil, err
		}
		items = append(items, *product)
	}
	return items, nil
}
