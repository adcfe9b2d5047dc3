package catalog

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"outfit-studio/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const testCatalog = `{
  "hosen": [
    {"id": "hosen-3", "name": "Wide Leg Jeans", "brand": "Levi's", "price": 59.99, "originalPrice": 79.99,
     "color": "Hellblau", "sizes": ["S", "M", "L"], "image": "hosen-3.jpg"}
  ],
  "schuhe": [
    {"id": "schuhe-7", "name": "Chelsea Boots", "brand": "Dr. Martens", "price": 169.00,
     "color": "Schwarz", "sizes": ["38", "39", "40"], "image": "schuhe-7.jpg"}
  ],
  "roecke": [
    {"id": "roecke-1", "name": "Plissee Rock", "brand": "Mango", "price": 39.99, "originalPrice": 39.99,
     "color": "Beige", "sizes": ["XS", "S"], "image": "roecke-1.png"}
  ]
}`

func TestParseCatalog(t *testing.T) {
	c, err := Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	ctx := context.Background()
	product, err := c.Lookup(ctx, "hosen-3")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if product.Category != "hosen" || product.Discount == nil || *product.Discount != 25 {
		t.Errorf("unexpected product %+v", product)
	}
	if product.AssetRef() != "hosen/hosen-3.jpg" {
		t.Errorf("unexpected asset ref %s", product.AssetRef())
	}

	skirt, _ := c.Lookup(ctx, "roecke-1")
	if skirt.OriginalPrice != nil || skirt.Discount != nil {
		t.Error("equal original price must not produce a discount")
	}

	categories, _ := c.Categories(ctx)
	if len(categories) != 3 || categories[0].ID != "hosen" || categories[1].Name != "Röcke" {
		t.Errorf("unexpected categories %+v", categories)
	}

	if _, err := c.Lookup(ctx, "hosen-99"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := c.ListByCategory(ctx, "taschen"); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestParseRejectsMalformedProducts(t *testing.T) {
	cases := map[string]string{
		"no sizes":     `{"hosen":[{"id":"hosen-1","name":"x","price":1,"sizes":[],"image":"a.jpg"}]}`,
		"wrong prefix": `{"hosen":[{"id":"schuhe-1","name":"x","price":1,"sizes":["M"],"image":"a.jpg"}]}`,
		"duplicate":    `{"hosen":[{"id":"hosen-1","price":1,"sizes":["M"],"image":"a.jpg"},{"id":"hosen-1","price":1,"sizes":["M"],"image":"b.jpg"}]}`,
		"not json":     `{"hosen":`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	c, _ := Parse([]byte(testCatalog))
	ctx := context.Background()

	items, err := Resolve(ctx, c, []string{"schuhe-7", "hosen-3"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if items[0].ID != "schuhe-7" || items[1].ID != "hosen-3" {
		t.Error("Resolve must keep the requested order")
	}

	if _, err := Resolve(ctx, c, nil); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection for empty ids, got %v", err)
	}
	if _, err := Resolve(ctx, c, []string{"hosen-3", "kleider-9"}); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection for unknown id, got %v", err)
	}
}

func TestRoleMapping(t *testing.T) {
	cases := map[string]Role{
		"jacken-2":   RoleOuterwear,
		"hosen-3":    RoleLegwear,
		"schuhe-7":   RoleFootwear,
		"muetzen-1":  RoleHeadwear,
		"kleider-4":  RoleDress,
		"pullover-9": RoleTop,
		"taschen-1":  RoleAccessory,
	}
	for id, want := range cases {
		if got := RoleOf(CategoryOf(id)); got != want {
			t.Errorf("RoleOf(CategoryOf(%q)) = %s, want %s", id, got, want)
		}
	}
}

func TestProperty_CategoryOfStripsNumericSuffix(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("category is the identifier prefix", prop.ForAll(
		func(category string, n int) bool {
			id := category + "-" + strconv.Itoa(n)
			return CategoryOf(id) == category
		},
		gen.RegexMatch(`[a-z]{3,10}(-[a-z]{2,6})?`),
		gen.IntRange(0, 9999),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
