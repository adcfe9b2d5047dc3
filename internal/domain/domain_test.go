package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestApplyDiscount(t *testing.T) {
	original := decimal.RequireFromString("79.99")
	p := ProductRecord{Price: decimal.RequireFromString("59.99"), OriginalPrice: &original}
	p.ApplyDiscount()

	if p.Discount == nil || *p.Discount != 25 {
		t.Fatalf("expected 25%% discount, got %v", p.Discount)
	}

	notCheaper := decimal.RequireFromString("10")
	q := ProductRecord{Price: decimal.RequireFromString("10"), OriginalPrice: &notCheaper}
	q.ApplyDiscount()
	if q.OriginalPrice != nil || q.Discount != nil {
		t.Fatal("original price and discount must be absent together when there is no reduction")
	}
}

func TestNewSelectionRejectsDuplicates(t *testing.T) {
	if _, err := NewSelection("hosen-3", "schuhe-7", "hosen-3"); err != ErrInvalidSelection {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
	if _, err := NewSelection("hosen-3", ""); err != ErrInvalidSelection {
		t.Fatalf("expected ErrInvalidSelection for blank id, got %v", err)
	}
}

func TestProperty_SelectionPreservesInsertionOrder(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("add keeps first-seen order and never duplicates", prop.ForAll(
		func(ids []string) bool {
			var s Selection
			var expected []string
			seen := map[string]bool{}
			for _, id := range ids {
				s.Add(id)
				if !seen[id] {
					seen[id] = true
					expected = append(expected, id)
				}
			}
			if s.Len() != len(expected) {
				return false
			}
			for i, id := range expected {
				if s[i] != id {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.OneConstOf("hosen-1", "hosen-2", "jacken-1", "schuhe-7", "kleider-4")),
	))

	properties.Property("remove keeps the relative order of remaining ids", prop.ForAll(
		func(ids []string, victim string) bool {
			var s Selection
			for _, id := range ids {
				s.Add(id)
			}
			before := s.IDs()
			s.Remove(victim)
			j := 0
			for _, id := range before {
				if id == victim {
					continue
				}
				if s[j] != id {
					return false
				}
				j++
			}
			return !s.Contains(victim)
		},
		gen.SliceOf(gen.OneConstOf("hosen-1", "hosen-2", "jacken-1", "schuhe-7")),
		gen.OneConstOf("hosen-1", "schuhe-7", "roecke-2"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCartTotals(t *testing.T) {
	cart := Cart{Looks: []CartLook{
		{ID: "a", Items: []CartLine{
			{Product: ProductRecord{ID: "hosen-3", Price: decimal.RequireFromString("49.90")}, Size: "M"},
			{Product: ProductRecord{ID: "schuhe-7", Price: decimal.RequireFromString("89.00")}, Size: "40"},
		}},
		{ID: "b", Items: []CartLine{
			{Product: ProductRecord{ID: "jacken-1", Price: decimal.RequireFromString("120.10")}, Size: "L"},
		}},
	}}

	if !cart.Total().Equal(decimal.RequireFromString("259.00")) {
		t.Fatalf("unexpected total %s", cart.Total())
	}
	if cart.ItemCount() != 3 {
		t.Fatalf("expected 3 items, got %d", cart.ItemCount())
	}
	if cart.FindLook("b") != 1 || cart.FindLook("zzz") != -1 {
		t.Fatal("FindLook returned wrong index")
	}
}
