package prompt

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"outfit-studio/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

var fixtures = map[string]domain.ProductRecord{
	"hosen-3":   {ID: "hosen-3", Category: "hosen", Name: "Wide Leg Jeans", Brand: "Levi's", Color: "Hellblau", Price: decimal.RequireFromString("59.99"), Sizes: []string{"M"}, Image: "hosen-3.jpg"},
	"schuhe-7":  {ID: "schuhe-7", Category: "schuhe", Name: "Chelsea Boots", Brand: "Dr. Martens", Color: "Schwarz", Price: decimal.RequireFromString("169"), Sizes: []string{"40"}, Image: "schuhe-7.jpg"},
	"jacken-2":  {ID: "jacken-2", Category: "jacken", Name: "Trenchcoat", Brand: "Zara", Color: "Beige", Price: decimal.RequireFromString("129"), Sizes: []string{"L"}, Image: "jacken-2.png"},
	"muetzen-1": {ID: "muetzen-1", Category: "muetzen", Name: "Beanie", Color: "Rot", Price: decimal.RequireFromString("19"), Sizes: []string{"OS"}, Image: "muetzen-1.jpg"},
}

func items(ids ...string) []domain.ProductRecord {
	out := make([]domain.ProductRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, fixtures[id])
	}
	return out
}

func TestBuildOutfit(t *testing.T) {
	p, err := NewBuilder("").Build(items("jacken-2", "hosen-3", "schuhe-7"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if p.Solo {
		t.Fatal("three items must not produce a solo prompt")
	}
	wantRefs := []string{"jacken/jacken-2.png", "hosen/hosen-3.jpg", "schuhe/schuhe-7.jpg"}
	for i, ref := range wantRefs {
		if p.ImageRefs[i] != ref {
			t.Errorf("image %d: got %s want %s", i, p.ImageRefs[i], ref)
		}
	}
	for _, want := range []string{
		"single female model wearing exactly these 3 garments",
		"Image 1: outerwear - Trenchcoat by Zara in Beige",
		"Image 2: legwear - Wide Leg Jeans by Levi's in Hellblau",
		"Image 3: footwear - Chelsea Boots by Dr. Martens in Schwarz",
		"Do not add any other garment",
	} {
		if !strings.Contains(p.Instruction, want) {
			t.Errorf("instruction missing %q:\n%s", want, p.Instruction)
		}
	}
}

func TestBuildSolo(t *testing.T) {
	p, err := NewBuilder("male model").Build(items("muetzen-1"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !p.Solo || len(p.ImageRefs) != 1 {
		t.Fatalf("expected solo prompt with one image, got %+v", p)
	}
	if !strings.Contains(p.Instruction, "single garment: headwear - Beanie in Rot") {
		t.Errorf("unexpected solo instruction:\n%s", p.Instruction)
	}
	if strings.Contains(p.Instruction, "male model") {
		t.Error("solo product shots must not ask for a model")
	}
}

func TestBuildRejectsInvalidSelections(t *testing.T) {
	b := NewBuilder("")
	if _, err := b.Build(nil); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection for empty input, got %v", err)
	}
	if _, err := b.Build(items("hosen-3", "hosen-3")); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection for duplicates, got %v", err)
	}
}

// Same ordered input must yield byte-identical output.
func TestProperty_BuildIsDeterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)
	ids := []string{"hosen-3", "schuhe-7", "jacken-2", "muetzen-1"}

	properties.Property("repeated builds are identical", prop.ForAll(
		func(perm []int) bool {
			var selection []string
			seen := map[int]bool{}
			for _, idx := range perm {
				if !seen[idx] {
					seen[idx] = true
					selection = append(selection, ids[idx])
				}
			}
			if len(selection) == 0 {
				return true
			}

			first, err := NewBuilder("").Build(items(selection...))
			if err != nil {
				return false
			}
			second, err := NewBuilder("").Build(items(selection...))
			if err != nil {
				return false
			}
			if first.Instruction != second.Instruction {
				return false
			}
			return fmt.Sprint(first.ImageRefs) == fmt.Sprint(second.ImageRefs)
		},
		gen.SliceOfN(4, gen.IntRange(0, 3)),
	))

	properties.Property("image order follows selection order", prop.ForAll(
		func(reverse bool) bool {
			selection := []string{"hosen-3", "schuhe-7"}
			if reverse {
				selection = []string{"schuhe-7", "hosen-3"}
			}
			p, err := NewBuilder("").Build(items(selection...))
			if err != nil {
				return false
			}
			return p.ImageRefs[0] == fixtures[selection[0]].AssetRef()
		},
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
