// Package prompt turns an ordered selection of products into the instruction
// text and image order submitted to the image service.
package prompt

import (
	"fmt"
	"strings"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/domain"
)

const defaultModel = "female model"

// Prompt is the deterministic request body for one generation.
type Prompt struct {
	Instruction string
	ImageRefs   []string
	Solo        bool
}

type Builder struct {
	model string
}

// NewBuilder creates a Builder describing the photographic model as model.
func NewBuilder(model string) *Builder {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}
	return &Builder{model: model}
}

// Build composes the instruction for items in the given order. Image i of the
// request always corresponds to items[i].
func (b *Builder) Build(items []domain.ProductRecord) (Prompt, error) {
	if len(items) == 0 {
		return Prompt{}, domain.ErrInvalidSelection
	}

	seen := make(map[string]struct{}, len(items))
	refs := make([]string, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup || item.ID == "" || item.Image == "" {
			return Prompt{}, domain.ErrInvalidSelection
		}
		seen[item.ID] = struct{}{}
		refs = append(refs, item.AssetRef())
	}

	if len(items) == 1 {
		return Prompt{Instruction: b.solo(items[0]), ImageRefs: refs, Solo: true}, nil
	}
	return Prompt{Instruction: b.outfit(items), ImageRefs: refs}, nil
}

func (b *Builder) solo(item domain.ProductRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a professional product photo of a single garment: %s.\n\n", describe(item))
	sb.WriteString("- Show ONLY the garment from the provided image, without a model or mannequin\n")
	sb.WriteString("- Preserve the garment's exact color, pattern and material\n")
	sb.WriteString("- Do not add any other items\n")
	sb.WriteString("- Clean white background, garment centered and fully visible\n")
	return sb.String()
}

func (b *Builder) outfit(items []domain.ProductRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a professional fashion photo of a single %s wearing exactly these %d garments:\n", b.model, len(items))
	for i, item := range items {
		fmt.Fprintf(&sb, "Image %d: %s\n", i+1, describe(item))
	}
	sb.WriteString("\n")
	sb.WriteString("- Use ONLY the clothing items from the provided images, each exactly once\n")
	sb.WriteString("- Preserve every garment's exact color, pattern and material\n")
	sb.WriteString("- Do not add any other garment, shoe or accessory\n")
	sb.WriteString("- Exactly one person in the frame\n")
	sb.WriteString("- Clean white background, full body shot\n")
	return sb.String()
}

func describe(item domain.ProductRecord) string {
	role := catalog.RoleOf(catalog.CategoryOf(item.ID))
	parts := []string{fmt.Sprintf("%s - %s", role, item.Name)}
	if item.Brand != "" {
		parts = append(parts, "by "+item.Brand)
	}
	if item.Color != "" {
		parts = append(parts, "in "+item.Color)
	}
	return strings.Join(parts, " ")
}
