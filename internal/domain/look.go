package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImageArtifact references a stored generation result.
type ImageArtifact struct {
	Ref         string `json:"ref"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// GeneratedLook is the result of one generation call, kept until the
// shopper customizes further or commits it to the cart.
type GeneratedLook struct {
	Selection     Selection       `json:"selection"`
	Items         []ProductRecord `json:"items"`
	ImageRef      string          `json:"image"`
	CombinationID string          `json:"combination_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EventItem is the analytics view of a product.
type EventItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Color     string  `json:"color"`
}

func NewEventItem(p ProductRecord) EventItem {
	return EventItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price.InexactFloat64(),
		Color:     p.Color,
	}
}

// CombinationRecord identifies a set of garments independent of pick order.
type CombinationRecord struct {
	ID        string      `json:"combination_id"`
	SessionID string      `json:"session_id"`
	ImageRef  string      `json:"image,omitempty"`
	Items     []EventItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}

// CartLine is one sized product inside a cart look.
type CartLine struct {
	Product ProductRecord `json:"product"`
	Size    string        `json:"size"`
}

// CartLook is a committed look. Prices are frozen at add-to-cart time.
type CartLook struct {
	ID            string     `json:"id"`
	Items         []CartLine `json:"items"`
	ImageRef      string     `json:"image"`
	CombinationID string     `json:"combination_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (l CartLook) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range l.Items {
		total = total.Add(line.Product.Price)
	}
	return total
}

// Cart is the ordered collection of committed looks.
type Cart struct {
	Looks []CartLook `json:"looks"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Looks) == 0
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, look := range c.Looks {
		total = total.Add(look.Total())
	}
	return total
}

func (c Cart) ItemCount() int {
	n := 0
	for _, look := range c.Looks {
		n += len(look.Items)
	}
	return n
}

// FindLook returns the index of the look with the given id, or -1.
func (c Cart) FindLook(id string) int {
	for i, look := range c.Looks {
		if look.ID == id {
			return i
		}
	}
	return -1
}
