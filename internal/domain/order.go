package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a flattened cart line as reported in an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Color     string  `json:"color"`
	Size      string  `json:"size"`
	LookID    string  `json:"look_id"`
}

// DeliveryWindow is an estimate only; no logistics system backs it.
type DeliveryWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type OrderRecord struct {
	ID                string          `json:"order_id"`
	CombinationID     string          `json:"combination_id,omitempty"`
	SessionID         string          `json:"session_id"`
	Items             []OrderItem     `json:"items"`
	Total             decimal.Decimal `json:"total"`
	EstimatedDelivery DeliveryWindow  `json:"estimated_delivery"`
	CreatedAt         time.Time       `json:"created_at"`
}
