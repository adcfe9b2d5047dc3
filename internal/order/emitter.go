// Package order turns a session's cart into an order and reports it.
package order

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"outfit-studio/internal/analytics"
	"outfit-studio/internal/config"
	"outfit-studio/internal/domain"
	"outfit-studio/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartDrainer hands out a session cart and clears it afterwards.
type CartDrainer interface {
	Drain(ctx context.Context, sessionID string, fn func(domain.Cart) error) error
}

// SyncEmitter delivers an event before returning.
type SyncEmitter interface {
	Emit(ctx context.Context, event analytics.Event) error
}

// Ledger keeps every completed order together with whether its analytics
// event was delivered.
type Ledger interface {
	Record(ctx context.Context, order domain.OrderRecord, delivered bool) error
}

type NoopLedger struct{}

func (NoopLedger) Record(context.Context, domain.OrderRecord, bool) error { return nil }

type Emitter struct {
	carts     CartDrainer
	analytics SyncEmitter
	ledger    Ledger
	cfg       config.OrderConfig
	metrics   *metrics.AppMetrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewEmitter(carts CartDrainer, events SyncEmitter, ledger Ledger, cfg config.OrderConfig, m *metrics.AppMetrics, logger *zap.Logger) *Emitter {
	if ledger == nil {
		ledger = NoopLedger{}
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	if cfg.DeliveryMinDays <= 0 {
		cfg.DeliveryMinDays = 3
	}
	if cfg.DeliveryMaxDays < cfg.DeliveryMinDays {
		cfg.DeliveryMaxDays = cfg.DeliveryMinDays
	}
	return &Emitter{
		carts:     carts,
		analytics: events,
		ledger:    ledger,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Checkout places an order for the session's cart. The cart is cleared once
// the orders event was attempted, whether or not it was delivered.
func (e *Emitter) Checkout(ctx context.Context, sessionID string) (domain.OrderRecord, error) {
	var order domain.OrderRecord

	err := e.carts.Drain(ctx, sessionID, func(cart domain.Cart) error {
		order = e.build(sessionID, cart)

		delivered := true
		if err := e.analytics.Emit(ctx, analytics.Event{Topic: analytics.TopicOrders, Key: order.ID, Payload: order}); err != nil {
			delivered = false
			e.logger.Error("Order event not delivered",
				zap.String("topic", analytics.TopicOrders),
				zap.String("order_id", order.ID),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
		e.metrics.RecordOrder(ctx, delivered)

		if err := e.ledger.Record(context.WithoutCancel(ctx), order, delivered); err != nil {
			e.logger.Error("Failed to record order in ledger",
				zap.String("order_id", order.ID),
				zap.Bool("analytics_delivered", delivered),
				zap.Error(err),
			)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCart) {
			return domain.OrderRecord{}, err
		}
		if order.ID == "" {
			return domain.OrderRecord{}, fmt.Errorf("failed to check out: %w", err)
		}
		// The order was placed but the cart could not be cleared.
		e.logger.Error("Failed to clear cart after checkout",
			zap.String("order_id", order.ID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	e.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("session_id", sessionID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	return order, nil
}

func (e *Emitter) build(sessionID string, cart domain.Cart) domain.OrderRecord {
	now := e.now().UTC()

	var items []domain.OrderItem
	combinationID := ""
	for _, look := range cart.Looks {
		if look.CombinationID != "" {
			combinationID = look.CombinationID
		}
		for _, line := range look.Items {
			items = append(items, domain.OrderItem{
				ProductID: line.Product.ID,
				Name:      line.Product.Name,
				Price:     line.Product.Price.InexactFloat64(),
				Color:     line.Product.Color,
				Size:      line.Size,
				LookID:    look.ID,
			})
		}
	}

	return domain.OrderRecord{
		ID:            NewOrderID(now),
		CombinationID: combinationID,
		SessionID:     sessionID,
		Items:         items,
		Total:         cart.Total(),
		EstimatedDelivery: domain.DeliveryWindow{
			From: now.AddDate(0, 0, e.cfg.DeliveryMinDays),
			To:   now.AddDate(0, 0, e.cfg.DeliveryMaxDays),
		},
		CreatedAt: now,
	}
}

// NewOrderID returns an id of the form ORD-YYYYMMDD-XXXXXXXXXXXXXXXX. The
// suffix carries 64 random bits taken from the bytes of a v4 UUID that hold
// neither version nor variant.
func NewOrderID(at time.Time) string {
	id := uuid.New()
	var b [8]byte
	copy(b[:4], id[:4])
	copy(b[4:], id[12:])
	return "ORD-" + at.Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(b[:]))
}
