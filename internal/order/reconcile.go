package order

import (
	"context"
	"errors"
	"fmt"

	"outfit-studio/internal/analytics"
	"outfit-studio/internal/domain"

	"go.uber.org/zap"
)

var ErrAlreadyDelivered = errors.New("order event already delivered")

// LedgerReader is the operator view of the order ledger.
type LedgerReader interface {
	FindByID(ctx context.Context, id string) (*domain.OrderRecord, bool, error)
	ListUndelivered(ctx context.Context, limit int) ([]domain.OrderRecord, error)
	MarkDelivered(ctx context.Context, id string) error
}

// Reconciler re-sends orders events that were lost at checkout.
type Reconciler struct {
	ledger    LedgerReader
	analytics SyncEmitter
	logger    *zap.Logger
}

func NewReconciler(ledger LedgerReader, events SyncEmitter, logger *zap.Logger) *Reconciler {
	return &Reconciler{ledger: ledger, analytics: events, logger: logger}
}

// Pending lists orders whose analytics event was never delivered, oldest first.
func (r *Reconciler) Pending(ctx context.Context, limit int) ([]domain.OrderRecord, error) {
	return r.ledger.ListUndelivered(ctx, limit)
}

// Redeliver emits the orders event for one ledger entry and marks it delivered.
func (r *Reconciler) Redeliver(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	order, delivered, err := r.ledger.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if delivered {
		return order, ErrAlreadyDelivered
	}

	if err := r.analytics.Emit(ctx, analytics.Event{Topic: analytics.TopicOrders, Key: order.ID, Payload: *order}); err != nil {
		r.logger.Warn("Order event redelivery failed",
			zap.String("topic", analytics.TopicOrders),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := r.ledger.MarkDelivered(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("failed to mark order %s delivered: %w", order.ID, err)
	}

	r.logger.Info("Order event redelivered", zap.String("order_id", order.ID))
	return order, nil
}
