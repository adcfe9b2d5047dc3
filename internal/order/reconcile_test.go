package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"outfit-studio/internal/analytics"
	"outfit-studio/internal/config"
	"outfit-studio/internal/domain"
	"outfit-studio/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errNoSuchOrder = errors.New("no such order")

func (l *memoryLedger) FindByID(_ context.Context, id string) (*domain.OrderRecord, bool, error) {
	for i, o := range l.orders {
		if o.ID == id {
			order := o
			return &order, l.delivered[i], nil
		}
	}
	return nil, false, errNoSuchOrder
}

func (l *memoryLedger) ListUndelivered(_ context.Context, limit int) ([]domain.OrderRecord, error) {
	var out []domain.OrderRecord
	for i, o := range l.orders {
		if !l.delivered[i] && len(out) < limit {
			out = append(out, o)
		}
	}
	return out, nil
}

func (l *memoryLedger) MarkDelivered(_ context.Context, id string) error {
	for i, o := range l.orders {
		if o.ID == id {
			l.delivered[i] = true
			return nil
		}
	}
	return errNoSuchOrder
}

func TestReconcilerRedeliversLostOrderEvents(t *testing.T) {
	store := session.NewStore(session.NewMemoryKV(), time.Hour, nil, zap.NewNop())
	seedCart(t, store)

	ledger := &memoryLedger{}
	failing := &stubEmitter{err: analytics.ErrDeliveryFailed}
	emitter := NewEmitter(store, failing, ledger, config.OrderConfig{}, nil, zap.NewNop())

	order, err := emitter.Checkout(context.Background(), "s1")
	require.NoError(t, err)

	events := &stubEmitter{}
	reconciler := NewReconciler(ledger, events, zap.NewNop())

	pending, err := reconciler.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, order.ID, pending[0].ID)

	redelivered, err := reconciler.Redeliver(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, redelivered.ID)
	require.Len(t, events.events, 1)
	assert.Equal(t, analytics.TopicOrders, events.events[0].Topic)
	assert.Equal(t, order.ID, events.events[0].Key)

	pending, err = reconciler.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = reconciler.Redeliver(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrAlreadyDelivered)
}

func TestReconcilerKeepsOrderPendingWhenDeliveryFails(t *testing.T) {
	ledger := &memoryLedger{
		orders:    []domain.OrderRecord{{ID: "ORD-20260314-ABCDEF", SessionID: "s1"}},
		delivered: []bool{false},
	}
	reconciler := NewReconciler(ledger, &stubEmitter{err: analytics.ErrDeliveryFailed}, zap.NewNop())

	_, err := reconciler.Redeliver(context.Background(), "ORD-20260314-ABCDEF")
	assert.ErrorIs(t, err, analytics.ErrDeliveryFailed)
	assert.False(t, ledger.delivered[0])

	_, err = reconciler.Redeliver(context.Background(), "ORD-19990101-000000")
	assert.ErrorIs(t, err, errNoSuchOrder)
}
