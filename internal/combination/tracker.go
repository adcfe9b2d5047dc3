// Package combination identifies garment sets independent of pick order and
// reports them to analytics.
package combination

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"outfit-studio/internal/analytics"
	"outfit-studio/internal/domain"

	"go.uber.org/zap"
)

// ID derives the combination id from the sorted member ids. Order and
// duplicates of the input do not matter.
func ID(ids []string) string {
	sorted := domain.Selection(dedupe(ids)).Sorted()
	sum := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	h := hex.EncodeToString(sum[:])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

func dedupe(ids []string) []string {
	var s domain.Selection
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// AsyncEmitter is the fire-and-forget side of analytics.Emitter.
type AsyncEmitter interface {
	EmitAsync(event analytics.Event)
}

type Tracker struct {
	emitter AsyncEmitter
	logger  *zap.Logger
	now     func() time.Time
}

func NewTracker(emitter AsyncEmitter, logger *zap.Logger) *Tracker {
	return &Tracker{emitter: emitter, logger: logger, now: time.Now}
}

// Record builds the combination for items and queues it on the
// combinations topic. Delivery failures never surface to the caller.
func (t *Tracker) Record(ctx context.Context, items []domain.ProductRecord, artifactRef, sessionID string) domain.CombinationRecord {
	ids := make([]string, len(items))
	eventItems := make([]domain.EventItem, len(items))
	for i, item := range items {
		ids[i] = item.ID
		eventItems[i] = domain.NewEventItem(item)
	}

	rec := domain.CombinationRecord{
		ID:        ID(ids),
		SessionID: sessionID,
		ImageRef:  artifactRef,
		Items:     eventItems,
		CreatedAt: t.now().UTC(),
	}

	if t.emitter != nil {
		t.emitter.EmitAsync(analytics.Event{
			Topic:   analytics.TopicCombinations,
			Key:     rec.ID,
			Payload: rec,
		})
	}

	t.logger.Debug("Combination recorded",
		zap.String("combination_id", rec.ID),
		zap.String("session_id", sessionID),
		zap.Int("items", len(items)),
	)
	return rec
}
