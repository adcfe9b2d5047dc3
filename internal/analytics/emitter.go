package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"outfit-studio/internal/config"
	"outfit-studio/internal/metrics"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const defaultInitialBackoff = 200 * time.Millisecond

// Emitter wraps a Publisher with bounded synchronous delivery and a
// background queue for best-effort events.
type Emitter struct {
	publisher Publisher
	cfg       config.AnalyticsConfig
	metrics   *metrics.AppMetrics
	logger    *zap.Logger

	initialBackoff time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

func NewEmitter(publisher Publisher, cfg config.AnalyticsConfig, m *metrics.AppMetrics, logger *zap.Logger) *Emitter {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.SyncAttempts == 0 {
		cfg.SyncAttempts = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	e := &Emitter{
		publisher:      publisher,
		cfg:            cfg,
		metrics:        m,
		logger:         logger,
		initialBackoff: defaultInitialBackoff,
		queue:          make(chan Event, cfg.QueueSize),
		done:           make(chan struct{}),
	}
	go e.run()
	return e
}

// Emit delivers event before returning. It outlives cancellation of ctx but
// is bounded by the configured timeout and attempt count.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	ctx = context.WithoutCancel(ctx)
	if err := e.deliver(ctx, event, e.cfg.SyncAttempts); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// EmitAsync queues event for background delivery and never blocks. A full
// queue drops the event.
func (e *Emitter) EmitAsync(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.logFailure(event, fmt.Errorf("emitter closed"), 0)
		return
	}

	select {
	case e.queue <- event:
	default:
		e.logFailure(event, fmt.Errorf("queue full"), 0)
		e.metrics.RecordAnalytics(context.Background(), event.Topic, false)
	}
}

// Close stops accepting events, drains the queue until ctx expires and
// closes the publisher.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
	case <-ctx.Done():
		e.logger.Warn("Analytics queue not drained before shutdown", zap.Int("pending", len(e.queue)))
	}
	return e.publisher.Close()
}

func (e *Emitter) run() {
	defer close(e.done)
	for event := range e.queue {
		_ = e.deliver(context.Background(), event, e.cfg.MaxAttempts)
	}
}

func (e *Emitter) deliver(ctx context.Context, event Event, attempts uint) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialBackoff
	b.MaxInterval = 5 * time.Second

	tries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		return struct{}{}, e.publisher.Publish(attemptCtx, event)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts))

	e.metrics.RecordAnalytics(ctx, event.Topic, err == nil)
	if err != nil {
		e.logFailure(event, err, tries)
		return err
	}
	return nil
}

func (e *Emitter) logFailure(event Event, err error, attempts int) {
	e.logger.Error("analytics delivery failed",
		zap.String("topic", event.Topic),
		zap.String("key", event.Key),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
}
