package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"outfit-studio/internal/config"
	"outfit-studio/internal/domain"
	"outfit-studio/internal/metrics"
	"outfit-studio/internal/storage"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client runs one generation: load inputs, call the provider with bounded
// retries and store the result.
type Client struct {
	provider Provider
	images   ImageSource
	store    storage.ArtifactStore
	cfg      config.GenerationConfig
	metrics  *metrics.AppMetrics
	logger   *zap.Logger
}

func NewClient(provider Provider, images ImageSource, store storage.ArtifactStore, cfg config.GenerationConfig, m *metrics.AppMetrics, logger *zap.Logger) *Client {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Client{
		provider: provider,
		images:   images,
		store:    store,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// Generate submits instruction with the images behind imageRefs, in order,
// and returns a reference to the stored result.
func (c *Client) Generate(ctx context.Context, instruction string, imageRefs []string) (domain.ImageArtifact, error) {
	if strings.TrimSpace(instruction) == "" || len(imageRefs) == 0 {
		return domain.ImageArtifact{}, domain.ErrInvalidSelection
	}

	images, err := c.images.Load(ctx, imageRefs)
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			return domain.ImageArtifact{}, fmt.Errorf("%w: %w", domain.ErrInvalidSelection, err)
		}
		return domain.ImageArtifact{}, fmt.Errorf("failed to load product images: %w", err)
	}

	result, err := c.call(ctx, Request{Instruction: instruction, Images: images})
	if err != nil {
		return domain.ImageArtifact{}, err
	}

	name := artifactName(result.ContentType)
	ref, err := c.store.Put(ctx, name, result.ContentType, result.Data)
	if err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("failed to store generated image: %w", err)
	}

	c.logger.Info("Generated look",
		zap.String("provider", c.provider.Name()),
		zap.String("artifact", ref),
		zap.Int("images", len(images)),
	)

	return domain.ImageArtifact{
		Ref:         ref,
		Name:        name,
		ContentType: result.ContentType,
		Size:        len(result.Data),
	}, nil
}

func (c *Client) call(ctx context.Context, req Request) (*Result, error) {
	var lastErr *ProviderError
	attempt := 0

	operation := func() (*Result, error) {
		attempt++
		c.metrics.RecordGenerationAttempt(ctx, c.provider.Name())

		attemptCtx := ctx
		if c.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}

		res, err := c.provider.Edit(attemptCtx, req)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		var pe *ProviderError
		if !errors.As(err, &pe) {
			pe = transient(0, "unexpected provider error", err)
		}
		lastErr = pe

		if !pe.Transient() {
			return nil, backoff.Permanent(pe)
		}
		if pe.Ambiguous && !c.cfg.RetryAmbiguousTimeouts {
			return nil, backoff.Permanent(pe)
		}
		if pe.RetryAfter > 0 {
			return nil, &backoff.RetryAfterError{Duration: pe.RetryAfter}
		}
		return nil, pe
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("Generation attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(lastErr),
			)
		}),
	)
	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if !lastErr.Transient() {
		c.logger.Warn("Generation rejected by provider",
			zap.Int("status", lastErr.StatusCode),
			zap.String("code", lastErr.Code),
			zap.String("reason", lastErr.Reason),
		)
		return nil, lastErr
	}

	c.logger.Error("Generation failed",
		zap.Int("attempts", attempt),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrGenerationFailed, attempt, lastErr)
}

func (c *Client) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.cfg.InitialBackoff > 0 {
		b.InitialInterval = c.cfg.InitialBackoff
	}
	if c.cfg.MaxBackoff > 0 {
		b.MaxInterval = c.cfg.MaxBackoff
	}
	if c.cfg.BackoffMultiplier > 1 {
		b.Multiplier = c.cfg.BackoffMultiplier
	}
	b.Reset()
	return b
}

func artifactName(contentType string) string {
	ext := "png"
	switch contentType {
	case "image/jpeg":
		ext = "jpeg"
	case "image/webp":
		ext = "webp"
	}
	return "generated_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "." + ext
}
