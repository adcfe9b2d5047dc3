package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/combination"
	"outfit-studio/internal/domain"
	"outfit-studio/internal/generation"
	"outfit-studio/internal/metrics"
	"outfit-studio/internal/prompt"
	"outfit-studio/internal/session"

	"go.uber.org/zap"
)

// ErrSuperseded is returned when a newer generation was started for the
// session while this one was running. The artifact is kept but not shown.
var ErrSuperseded = errors.New("generation superseded by a newer request")

// Generator produces one image for an instruction and ordered product images.
type Generator interface {
	Generate(ctx context.Context, instruction string, imageRefs []string) (domain.ImageArtifact, error)
}

type CombinationRecorder interface {
	Record(ctx context.Context, items []domain.ProductRecord, artifactRef, sessionID string) domain.CombinationRecord
}

type OrderPlacer interface {
	Checkout(ctx context.Context, sessionID string) (domain.OrderRecord, error)
}

// StudioState is what the shopper currently composes.
type StudioState struct {
	Selection []domain.ProductRecord `json:"selection"`
	Look      *domain.GeneratedLook  `json:"look,omitempty"`
}

// StudioService defines the shopper-facing commands
type StudioService interface {
	Studio(ctx context.Context, sessionID string) (*StudioState, error)
	AddToSelection(ctx context.Context, sessionID, productID string) (domain.Selection, error)
	RemoveFromSelection(ctx context.Context, sessionID, productID string) (domain.Selection, error)
	ResetSelection(ctx context.Context, sessionID string) error
	Generate(ctx context.Context, sessionID string, productIDs []string) (*domain.GeneratedLook, error)
	AddToCart(ctx context.Context, sessionID string, sizes map[string]string) (*domain.CartLook, error)
	RemoveLook(ctx context.Context, sessionID, lookID string) (domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID, lookID, productID string) (domain.Cart, error)
	ClearCart(ctx context.Context, sessionID string) error
	Cart(ctx context.Context, sessionID string) (domain.Cart, error)
	Checkout(ctx context.Context, sessionID string) (*domain.OrderRecord, error)
}

type studioService struct {
	catalog   catalog.Accessor
	prompts   *prompt.Builder
	generator Generator
	tracker   CombinationRecorder
	sessions  *session.Store
	orders    OrderPlacer
	metrics   *metrics.AppMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudioService creates a new instance of StudioService
func NewStudioService(
	accessor catalog.Accessor,
	prompts *prompt.Builder,
	generator Generator,
	tracker CombinationRecorder,
	sessions *session.Store,
	orders OrderPlacer,
	m *metrics.AppMetrics,
	logger *zap.Logger,
) StudioService {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &studioService{
		catalog:   accessor,
		prompts:   prompts,
		generator: generator,
		tracker:   tracker,
		sessions:  sessions,
		orders:    orders,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Studio returns the resolved selection and the last generated look.
// Products that left the catalog are skipped.
func (s *studioService) Studio(ctx context.Context, sessionID string) (*StudioState, error) {
	st, err := s.sessions.LookState(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := &StudioState{Selection: []domain.ProductRecord{}, Look: st.Look}
	for _, id := range st.Selection {
		p, err := s.catalog.Lookup(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to resolve selection: %w", err)
		}
		state.Selection = append(state.Selection, *p)
	}
	return state, nil
}

func (s *studioService) AddToSelection(ctx context.Context, sessionID, productID string) (domain.Selection, error) {
	if _, err := catalog.Resolve(ctx, s.catalog, []string{productID}); err != nil {
		return nil, err
	}
	return s.sessions.AddToSelection(ctx, sessionID, productID)
}

func (s *studioService) RemoveFromSelection(ctx context.Context, sessionID, productID string) (domain.Selection, error) {
	return s.sessions.RemoveFromSelection(ctx, sessionID, productID)
}

func (s *studioService) ResetSelection(ctx context.Context, sessionID string) error {
	return s.sessions.ResetSelection(ctx, sessionID)
}

// Generate composes a look for the session. With productIDs the selection is
// replaced first; otherwise the stored selection is used.
func (s *studioService) Generate(ctx context.Context, sessionID string, productIDs []string) (*domain.GeneratedLook, error) {
	started := s.now()

	look, err := s.generate(ctx, sessionID, productIDs)
	switch {
	case err == nil:
		s.metrics.RecordGeneration(ctx, metrics.OutcomeSuccess, started)
	case errors.Is(err, domain.ErrInvalidSelection):
		s.metrics.RecordGeneration(ctx, metrics.OutcomeInvalid, started)
	case errors.Is(err, generation.ErrGenerationRejected):
		s.metrics.RecordGeneration(ctx, metrics.OutcomeRejected, started)
	case errors.Is(err, ErrSuperseded):
		s.metrics.RecordGeneration(ctx, metrics.OutcomeSuccess, started)
	default:
		s.metrics.RecordGeneration(ctx, metrics.OutcomeFailed, started)
	}
	return look, err
}

func (s *studioService) generate(ctx context.Context, sessionID string, productIDs []string) (*domain.GeneratedLook, error) {
	if len(productIDs) > 0 {
		selection, err := domain.NewSelection(productIDs...)
		if err != nil {
			return nil, err
		}
		if _, err := catalog.Resolve(ctx, s.catalog, selection.IDs()); err != nil {
			return nil, err
		}
		_, err = s.sessions.UpdateLookState(ctx, sessionID, func(st *session.LookState) error {
			st.Selection = selection
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	seq, selection, err := s.sessions.BeginGeneration(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	items, err := catalog.Resolve(ctx, s.catalog, selection.IDs())
	if err != nil {
		return nil, err
	}

	p, err := s.prompts.Build(items)
	if err != nil {
		return nil, err
	}

	artifact, err := s.generator.Generate(ctx, p.Instruction, p.ImageRefs)
	if err != nil {
		s.logger.Warn("Look generation failed",
			zap.String("session_id", sessionID),
			zap.Strings("items", selection.IDs()),
			zap.Error(err),
		)
		return nil, err
	}

	look := domain.GeneratedLook{
		Selection:     selection,
		Items:         items,
		ImageRef:      artifact.Ref,
		CombinationID: combination.ID(selection.IDs()),
		CreatedAt:     s.now().UTC(),
	}

	stored, err := s.sessions.CompleteGeneration(ctx, sessionID, seq, look)
	if err != nil {
		return nil, err
	}
	if !stored {
		s.logger.Info("Discarding superseded generation",
			zap.String("session_id", sessionID),
			zap.Uint64("generation", seq),
			zap.String("artifact", artifact.Ref),
		)
		return nil, ErrSuperseded
	}

	s.tracker.Record(ctx, items, artifact.Ref, sessionID)
	return &look, nil
}

// AddToCart commits the last generated look with one size per item. Prices
// are taken from the catalog at this moment.
func (s *studioService) AddToCart(ctx context.Context, sessionID string, sizes map[string]string) (*domain.CartLook, error) {
	st, err := s.sessions.LookState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st.Look == nil {
		return nil, domain.ErrNoGeneratedLook
	}

	items, err := catalog.Resolve(ctx, s.catalog, st.Look.Selection.IDs())
	if err != nil {
		return nil, err
	}

	look, err := s.sessions.AddLook(ctx, sessionID, items, sizes, st.Look.ImageRef, st.Look.CombinationID)
	if err != nil {
		return nil, err
	}

	imageRef := st.Look.ImageRef
	_, err = s.sessions.UpdateLookState(ctx, sessionID, func(st *session.LookState) error {
		if st.Look != nil && st.Look.ImageRef == imageRef {
			st.Selection = nil
			st.Look = nil
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to reset studio after add to cart", zap.String("session_id", sessionID), zap.Error(err))
	}

	return &look, nil
}

func (s *studioService) RemoveLook(ctx context.Context, sessionID, lookID string) (domain.Cart, error) {
	return s.sessions.RemoveLook(ctx, sessionID, lookID)
}

func (s *studioService) RemoveItem(ctx context.Context, sessionID, lookID, productID string) (domain.Cart, error) {
	return s.sessions.RemoveItem(ctx, sessionID, lookID, productID)
}

func (s *studioService) ClearCart(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

func (s *studioService) Cart(ctx context.Context, sessionID string) (domain.Cart, error) {
	return s.sessions.Snapshot(ctx, sessionID)
}

func (s *studioService) Checkout(ctx context.Context, sessionID string) (*domain.OrderRecord, error) {
	order, err := s.orders.Checkout(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &order, nil
}
