// Package session keeps each shopper's selection, last generated look and
// cart. All writes for one session are serialised and written through to
// the KV backend.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"outfit-studio/internal/domain"
	"outfit-studio/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrCorruptState   = errors.New("corrupt session state")
	ErrInvalidSession = errors.New("invalid session id")
)

const (
	entryCart = "cart"
	entryLook = "look"
)

// LookState is the transient half of a session: what is being composed and
// the last successful generation. Generation counts started generations so
// late results of superseded requests can be recognised.
type LookState struct {
	Selection  domain.Selection      `json:"selection"`
	Look       *domain.GeneratedLook `json:"look,omitempty"`
	Generation uint64                `json:"generation"`
}

type Store struct {
	kv      KV
	ttl     time.Duration
	locks   *Locker
	metrics *metrics.AppMetrics
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

func NewStore(kv KV, ttl time.Duration, m *metrics.AppMetrics, logger *zap.Logger) *Store {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Store{
		kv:      kv,
		ttl:     ttl,
		locks:   NewLocker(),
		metrics: m,
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

func key(sessionID, entry string) string {
	return "session:" + sessionID + ":" + entry
}

func (s *Store) lock(sessionID string) (func(), error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	return s.locks.Lock(sessionID), nil
}

// load decodes entry. Missing keys yield the zero value; values that do not
// decode or fail valid are logged, deleted and treated as missing.
func load[T any](ctx context.Context, s *Store, sessionID, entry string, valid func(T) error) (T, error) {
	var v T
	k := key(sessionID, entry)
	raw, err := s.kv.Get(ctx, k)
	if errors.Is(err, ErrKeyNotFound) {
		return v, nil
	}
	if err != nil {
		return v, fmt.Errorf("failed to load session %s: %w", entry, err)
	}

	err = json.Unmarshal(raw, &v)
	if err == nil && valid != nil {
		err = valid(v)
	}
	if err != nil {
		s.logger.Warn("Discarding unreadable session state",
			zap.String("session_id", sessionID),
			zap.String("entry", entry),
			zap.Error(fmt.Errorf("%w: %w", ErrCorruptState, err)),
		)
		s.metrics.RecordStateRecovered(ctx, entry)
		if err := s.kv.Delete(ctx, k); err != nil {
			s.logger.Error("Failed to delete corrupt session state", zap.String("key", k), zap.Error(err))
		}
		var zero T
		return zero, nil
	}
	return v, nil
}

// validateLooks rejects stored looks that decode but could never have been
// written by AddLook.
func validateLooks(looks []domain.CartLook) error {
	for i, look := range looks {
		if look.ID == "" {
			return fmt.Errorf("look %d has no id", i)
		}
		if len(look.Items) == 0 {
			return fmt.Errorf("look %s has no items", look.ID)
		}
		for _, line := range look.Items {
			if line.Product.ID == "" || line.Size == "" {
				return fmt.Errorf("look %s has an incomplete item", look.ID)
			}
		}
	}
	return nil
}

func (s *Store) save(ctx context.Context, sessionID, entry string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", entry, err)
	}
	if err := s.kv.Set(ctx, key(sessionID, entry), raw, s.ttl); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", entry, err)
	}
	return nil
}

func (s *Store) loadCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	looks, err := load(ctx, s, sessionID, entryCart, validateLooks)
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.Cart{Looks: looks}, nil
}

func (s *Store) saveCart(ctx context.Context, sessionID string, cart domain.Cart) error {
	if cart.IsEmpty() {
		return s.save(ctx, sessionID, entryCart, []domain.CartLook{})
	}
	return s.save(ctx, sessionID, entryCart, cart.Looks)
}

// Snapshot returns the current cart.
func (s *Store) Snapshot(ctx context.Context, sessionID string) (domain.Cart, error) {
	unlock, err := s.lock(sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer unlock()
	return s.loadCart(ctx, sessionID)
}

// AddLook commits items with their chosen sizes to the cart. sizes maps
// product id to size and must cover every item. Adding the same image twice
// returns the existing look.
func (s *Store) AddLook(ctx context.Context, sessionID string, items []domain.ProductRecord, sizes map[string]string, imageRef, combinationID string) (domain.CartLook, error) {
	if len(items) == 0 {
		return domain.CartLook{}, domain.ErrInvalidSelection
	}
	lines := make([]domain.CartLine, len(items))
	for i, item := range items {
		size := sizes[item.ID]
		if size == "" {
			return domain.CartLook{}, fmt.Errorf("%w: %s", domain.ErrIncompleteSizing, item.ID)
		}
		if !item.HasSize(size) {
			return domain.CartLook{}, fmt.Errorf("%w: %s in %s", domain.ErrInvalidSize, item.ID, size)
		}
		lines[i] = domain.CartLine{Product: item, Size: size}
	}

	unlock, err := s.lock(sessionID)
	if err != nil {
		return domain.CartLook{}, err
	}
	defer unlock()

	cart, err := s.loadCart(ctx, sessionID)
	if err != nil {
		return domain.CartLook{}, err
	}
	for _, look := range cart.Looks {
		if imageRef != "" && look.ImageRef == imageRef {
			return look, nil
		}
	}

	look := domain.CartLook{
		ID:            s.newID(),
		Items:         lines,
		ImageRef:      imageRef,
		CombinationID: combinationID,
		CreatedAt:     s.now().UTC(),
	}
	cart.Looks = append(cart.Looks, look)
	if err := s.saveCart(ctx, sessionID, cart); err != nil {
		return domain.CartLook{}, err
	}
	return look, nil
}

// RemoveLook drops a whole look from the cart.
func (s *Store) RemoveLook(ctx context.Context, sessionID, lookID string) (domain.Cart, error) {
	return s.mutateCart(ctx, sessionID, func(cart *domain.Cart) error {
		idx := cart.FindLook(lookID)
		if idx < 0 {
			return domain.ErrLookNotFound
		}
		cart.Looks = append(cart.Looks[:idx], cart.Looks[idx+1:]...)
		return nil
	})
}

// RemoveItem drops one product from a look, and the look itself once it is
// empty.
func (s *Store) RemoveItem(ctx context.Context, sessionID, lookID, productID string) (domain.Cart, error) {
	return s.mutateCart(ctx, sessionID, func(cart *domain.Cart) error {
		idx := cart.FindLook(lookID)
		if idx < 0 {
			return domain.ErrLookNotFound
		}
		look := &cart.Looks[idx]
		for i, line := range look.Items {
			if line.Product.ID == productID {
				look.Items = append(look.Items[:i], look.Items[i+1:]...)
				if len(look.Items) == 0 {
					cart.Looks = append(cart.Looks[:idx], cart.Looks[idx+1:]...)
				}
				return nil
			}
		}
		return domain.ErrItemNotFound
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	_, err := s.mutateCart(ctx, sessionID, func(cart *domain.Cart) error {
		cart.Looks = nil
		return nil
	})
	return err
}

// Drain hands the cart to fn under the session lock and clears it
// afterwards, whatever fn returns. An empty cart fails with
// domain.ErrEmptyCart without calling fn.
func (s *Store) Drain(ctx context.Context, sessionID string, fn func(domain.Cart) error) error {
	unlock, err := s.lock(sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	cart, err := s.loadCart(ctx, sessionID)
	if err != nil {
		return err
	}
	if cart.IsEmpty() {
		return domain.ErrEmptyCart
	}

	fnErr := fn(cart)
	if err := s.saveCart(ctx, sessionID, domain.Cart{}); err != nil {
		return errors.Join(fnErr, err)
	}
	return fnErr
}

func (s *Store) mutateCart(ctx context.Context, sessionID string, fn func(*domain.Cart) error) (domain.Cart, error) {
	unlock, err := s.lock(sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer unlock()

	cart, err := s.loadCart(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := fn(&cart); err != nil {
		return domain.Cart{}, err
	}
	if err := s.saveCart(ctx, sessionID, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// LookState returns the current selection and last look.
func (s *Store) LookState(ctx context.Context, sessionID string) (LookState, error) {
	unlock, err := s.lock(sessionID)
	if err != nil {
		return LookState{}, err
	}
	defer unlock()

	return load[LookState](ctx, s, sessionID, entryLook, nil)
}

// UpdateLookState applies fn to the look state and persists the result.
// Nothing is written when fn fails.
func (s *Store) UpdateLookState(ctx context.Context, sessionID string, fn func(*LookState) error) (LookState, error) {
	unlock, err := s.lock(sessionID)
	if err != nil {
		return LookState{}, err
	}
	defer unlock()

	st, err := load[LookState](ctx, s, sessionID, entryLook, nil)
	if err != nil {
		return LookState{}, err
	}
	if err := fn(&st); err != nil {
		return LookState{}, err
	}
	if err := s.save(ctx, sessionID, entryLook, st); err != nil {
		return LookState{}, err
	}
	return st, nil
}

func (s *Store) AddToSelection(ctx context.Context, sessionID, productID string) (domain.Selection, error) {
	st, err := s.UpdateLookState(ctx, sessionID, func(st *LookState) error {
		st.Selection.Add(productID)
		return nil
	})
	return st.Selection, err
}

func (s *Store) RemoveFromSelection(ctx context.Context, sessionID, productID string) (domain.Selection, error) {
	st, err := s.UpdateLookState(ctx, sessionID, func(st *LookState) error {
		st.Selection.Remove(productID)
		return nil
	})
	return st.Selection, err
}

// ResetSelection clears the selection and the last look.
func (s *Store) ResetSelection(ctx context.Context, sessionID string) error {
	_, err := s.UpdateLookState(ctx, sessionID, func(st *LookState) error {
		st.Selection = nil
		st.Look = nil
		return nil
	})
	return err
}

func (s *Store) Selection(ctx context.Context, sessionID string) (domain.Selection, error) {
	st, err := s.LookState(ctx, sessionID)
	return st.Selection, err
}

// BeginGeneration marks a new generation for the session and returns its
// sequence number with the selection it is based on.
func (s *Store) BeginGeneration(ctx context.Context, sessionID string) (uint64, domain.Selection, error) {
	st, err := s.UpdateLookState(ctx, sessionID, func(st *LookState) error {
		if st.Selection.Len() == 0 {
			return domain.ErrInvalidSelection
		}
		st.Generation++
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return st.Generation, st.Selection, nil
}

// CompleteGeneration stores look as the last look unless a later generation
// was started in the meantime. It reports whether the look was stored.
func (s *Store) CompleteGeneration(ctx context.Context, sessionID string, seq uint64, look domain.GeneratedLook) (bool, error) {
	stored := false
	_, err := s.UpdateLookState(ctx, sessionID, func(st *LookState) error {
		if st.Generation != seq {
			return nil
		}
		st.Look = &look
		stored = true
		return nil
	})
	return stored, err
}
