package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/onlineshop/backend/internal/catalog"
)

// ProductResolver supplies the authoritative product state at the instant of
// the call. AddItem re-resolves the price on every call; nothing is cached at
// this layer.
type ProductResolver interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type Service interface {
	GetCart(ctx context.Context, userID string) (*Cart, error)
	AddItem(ctx context.Context, userID, productID string, amount int) (*Cart, error)
	RemoveItem(ctx context.Context, userID, productID string, amount int) (*Cart, error)
	Clear(ctx context.Context, userID string) error
}

type service struct {
	repo    Repository
	catalog ProductResolver

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo Repository, catalog ProductResolver) Service {
	return &service{
		repo:    repo,
		catalog: catalog,
		locks:   make(map[string]*sync.Mutex),
	}
}

// userLock serializes mutations of a single user's cart. Different users
// never contend on the same lock.
func (s *service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *service) GetCart(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return emptyCart(userID), nil
		}
		return nil, fmt.Errorf("service: failed to fetch cart: %w", err)
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, userID, productID string, amount int) (*Cart, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to resolve product %s: %w", productID, err)
	}

	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	c, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := c.AddItem(product, amount); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, c); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to save cart after add")
		return nil, fmt.Errorf("service: failed to save cart: %w", err)
	}

	return c, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, productID string, amount int) (*Cart, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	c, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			// Nothing to remove from.
			return emptyCart(userID), nil
		}
		return nil, fmt.Errorf("service: failed to fetch cart: %w", err)
	}

	if err := c.RemoveItem(productID, amount); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, c); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to save cart after remove")
		return nil, fmt.Errorf("service: failed to save cart: %w", err)
	}

	return c, nil
}

// Clear empties the user's cart lines. Clearing an absent or already-empty
// cart is a no-op, which keeps checkout retries safe.
func (s *service) Clear(ctx context.Context, userID string) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	c, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil
		}
		return fmt.Errorf("service: failed to fetch cart: %w", err)
	}

	if c.IsEmpty() {
		return nil
	}

	c.Clear()

	if err := s.repo.Save(ctx, c); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to save cleared cart")
		return fmt.Errorf("service: failed to save cleared cart: %w", err)
	}

	return nil
}

func (s *service) loadOrCreate(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, fmt.Errorf("service: failed to fetch cart: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate cart id: %w", err)
	}

	c = emptyCart(userID)
	c.ID = id.String()
	c.CreatedAt = time.Now().UTC()
	return c, nil
}

func emptyCart(userID string) *Cart {
	c := &Cart{UserID: userID}
	c.recalculate()
	return c
}
