package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Service resolves products for display and for cart snapshotting. Reads go
// through the cache when one is configured; the repository stays
// authoritative at the instant of each lookup.
type Service interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

type service struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group
}

func NewService(repo Repository, cache Cache) Service {
	return &service{
		repo:  repo,
		cache: cache,
	}
}

func (s *service) GetProduct(ctx context.Context, id string) (*Product, error) {
	if s.cache == nil {
		return s.repo.GetByID(ctx, id)
	}

	// singleflight collapses concurrent misses for the same product.
	v, err, _ := s.sfg.Do(id, func() (interface{}, error) {
		p, err := s.cache.Get(ctx, id)
		if err == nil {
			return p, nil
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("product_id", id).Msg("service: cache get failed, falling through to repository")
		}

		p, err = s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("service: failed to fetch product: %w", err)
		}

		go func() {
			if err := s.cache.Set(context.Background(), p); err != nil {
				log.Warn().Err(err).Str("product_id", id).Msg("service: cache set failed")
			}
		}()

		return p, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Product), nil
}

func (s *service) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}
