package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlineshop/backend/internal/catalog"
)

type mockRepository struct {
	getByIDFunc func(ctx context.Context, id string) (*catalog.Product, error)
	listFunc    func(ctx context.Context) ([]catalog.Product, error)
	calls       int
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	m.calls++
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) List(ctx context.Context) ([]catalog.Product, error) {
	return m.listFunc(ctx)
}

type mockCache struct {
	getFunc    func(ctx context.Context, productID string) (*catalog.Product, error)
	setFunc    func(ctx context.Context, product *catalog.Product) error
	deleteFunc func(ctx context.Context, productID string) error
}

func (m *mockCache) Get(ctx context.Context, productID string) (*catalog.Product, error) {
	return m.getFunc(ctx, productID)
}

func (m *mockCache) Set(ctx context.Context, product *catalog.Product) error {
	if m.setFunc != nil {
		return m.setFunc(ctx, product)
	}
	return nil
}

func (m *mockCache) Delete(ctx context.Context, productID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, productID)
	}
	return nil
}

func fixtureProduct(id string) *catalog.Product {
	return &catalog.Product{
		ID:          id,
		Title:       "Chair",
		Price:       decimal.RequireFromString("10.00"),
		Colors:      []string{"red"},
		CompanyName: "acme",
	}
}

func TestCatalogService_GetProduct(t *testing.T) {
	t.Run("cache hit skips the repository", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id string) (*catalog.Product, error) {
				t.Fatal("repository must not be hit on a cache hit")
				return nil, nil
			},
		}
		cache := &mockCache{
			getFunc: func(ctx context.Context, productID string) (*catalog.Product, error) {
				return fixtureProduct(productID), nil
			},
		}

		svc := catalog.NewService(repo, cache)

		p, err := svc.GetProduct(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
	})

	t.Run("cache miss falls through and backfills", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id string) (*catalog.Product, error) {
				return fixtureProduct(id), nil
			},
		}
		backfilled := make(chan string, 1)
		cache := &mockCache{
			getFunc: func(ctx context.Context, productID string) (*catalog.Product, error) {
				return nil, catalog.ErrCacheMiss
			},
			setFunc: func(ctx context.Context, product *catalog.Product) error {
				backfilled <- product.ID
				return nil
			},
		}

		svc := catalog.NewService(repo, cache)

		p, err := svc.GetProduct(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
		assert.Equal(t, 1, repo.calls)

		select {
		case id := <-backfilled:
			assert.Equal(t, "p1", id)
		case <-time.After(time.Second):
			t.Fatal("cache was never backfilled")
		}
	})

	t.Run("cache failure does not hide the product", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id string) (*catalog.Product, error) {
				return fixtureProduct(id), nil
			},
		}
		cache := &mockCache{
			getFunc: func(ctx context.Context, productID string) (*catalog.Product, error) {
				return nil, errors.New("redis down")
			},
		}

		svc := catalog.NewService(repo, cache)

		p, err := svc.GetProduct(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
	})

	t.Run("not found propagates", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id string) (*catalog.Product, error) {
				return nil, catalog.ErrProductNotFound
			},
		}
		cache := &mockCache{
			getFunc: func(ctx context.Context, productID string) (*catalog.Product, error) {
				return nil, catalog.ErrCacheMiss
			},
		}

		svc := catalog.NewService(repo, cache)

		_, err := svc.GetProduct(context.Background(), "ghost")
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})

	t.Run("works without a cache", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id string) (*catalog.Product, error) {
				return fixtureProduct(id), nil
			},
		}

		svc := catalog.NewService(repo, nil)

		p, err := svc.GetProduct(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
	})
}
