package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlineshop/backend/internal/audit"
	"github.com/onlineshop/backend/internal/cart"
	"github.com/onlineshop/backend/internal/catalog"
	"github.com/onlineshop/backend/internal/checkout"
	"github.com/onlineshop/backend/internal/order"
)

type mockCheckoutCarts struct {
	GetCartFunc func(ctx context.Context, userID string) (*cart.Cart, error)
	ClearFunc   func(ctx context.Context, userID string) error
}

func (m *mockCheckoutCarts) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return m.GetCartFunc(ctx, userID)
}

func (m *mockCheckoutCarts) Clear(ctx context.Context, userID string) error {
	return m.ClearFunc(ctx, userID)
}

type mockOrderService struct {
	CreateOrderFunc func(ctx context.Context, ord *order.Order) (*order.Order, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, ord *order.Order) (*order.Order, error) {
	return m.CreateOrderFunc(ctx, ord)
}

func (m *mockOrderService) GetOrderForUser(ctx context.Context, userID, orderID string) (*order.Order, error) {
	return nil, order.ErrOrderNotFound
}

func (m *mockOrderService) ListOrdersForUser(ctx context.Context, userID string, page, pageSize int) ([]order.Order, int, error) {
	return nil, 0, nil
}

func (m *mockOrderService) ListOrdersCreatedBetween(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	return nil, nil
}

type mockSubmitter struct {
	SubmitFunc func(ctx context.Context, entry audit.Entry) audit.Receipt
}

func (m *mockSubmitter) Submit(ctx context.Context, entry audit.Entry) audit.Receipt {
	return m.SubmitFunc(ctx, entry)
}

func checkoutBody(userID string) string {
	payload := map[string]string{
		"user_id":          userID,
		"user_email":       userID + "@example.com",
		"customer_name":    "Jo Customer",
		"delivery_address": "1 Main St",
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func filledTestCart(userID string) *cart.Cart {
	c := &cart.Cart{
		ID:       "cart-1",
		UserID:   userID,
		Shipping: decimal.RequireFromString("4.99"),
		Tax:      decimal.Zero,
	}
	product := &catalog.Product{
		ID:     "p1",
		Title:  "Chair",
		Price:  decimal.RequireFromString("10.00"),
		Colors: []string{"red"},
	}
	if err := c.AddItem(product, 2); err != nil {
		panic(err)
	}
	return c
}

func checkoutRouter(carts checkout.CartService, orders order.Service, submitter audit.Submitter) *chi.Mux {
	router := chi.NewRouter()
	NewCheckoutHandler(checkout.NewOrchestrator(carts, orders, submitter)).RegisterRoutes(router)
	return router
}

func TestCheckoutHandler_Checkout(t *testing.T) {
	okSubmitter := &mockSubmitter{
		SubmitFunc: func(ctx context.Context, entry audit.Entry) audit.Receipt {
			id := int64(1)
			return audit.Receipt{RemoteID: &id}
		},
	}

	t.Run("success", func(t *testing.T) {
		cleared := false
		carts := &mockCheckoutCarts{
			GetCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
				return filledTestCart(userID), nil
			},
			ClearFunc: func(ctx context.Context, userID string) error {
				cleared = true
				return nil
			},
		}
		orders := &mockOrderService{
			CreateOrderFunc: func(ctx context.Context, ord *order.Order) (*order.Order, error) {
				created := *ord
				created.ID = "order-1"
				return &created, nil
			},
		}

		rec := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/checkout", checkoutBody("user-1"), "user-1")
		checkoutRouter(carts, orders, okSubmitter).ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, cleared)

		var created order.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "order-1", created.ID)
		assert.Equal(t, "24.99", created.OrderTotal)
		assert.Len(t, created.Items, 1)
	})

	t.Run("empty cart", func(t *testing.T) {
		carts := &mockCheckoutCarts{
			GetCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
				return &cart.Cart{ID: "cart-1", UserID: userID}, nil
			},
		}
		orders := &mockOrderService{
			CreateOrderFunc: func(ctx context.Context, ord *order.Order) (*order.Order, error) {
				t.Fatal("no order must be created from an empty cart")
				return nil, nil
			},
		}

		rec := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/checkout", checkoutBody("user-1"), "user-1")
		checkoutRouter(carts, orders, okSubmitter).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("identity mismatch", func(t *testing.T) {
		carts := &mockCheckoutCarts{
			GetCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
				t.Fatal("cart must not be touched on identity mismatch")
				return nil, nil
			},
		}
		orders := &mockOrderService{}

		rec := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/checkout", checkoutBody("user-2"), "user-1")
		checkoutRouter(carts, orders, okSubmitter).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no subject", func(t *testing.T) {
		carts := &mockCheckoutCarts{}
		orders := &mockOrderService{}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		checkoutRouter(carts, orders, okSubmitter).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		carts := &mockCheckoutCarts{}
		orders := &mockOrderService{}

		body := `{"user_id": "user-1", "user_email": "not-an-email", "customer_name": "J"}`

		rec := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/checkout", body, "user-1")
		checkoutRouter(carts, orders, okSubmitter).ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var response map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Contains(t, response, "details")
	})
}
