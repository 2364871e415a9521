package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlineshop/backend/internal/audit"
	"github.com/onlineshop/backend/internal/cart"
	"github.com/onlineshop/backend/internal/catalog"
	"github.com/onlineshop/backend/internal/checkout"
	"github.com/onlineshop/backend/internal/order"
)

type mockCartService struct {
	getCartFunc func(ctx context.Context, userID string) (*cart.Cart, error)
	clearFunc   func(ctx context.Context, userID string) error
}

func (m *mockCartService) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return m.getCartFunc(ctx, userID)
}

func (m *mockCartService) Clear(ctx context.Context, userID string) error {
	return m.clearFunc(ctx, userID)
}

type mockOrderService struct {
	createOrderFunc func(ctx context.Context, o *order.Order) (*order.Order, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	return m.createOrderFunc(ctx, o)
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
	submitFunc func(ctx context.Context, entry audit.Entry) audit.Receipt
	entries    []audit.Entry
}

func (m *mockSubmitter) Submit(ctx context.Context, entry audit.Entry) audit.Receipt {
	m.entries = append(m.entries, entry)
	if m.submitFunc != nil {
		return m.submitFunc(ctx, entry)
	}
	id := int64(1)
	return audit.Receipt{RemoteID: &id}
}

func fixtureCart(userID string) *cart.Cart {
	c := &cart.Cart{
		ID:       "cart-1",
		UserID:   userID,
		Shipping: decimal.RequireFromString("4.99"),
	}
	c.Items = nil
	return c
}

func filledCart(t *testing.T, userID string) *cart.Cart {
	t.Helper()
	c := fixtureCart(userID)
	require.NoError(t, c.AddItem(&catalog.Product{ID: "p1", Title: "Chair", Price: decimal.RequireFromString("10.00"), Colors: []string{"red"}}, 2))
	require.NoError(t, c.AddItem(&catalog.Product{ID: "p2", Title: "Lamp", Price: decimal.RequireFromString("7.50")}, 1))
	return c
}

func validRequest(userID string) checkout.Request {
	return checkout.Request{
		UserID:       userID,
		UserEmail:    "jo@example.com",
		CustomerName: "Jo Example",
		Notes:        "leave at the door",
		IPAddress:    "203.0.113.7",
		UserAgent:    "test-agent",
	}
}

func TestOrchestrator_Checkout_EmptyCart(t *testing.T) {
	carts := &mockCartService{
		getCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
			return fixtureCart(userID), nil
		},
		clearFunc: func(ctx context.Context, userID string) error {
			t.Fatal("an empty-cart checkout must not clear anything")
			return nil
		},
	}
	orders := &mockOrderService{
		createOrderFunc: func(ctx context.Context, o *order.Order) (*order.Order, error) {
			t.Fatal("an empty-cart checkout must not create an order")
			return nil, nil
		},
	}
	auditMock := &mockSubmitter{}

	o := checkout.NewOrchestrator(carts, orders, auditMock)

	_, err := o.Checkout(context.Background(), "user-1", validRequest("user-1"))
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)
	assert.Empty(t, auditMock.entries, "no audit trail without an order")
}

func TestOrchestrator_Checkout_IdentityMismatch(t *testing.T) {
	carts := &mockCartService{
		getCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
			t.Fatal("identity must be checked before touching the cart")
			return nil, nil
		},
	}
	orders := &mockOrderService{}
	auditMock := &mockSubmitter{}

	o := checkout.NewOrchestrator(carts, orders, auditMock)

	_, err := o.Checkout(context.Background(), "someone-else", validRequest("user-1"))
	assert.ErrorIs(t, err, checkout.ErrUnauthorized)
	assert.Empty(t, auditMock.entries)
}

func TestOrchestrator_Checkout_Success(t *testing.T) {
	liveCart := filledCart(t, "user-1")
	cleared := false

	carts := &mockCartService{
		getCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
			return liveCart, nil
		},
		clearFunc: func(ctx context.Context, userID string) error {
			cleared = true
			liveCart.Clear()
			return nil
		},
	}
	orders := &mockOrderService{
		createOrderFunc: func(ctx context.Context, o *order.Order) (*order.Order, error) {
			o.ID = "order-1"
			return o, nil
		},
	}
	auditMock := &mockSubmitter{}

	o := checkout.NewOrchestrator(carts, orders, auditMock)

	created, err := o.Checkout(context.Background(), "user-1", validRequest("user-1"))
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, "Jo Example", created.CustomerName)
	assert.Equal(t, 3, created.NumItemsInCart)
	assert.Equal(t, "32.49", created.OrderTotal)
	require.Len(t, created.Items, 2)
	assert.Equal(t, "p1", created.Items[0].ProductID)
	assert.Equal(t, 2, created.Items[0].Amount)
	assert.Equal(t, "p2", created.Items[1].ProductID)

	assert.True(t, cleared, "the cart must be cleared after the order commits")
	assert.True(t, liveCart.IsEmpty())

	require.Len(t, auditMock.entries, 1)
	entry := auditMock.entries[0]
	assert.Equal(t, "checkout", entry.Action)
	assert.Equal(t, "order", entry.EntityName)
	assert.Equal(t, "order-1", entry.EntityID)
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, "jo@example.com", entry.UserEmail)
	assert.Equal(t, "203.0.113.7", entry.IPAddress)
	assert.Equal(t, "test-agent", entry.UserAgent)
}

func TestOrchestrator_Checkout_SnapshotIsIndependentOfSource(t *testing.T) {
	liveCart := filledCart(t, "user-1")

	carts := &mockCartService{
		getCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
			return liveCart, nil
		},
		clearFunc: func(ctx context.Context, userID string) error { return nil },
	}
	orders := &mockOrderService{
		createOrderFunc: func(ctx context.Context, o *order.Order) (*order.Order, error) {
			o.ID = "order-1"
			return o, nil
		},
	}

	o := checkout.NewOrchestrator(carts, orders, &mockSubmitter{})

	created, err := o.Checkout(context.Background(), "user-1", validRequest("user-1"))
	require.NoError(t, err)

	// Mutate the source cart after checkout; the order must not move.
	liveCart.Items[0].Price = decimal.RequireFromString("999.99")
	liveCart.Items[0].Title = "changed"

	assert.True(t, created.Items[0].Price.Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, "Chair", created.Items[0].Title)
	assert.Equal(t, "32.49", created.OrderTotal)
}

func TestOrchestrator_Checkout_AuditFallbackDoesNotFailCheckout(t *testing.T) {
	liveCart := filledCart(t, "user-1")

	carts := &mockCartService{
		getCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
			return liveCart, nil
		},
		clearFunc: func(ctx context.Context, userID string) error { return nil },
	}
	orders := &mockOrderService{
		createOrderFunc: func(ctx context.Context, o *order.Order) (*order.Order, error) {
			o.ID = "order-1"
			return o, nil
		},
	}
	auditMock := &mockSubmitter{
		submitFunc: func(ctx context.Context, entry audit.Entry) audit.Receipt {
			return audit.Receipt{FellBack: true}
		},
	}

	o := checkout.NewOrchestrator(carts, orders, auditMock)

	created, err := o.Checkout(context.Background(), "user-1", validRequest("user-1"))
	require.NoError(t, err, "audit outcome must not gate checkout")
	assert.NotNil(t, created)
	assert.Len(t, auditMock.entries, 1)
}

func TestOrchestrator_Checkout_OrderCreationFailureLeavesCartUntouched(t *testing.T) {
	liveCart := filledCart(t, "user-1")

	carts := &mockCartService{
		getCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
			return liveCart, nil
		},
		clearFunc: func(ctx context.Context, userID string) error {
			t.Fatal("the cart must not be cleared when the order write fails")
			return nil
		},
	}
	orders := &mockOrderService{
		createOrderFunc: func(ctx context.Context, o *order.Order) (*order.Order, error) {
			return nil, errors.New("database unavailable")
		},
	}
	auditMock := &mockSubmitter{}

	o := checkout.NewOrchestrator(carts, orders, auditMock)

	_, err := o.Checkout(context.Background(), "user-1", validRequest("user-1"))
	require.Error(t, err)
	assert.False(t, liveCart.IsEmpty())
	assert.Empty(t, auditMock.entries)
}

func TestOrchestrator_Checkout_ClearFailureSurfacesAfterOrderCreated(t *testing.T) {
	liveCart := filledCart(t, "user-1")
	created := 0

	carts := &mockCartService{
		getCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
			return liveCart, nil
		},
		clearFunc: func(ctx context.Context, userID string) error {
			return errors.New("cart store unavailable")
		},
	}
	orders := &mockOrderService{
		createOrderFunc: func(ctx context.Context, o *order.Order) (*order.Order, error) {
			created++
			o.ID = "order-1"
			return o, nil
		},
	}
	auditMock := &mockSubmitter{}

	o := checkout.NewOrchestrator(carts, orders, auditMock)

	_, err := o.Checkout(context.Background(), "user-1", validRequest("user-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order-1", "the error must name the order that already exists")
	assert.Equal(t, 1, created)
	assert.Empty(t, auditMock.entries, "audit only happens after the cart is cleared")
}

func TestOrchestrator_Checkout_SurvivesCallerCancellationAfterCommit(t *testing.T) {
	liveCart := filledCart(t, "user-1")
	cleared := false

	ctx, cancel := context.WithCancel(context.Background())

	carts := &mockCartService{
		getCartFunc: func(ctx context.Context, userID string) (*cart.Cart, error) {
			return liveCart, nil
		},
		clearFunc: func(ctx context.Context, userID string) error {
			assert.NoError(t, ctx.Err(), "post-commit steps must run on a detached context")
			cleared = true
			return nil
		},
	}
	orders := &mockOrderService{
		createOrderFunc: func(ctx context.Context, o *order.Order) (*order.Order, error) {
			o.ID = "order-1"
			// The client disconnects the moment the write commits.
			cancel()
			return o, nil
		},
	}

	o := checkout.NewOrchestrator(carts, orders, &mockSubmitter{})

	created, err := o.Checkout(ctx, "user-1", validRequest("user-1"))
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.True(t, cleared)
}
