package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	CreateOrder(ctx context.Context, order *Order) (*Order, error)
	GetOrderForUser(ctx context.Context, userID, orderID string) (*Order, error)
	ListOrdersForUser(ctx context.Context, userID string, page, pageSize int) ([]Order, int, error)
	ListOrdersCreatedBetween(ctx context.Context, from, to time.Time) ([]Order, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateOrder(ctx context.Context, o *Order) (*Order, error) {
	if len(o.Items) == 0 {
		return nil, errors.New("service: order must contain at least one line")
	}

	if o.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("service: failed to generate order id: %w", err)
		}
		o.ID = id.String()
	}

	if err := s.repo.Create(ctx, o); err != nil {
		log.Error().Err(err).Str("user_id", o.UserID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Str("order_id", o.ID).Str("user_id", o.UserID).Str("order_total", o.OrderTotal).Msg("Order created")

	return o, nil
}

// GetOrderForUser fetches an order and hides its existence from anyone but
// its owner.
func (s *service) GetOrderForUser(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}

	if o.UserID != userID {
		log.Warn().Str("order_id", orderID).Str("user_id", userID).Msg("service: order access denied for non-owner")
		return nil, ErrOrderNotFound
	}

	return o, nil
}

func (s *service) ListOrdersForUser(ctx context.Context, userID string, page, pageSize int) ([]Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	orders, total, err := s.repo.ListByUserID(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return orders, total, nil
}

func (s *service) ListOrdersCreatedBetween(ctx context.Context, from, to time.Time) ([]Order, error) {
	orders, err := s.repo.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders in range: %w", err)
	}
	return orders, nil
}
