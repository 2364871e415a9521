package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/onlineshop/backend/internal/audit"
	"github.com/onlineshop/backend/internal/cart"
	"github.com/onlineshop/backend/internal/order"
)

type State string

const (
	StateIdle           State = "IDLE"
	StateValidating     State = "VALIDATING"
	StateSnapshotting   State = "SNAPSHOTTING"
	StateOrderCreated   State = "ORDER_CREATED"
	StateCartCleared    State = "CART_CLEARED"
	StateAuditRequested State = "AUDIT_REQUESTED"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

func (s State) String() string {
	return string(s)
}

var allowedTransitions = map[State]map[State]bool{
	StateIdle:           {StateValidating: true, StateFailed: true},
	StateValidating:     {StateSnapshotting: true, StateFailed: true},
	StateSnapshotting:   {StateOrderCreated: true, StateFailed: true},
	StateOrderCreated:   {StateCartCleared: true, StateFailed: true},
	StateCartCleared:    {StateAuditRequested: true, StateFailed: true},
	StateAuditRequested: {StateDone: true, StateFailed: true},
	StateDone:           {},
	StateFailed:         {},
}

var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrUnauthorized = errors.New("caller identity does not match requested user")
)

// Request carries the customer-supplied checkout data plus the request
// metadata forwarded into the audit trail.
type Request struct {
	UserID          string
	UserEmail       string
	CustomerName    string
	DeliveryAddress string
	Notes           string
	IPAddress       string
	UserAgent       string
}

type CartService interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// Orchestrator converts a mutable cart into an immutable order. There is no
// cross-service transaction: the order write is the single atomic step, cart
// clearing is idempotent, and audit submission is best-effort.
type Orchestrator struct {
	carts  CartService
	orders order.Service
	audit  audit.Submitter
}

func NewOrchestrator(carts CartService, orders order.Service, auditClient audit.Submitter) *Orchestrator {
	return &Orchestrator{
		carts:  carts,
		orders: orders,
		audit:  auditClient,
	}
}

type run struct {
	state  State
	userID string
}

func (r *run) transition(to State) {
	if !allowedTransitions[r.state][to] {
		// Transition table bug, not a request error.
		log.Error().Stringer("from", r.state).Stringer("to", to).Msg("checkout: illegal state transition")
	}
	log.Debug().Str("user_id", r.userID).Stringer("from", r.state).Stringer("to", to).Msg("checkout: state transition")
	r.state = to
}

// Checkout runs the full workflow for the authenticated subject. The caller
// may cancel until the order write commits; after that the order exists
// regardless of the client's fate, and the remaining steps run detached from
// the request context.
func (o *Orchestrator) Checkout(ctx context.Context, subjectID string, req Request) (*order.Order, error) {
	r := &run{state: StateIdle, userID: req.UserID}

	r.transition(StateValidating)

	if req.UserID != subjectID {
		r.transition(StateFailed)
		log.Warn().Str("subject_id", subjectID).Str("requested_user_id", req.UserID).Msg("checkout: identity mismatch")
		return nil, ErrUnauthorized
	}

	c, err := o.carts.GetCart(ctx, req.UserID)
	if err != nil {
		r.transition(StateFailed)
		return nil, fmt.Errorf("checkout: failed to fetch cart: %w", err)
	}
	if c.IsEmpty() {
		r.transition(StateFailed)
		return nil, ErrEmptyCart
	}

	r.transition(StateSnapshotting)

	newOrder := &order.Order{
		UserID:          req.UserID,
		CustomerName:    req.CustomerName,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		Items:           order.SnapshotLines(c.Items),
		NumItemsInCart:  c.NumItemsInCart,
		OrderTotal:      c.OrderTotal.StringFixed(2),
	}

	created, err := o.orders.CreateOrder(ctx, newOrder)
	if err != nil {
		r.transition(StateFailed)
		return nil, fmt.Errorf("checkout: failed to create order: %w", err)
	}

	r.transition(StateOrderCreated)

	// The order is committed. Cancellation no longer affects the outcome.
	detached := context.WithoutCancel(ctx)

	if err := o.carts.Clear(detached, req.UserID); err != nil {
		// Known idempotency gap: the order exists but the cart still holds
		// its lines. Clearing is idempotent, so a retried checkout would
		// create a second order from the same lines. Surfaced, not hidden.
		r.transition(StateFailed)
		log.Error().Err(err).Str("order_id", created.ID).Str("user_id", req.UserID).Msg("checkout: order created but cart clearing failed")
		return nil, fmt.Errorf("checkout: order %s created but cart clearing failed: %w", created.ID, err)
	}

	r.transition(StateCartCleared)
	r.transition(StateAuditRequested)

	receipt := o.audit.Submit(detached, buildAuditEntry(created, req))
	if receipt.FellBack {
		log.Warn().Str("order_id", created.ID).Msg("checkout: audit entry recorded via local fallback")
	}

	r.transition(StateDone)

	return created, nil
}

func buildAuditEntry(o *order.Order, req Request) audit.Entry {
	newValues, err := json.Marshal(map[string]any{
		"order_id":          o.ID,
		"num_items_in_cart": o.NumItemsInCart,
		"order_total":       o.OrderTotal,
	})
	if err != nil {
		log.Warn().Err(err).Str("order_id", o.ID).Msg("checkout: failed to marshal audit values")
	}

	return audit.Entry{
		Action:         "checkout",
		EntityName:     "order",
		EntityID:       o.ID,
		UserID:         o.UserID,
		UserEmail:      req.UserEmail,
		NewValues:      string(newValues),
		Timestamp:      time.Now().UTC(),
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		AdditionalInfo: req.Notes,
	}
}
