package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/onlineshop/backend/internal/checkout"
	"github.com/onlineshop/backend/internal/identity"
)

type CheckoutRequest struct {
	UserID          string `json:"user_id" validate:"required"`
	UserEmail       string `json:"user_email" validate:"required,email"`
	CustomerName    string `json:"customer_name" validate:"required,min=2,max=100"`
	DeliveryAddress string `json:"delivery_address" validate:"omitempty,max=300"`
	Notes           string `json:"notes" validate:"omitempty,max=500"`
}

type CheckoutHandler struct {
	orchestrator *checkout.Orchestrator
	validate     *validator.Validate
}

func NewCheckoutHandler(orchestrator *checkout.Orchestrator) *CheckoutHandler {
	return &CheckoutHandler{
		orchestrator: orchestrator,
		validate:     validator.New(),
	}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Post("/checkout", h.handleCheckout)
}

func (h *CheckoutHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	subject, err := identity.FromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var requestPayload CheckoutRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err)
		return
	}

	req := checkout.Request{
		UserID:          requestPayload.UserID,
		UserEmail:       requestPayload.UserEmail,
		CustomerName:    requestPayload.CustomerName,
		DeliveryAddress: requestPayload.DeliveryAddress,
		Notes:           requestPayload.Notes,
		IPAddress:       clientIP(r),
		UserAgent:       r.UserAgent(),
	}

	created, err := h.orchestrator.Checkout(r.Context(), subject.UserID, req)
	if err != nil {
		log.Error().Err(err).Str("user_id", requestPayload.UserID).Msg("Checkout failed")

		var clientMessage string
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			clientMessage = "Cart is empty"
		case errors.Is(err, checkout.ErrUnauthorized):
			clientMessage = "Cannot check out another user's cart"
		default:
			clientMessage = "Checkout failed"
		}

		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
