package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/onlineshop/backend/internal/cart"
	"github.com/onlineshop/backend/internal/catalog"
	"github.com/onlineshop/backend/internal/identity"
)

type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Amount    int    `json:"amount" validate:"required"`
}

type RemoveItemRequest struct {
	Amount int `json:"amount" validate:"required"`
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Delete("/cart/items/{productID}", h.handleRemoveItem)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	subject, err := identity.FromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	c, err := h.service.GetCart(r.Context(), subject.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", subject.UserID).Msg("Failed to get cart via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get cart")
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	subject, err := identity.FromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var requestPayload AddItemRequest

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

	c, err := h.service.AddItem(r.Context(), subject.UserID, requestPayload.ProductID, requestPayload.Amount)
	if err != nil {
		log.Error().Err(err).Str("user_id", subject.UserID).Str("product_id", requestPayload.ProductID).Msg("Failed to add cart item via service")

		var clientMessage string
		switch {
		case errors.Is(err, cart.ErrInvalidAmount):
			clientMessage = "Amount must be positive"
		case errors.Is(err, catalog.ErrProductNotFound):
			clientMessage = "Product not found"
		default:
			clientMessage = "Failed to add item to cart"
		}

		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	subject, err := identity.FromContext(r.Context())
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	productID := chi.URLParam(r, "productID")
	if productID == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid productID parameter")
		return
	}

	var requestPayload RemoveItemRequest

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

	c, err := h.service.RemoveItem(r.Context(), subject.UserID, productID, requestPayload.Amount)
	if err != nil {
		log.Error().Err(err).Str("user_id", subject.UserID).Str("product_id", productID).Msg("Failed to remove cart item via service")

		var clientMessage string
		if errors.Is(err, cart.ErrInvalidAmount) {
			clientMessage = "Amount must be positive"
		} else {
			clientMessage = "Failed to remove item from cart"
		}

		respondWithError(w, mapErrorToStatusCode(err), clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}
