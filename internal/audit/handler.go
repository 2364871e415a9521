package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Handler is the HTTP surface of the audit store. Create responds with the
// generated id as a plain number, which is the contract the client decodes.
type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/audit-logs", h.handleCreate)
	router.Get("/audit-logs", h.handleList)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var entry Entry

	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if entry.Action == "" || entry.EntityName == "" {
		http.Error(w, "action and entity_name are required", http.StatusBadRequest)
		return
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	id, err := h.repo.Insert(r.Context(), &entry)
	if err != nil {
		log.Error().Err(err).Str("action", entry.Action).Msg("Failed to insert audit entry")
		http.Error(w, "failed to record audit entry", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "%d", id)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entityName := r.URL.Query().Get("entity")
	entityID := r.URL.Query().Get("entity_id")
	if entityName == "" || entityID == "" {
		http.Error(w, "entity and entity_id are required", http.StatusBadRequest)
		return
	}

	entries, err := h.repo.ListByEntity(r.Context(), entityName, entityID)
	if err != nil {
		log.Error().Err(err).Str("entity_name", entityName).Str("entity_id", entityID).Msg("Failed to list audit entries")
		http.Error(w, "failed to list audit entries", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		log.Error().Err(err).Msg("Failed to encode audit entries")
	}
}
