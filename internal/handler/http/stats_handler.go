package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/onlineshop/backend/internal/stats"
)

type StatsHandler struct {
	aggregator *stats.Aggregator
}

func NewStatsHandler(aggregator *stats.Aggregator) *StatsHandler {
	return &StatsHandler{aggregator: aggregator}
}

func (h *StatsHandler) RegisterRoutes(router chi.Router) {
	router.Get("/stats/revenue", h.handleRevenue)
	router.Get("/stats/top-products", h.handleTopProducts)
}

func (h *StatsHandler) handleRevenue(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	granularity := stats.Granularity(r.URL.Query().Get("granularity"))
	if granularity == "" {
		granularity = stats.GranularityDaily
	}
	if granularity != stats.GranularityDaily && granularity != stats.GranularityWeekly {
		respondWithError(w, http.StatusBadRequest, "granularity must be daily or weekly")
		return
	}

	buckets, err := h.aggregator.Revenue(r.Context(), from, to, granularity)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute revenue buckets")
		respondWithError(w, http.StatusInternalServerError, "Failed to compute revenue report")
		return
	}

	respondWithJSON(w, http.StatusOK, buckets)
}

func (h *StatsHandler) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 10)

	top, err := h.aggregator.TopProducts(r.Context(), from, to, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute top products")
		respondWithError(w, http.StatusInternalServerError, "Failed to compute top products")
		return
	}

	respondWithJSON(w, http.StatusOK, top)
}

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp")
		return time.Time{}, time.Time{}, false
	}

	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "to must be an RFC 3339 timestamp")
		return time.Time{}, time.Time{}, false
	}

	if !to.After(from) {
		respondWithError(w, http.StatusBadRequest, "to must be after from")
		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}
