package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/onlineshop/backend/internal/audit"
	"github.com/onlineshop/backend/internal/cart"
	"github.com/onlineshop/backend/internal/catalog"
	"github.com/onlineshop/backend/internal/checkout"
	"github.com/onlineshop/backend/internal/config"
	handler "github.com/onlineshop/backend/internal/handler/http"
	"github.com/onlineshop/backend/internal/identity"
	"github.com/onlineshop/backend/internal/order"
	"github.com/onlineshop/backend/internal/stats"
)

// NewRouter wires repositories, services and handlers for the storefront
// API. The audit submitter is injected so main can point it at the remote
// audit store.
func NewRouter(pool *pgxpool.Pool, redisClient *redis.Client, auditClient audit.Submitter, cfg *config.Config) *chi.Mux {
	var productCache catalog.Cache
	if redisClient != nil {
		productCache = catalog.NewRedisCache(redisClient, cfg.Redis.CacheTTL)
	}

	catalogSvc := catalog.NewService(catalog.NewRepository(pool), productCache)
	cartSvc := cart.NewService(cart.NewRepository(pool), catalogSvc)
	orderSvc := order.NewService(order.NewRepository(pool))
	orchestrator := checkout.NewOrchestrator(cartSvc, orderSvc, auditClient)
	aggregator := stats.NewAggregator(orderSvc)

	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	cartHandler := handler.NewCartHandler(cartSvc)
	checkoutHandler := handler.NewCheckoutHandler(orchestrator)
	orderHandler := handler.NewOrderHandler(orderSvc)
	statsHandler := handler.NewStatsHandler(aggregator)

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	catalogHandler.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.Auth.JWTSecret))
		cartHandler.RegisterRoutes(r)
		checkoutHandler.RegisterRoutes(r)
		orderHandler.RegisterRoutes(r)
		statsHandler.RegisterRoutes(r)
	})

	return r
}
