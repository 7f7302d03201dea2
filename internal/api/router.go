package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/hendrianz14/tripay-callback-service/internal/api/ack"
	"github.com/hendrianz14/tripay-callback-service/internal/api/handler"
	"github.com/hendrianz14/tripay-callback-service/internal/api/middleware"
	"github.com/hendrianz14/tripay-callback-service/internal/api/spec"
	"github.com/hendrianz14/tripay-callback-service/internal/config"
	"github.com/hendrianz14/tripay-callback-service/internal/idempotency"
	"github.com/hendrianz14/tripay-callback-service/internal/service"
)

type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *pgxpool.Pool
	redis  redis.Cmdable
	store  service.Store
	cache  *idempotency.Cache
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, redisClient redis.Cmdable, store service.Store, cache *idempotency.Cache) *Router {
	return &Router{cfg: cfg, logger: logger, db: db, redis: redisClient, store: store, cache: cache}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))

	// The gateway must never mistake an HTML error page for an ack.
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		ack.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Services
	resolver := service.NewResolverService(api.store, api.cfg.ReferencePrefix, api.cfg.CreditPrice)
	settlement := service.NewSettlementService(api.store)

	// Handlers
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	callbackHandler := handler.NewCallbackHandler(api.cfg.TripayPrivateKey, resolver, settlement, api.cache, api.cfg.CallbackTimeout)
	invoiceHandler := handler.NewInvoiceHandler(api.store)

	// Probes and operational surface
	r.Get("/health", healthHandler.Live)
	r.Get("/healthz", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Gateway callback
	r.With(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS)).
		Post("/tripay/callback", callbackHandler.Handle)

	// Operator API
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Get("/v1/invoices/{reference}", invoiceHandler.Get)
	})

	return r
}
