package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-quote/internal/common"
	"github.com/noah-isme/backend-quote/internal/config"
	"github.com/noah-isme/backend-quote/internal/health"
	"github.com/noah-isme/backend-quote/internal/obs"
	"github.com/noah-isme/backend-quote/internal/quote"
	"github.com/noah-isme/backend-quote/internal/ratelimit"
	"github.com/noah-isme/backend-quote/internal/security"
	"github.com/noah-isme/backend-quote/internal/settings"
)

type routerDeps struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Quotes   *quote.Handler
	Settings *settings.Handler
	// Redis backs rate limiting and idempotent replay; both are skipped when nil.
	Redis  redis.UniversalClient
	Health health.Checker

	HTTPMetrics    *obs.HTTPMetrics
	MetricsEnabled bool
	TracingEnabled bool
	PprofEnabled   bool
	PprofUser      string
	PprofPass      string
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeadersEnable,
		EnableHSTS:            cfg.IsProduction(),
		HSTSIncludeSubdomains: true,
		NoStore:               true,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if d.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), d.PprofUser, d.PprofPass))
	}

	healthHandler := health.Handler{
		Checker:      d.Health,
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: d.Redis, Prefix: cfg.RedisPrefix + "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("quotes"),
			Window: cfg.QuoteRateLimitWindow,
			Max:    cfg.QuoteRateLimitMax,
		},
		OnError: func(err error) {
			d.Logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}
	idem := common.Idem{
		R:      d.Redis,
		Prefix: cfg.RedisPrefix,
		TTL:    cfg.IdempotencyTTL,
		Logger: d.Logger,
	}
	bodyLimit := security.BodyLimit{Max: cfg.HTTPBodyLimitBytes}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(bodyLimit.Middleware)

		v.Route("/quotes", func(q chi.Router) {
			q.Use(limiter.Middleware)
			q.Use(idem.Middleware)
			q.Post("/", d.Quotes.Create)
			q.Post("/branded", d.Quotes.CreateBranded)
			q.Post("/unbranded", d.Quotes.CreateUnbranded)
		})

		v.Get("/settings/pricing", d.Settings.Get)
		v.Route("/admin", func(admin chi.Router) {
			admin.Use(settings.RequireAdmin(cfg.AdminAPIToken))
			admin.Put("/settings/pricing", d.Settings.Put)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
