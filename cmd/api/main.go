package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-quote/internal/config"
	"github.com/noah-isme/backend-quote/internal/health"
	"github.com/noah-isme/backend-quote/internal/lock"
	"github.com/noah-isme/backend-quote/internal/obs"
	"github.com/noah-isme/backend-quote/internal/quote"
	"github.com/noah-isme/backend-quote/internal/resilience"
	"github.com/noah-isme/backend-quote/internal/settings"
)

const serviceName = "quote-api"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().
		Str("service", serviceName).
		Str("env", cfg.AppEnv).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "quote")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.RegisterMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   serviceName,
			Version:       version,
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	redisClient, err := openRedis(startCtx, cfg, metricsEnabled, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	pool, err := openPostgres(startCtx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	store, err := settingsStore(startCtx, cfg, redisClient, pool)
	if err != nil {
		return err
	}
	provider := &settings.Provider{
		Store:    store,
		Defaults: cfg.Pricing,
		Logger:   logger.With().Str("component", "settings").Logger(),
		CacheTTL: envDurationMillis("SETTINGS_CACHE_TTL_MS", 5000),
	}
	if store != nil {
		provider.Breaker = resilience.NewBreaker(
			envInt("SETTINGS_BREAKER_MIN_REQUESTS", 5),
			envFloat("SETTINGS_BREAKER_FAILURE_RATIO", 0.5),
			envDurationMillis("SETTINGS_BREAKER_OPEN_MS", 30000),
		).WithTarget("settings_store").WithLogger(provider.Logger)
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	deps := routerDeps{
		Config: cfg,
		Logger: logger,
		Quotes: &quote.Handler{Svc: &quote.Service{
			Settings: provider,
			Currency: cfg.CurrencyCode,
			Logger:   logger.With().Str("component", "quote").Logger(),
		}},
		Settings:       &settings.Handler{Provider: provider},
		Redis:          redisClientOrNil(redisClient),
		Health:         health.Deps{DB: pool, Redis: redisClientOrNil(redisClient)},
		HTTPMetrics:    httpMetrics,
		MetricsEnabled: metricsEnabled,
		TracingEnabled: tracingEnabled,
		PprofEnabled:   envBool("OBS_ENABLE_PPROF", !cfg.IsProduction()),
		PprofUser:      envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""),
		PprofPass:      envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", ""),
	}

	var handler http.Handler = newRouter(deps)
	if tracingEnabled {
		handler = otelhttp.NewHandler(handler, serviceName)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health.SetReady(true)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", srv.Addr).
			Str("settings_backend", cfg.SettingsBackend).
			Str("version", version).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openRedis(ctx context.Context, cfg *config.Config, metricsEnabled bool, logger zerolog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; rate limiting and idempotency disabled")
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func settingsStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, pool *pgxpool.Pool) (settings.Store, error) {
	switch cfg.SettingsBackend {
	case config.BackendRedis:
		return settings.NewRedisStore(rdb, cfg.RedisPrefix), nil
	case config.BackendPostgres:
		store := settings.NewPostgresStore(pool)
		ensure := store.EnsureSchema
		if rdb != nil {
			// replicas starting together would race on CREATE TABLE
			locker := lock.Locker{R: rdb, Prefix: cfg.RedisPrefix}
			ensure = func(ctx context.Context) error {
				return locker.WithLock(ctx, "settings-schema", 30*time.Second, store.EnsureSchema)
			}
		}
		if err := ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensure settings schema: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// redisClientOrNil keeps a nil *redis.Client from becoming a non-nil interface.
func redisClientOrNil(c *redis.Client) redis.UniversalClient {
	if c == nil {
		return nil
	}
	return c
}
