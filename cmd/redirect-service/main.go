package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"brain-link-tracker/internal/config"
	"brain-link-tracker/internal/redirect/database"
	httpdelivery "brain-link-tracker/internal/redirect/delivery/http"
	"brain-link-tracker/internal/redirect/enrichment"
	"brain-link-tracker/internal/redirect/events"
	"brain-link-tracker/internal/redirect/metrics"
	"brain-link-tracker/internal/redirect/nonce"
	"brain-link-tracker/internal/redirect/repository/cache"
	"brain-link-tracker/internal/redirect/repository/sqlstore"
	"brain-link-tracker/internal/redirect/token"
	"brain-link-tracker/internal/redirect/usecase"

	dapr "github.com/dapr/go-sdk/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx, os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Ensure data directory exists
	if cfg.Database.Driver == database.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
			logger.Fatal("failed to create data directory", zap.Error(err))
		}
	}

	// Open database
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db, cfg.Database.Driver); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	rdb, err := newRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("invalid redis configuration", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.New(registry)

	// Tokens
	nonces := nonce.NewStore(ctx, rdb, logger)
	codec := token.NewCodec(nonces, token.WithNonceTTL(cfg.Pipeline.NonceTTL))

	// Links
	links := cache.NewCachedLinkRepository(
		sqlstore.NewLinkRepository(db, cfg.Database.Driver),
		cache.NewRedisLinkCache(rdb, logger),
	)
	if path := os.Getenv("LINKS_SEED_FILE"); path != "" {
		n, err := seedLinks(ctx, links, path)
		if err != nil {
			logger.Fatal("failed to seed links", zap.String("path", path), zap.Error(err))
		}
		logger.Info("links seeded", zap.Int("count", n))
	}

	// Events
	publisher, closeEvents := newPublisher(ctx, cfg.Events, logger)
	defer closeEvents()

	// Telemetry
	var countries enrichment.CountryResolver
	if cfg.Telemetry.GeoIPDatabase != "" {
		geo, err := enrichment.NewGeoIPResolver(cfg.Telemetry.GeoIPDatabase)
		if err != nil {
			logger.Warn("geoip database unavailable, countries reported as unknown", zap.Error(err))
		} else {
			defer geo.Close()
			countries = geo
		}
	}

	// Wire dependencies
	pipeline := usecase.NewPipeline(codec, links, pipelineMetrics, publisher, enrichment.NewEnricher(countries), usecase.Config{
		GenesisKey:         []byte(cfg.Secrets.GenesisKey),
		ValidationKey:      []byte(cfg.Secrets.ValidationKey),
		ContextKey:         []byte(cfg.Secrets.ContextKey),
		GenesisTTL:         cfg.Pipeline.GenesisTTL,
		ValidationTTL:      cfg.Pipeline.ValidationTTL,
		ValidationEndpoint: cfg.Server.BaseURL + "/validate",
		RoutingEndpoint:    cfg.Server.BaseURL + "/route",
	}, logger)

	handler := httpdelivery.NewHandler(pipeline, pipelineMetrics, logger, readinessChecks(db, rdb)...)
	trustedProxies, err := httpdelivery.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Fatal("invalid trusted proxies", zap.Error(err))
	}
	rateLimiter := httpdelivery.NewRateLimiter(cfg.Server.RateLimit)
	defer rateLimiter.Stop()
	router := httpdelivery.NewRouter(handler, logger, rateLimiter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), trustedProxies)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("base_url", cfg.Server.BaseURL),
			zap.Int("rate_limit", cfg.Server.RateLimit),
			zap.Strings("trusted_proxies", cfg.Server.TrustedProxies),
			zap.String("nonce_backend", nonces.Backend()),
			zap.String("event_sink", cfg.Events.Sink),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewDevelopmentConfig()
	if cfg.Env == "production" {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// newRedisClient returns nil when no server is configured.
func newRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	switch {
	case cfg.URL != "":
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	case cfg.Addr != "":
		return redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}), nil
	default:
		return nil, nil
	}
}

// newPublisher builds the configured event sink. The returned func releases
// it.
func newPublisher(ctx context.Context, cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, func()) {
	switch cfg.Sink {
	case config.EventSinkDapr:
		client, err := dapr.NewClient()
		if err != nil {
			// The service runs without Dapr for local dev
			logger.Warn("failed to create Dapr client, pipeline events disabled", zap.Error(err))
			return events.NopPublisher{}, func() {}
		}
		return events.NewDaprPublisher(client, cfg.DaprPubSub, cfg.DaprTopic), client.Close

	case config.EventSinkWatermill:
		wmLogger := events.NewZapLoggerAdapter(logger)
		bus := events.NewEventBus(wmLogger)
		router, err := events.NewRouter(bus, wmLogger)
		if err != nil {
			logger.Warn("failed to create event router, pipeline events disabled", zap.Error(err))
			bus.Close()
			return events.NopPublisher{}, func() {}
		}
		events.RegisterHandlers(router, logger)

		go func() {
			if err := router.Run(ctx); err != nil {
				logger.Error("event router stopped", zap.Error(err))
			}
		}()
		<-router.Running()

		return bus, func() {
			router.Close()
			bus.Close()
		}

	default:
		return events.NopPublisher{}, func() {}
	}
}

func readinessChecks(db *sql.DB, rdb *redis.Client) []httpdelivery.ReadinessCheck {
	checks := []httpdelivery.ReadinessCheck{{
		Name:  "database",
		Check: db.PingContext,
	}}
	if rdb != nil {
		checks = append(checks, httpdelivery.ReadinessCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
	}
	return checks
}
