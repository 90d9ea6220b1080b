package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/blueline/blueline/pkg/api"
	"github.com/blueline/blueline/pkg/audit"
	"github.com/blueline/blueline/pkg/authz"
	"github.com/blueline/blueline/pkg/blueprints"
	"github.com/blueline/blueline/pkg/config"
	"github.com/blueline/blueline/pkg/documents"
	"github.com/blueline/blueline/pkg/identity"
	"github.com/blueline/blueline/pkg/middleware"
	"github.com/blueline/blueline/pkg/observability"
	"github.com/blueline/blueline/pkg/profile"
	"github.com/blueline/blueline/pkg/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "blueline: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting blueline")

	ctx := context.Background()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	conns, err := postgres.NewConnectionManager(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conns.Close()

	if err := postgres.RunMigrations(ctx, conns.Primary()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations applied")

	redisClient := redis.NewClient(&redis.Options{
		Addr:       cfg.Storage.RedisURL,
		Password:   cfg.Storage.RedisPassword,
		DB:         cfg.Storage.RedisDB,
		MaxRetries: cfg.Storage.RedisMaxRetries,
		PoolSize:   cfg.Storage.RedisPoolSize,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The cache and rate limiter fail open, so Redis being down only
		// degrades the service.
		logger.WithError(err).Warn("Redis unreachable at startup")
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Profile lookup, cached when enabled.
	var profiles profile.Lookup
	profileStore := profile.NewPostgresStore(conns.Primary())
	if cfg.Storage.CacheEnabled {
		cached := profile.NewCachedStore(profileStore, redisClient, cfg.Storage.ProfileCacheTTL)
		if metrics != nil {
			cached.OnHit = func(layer string) {
				metrics.CacheHitsTotal.WithLabelValues("profile_" + layer).Inc()
			}
			cached.OnMiss = func() {
				metrics.CacheMissesTotal.WithLabelValues("profile").Inc()
			}
		}
		profiles = cached
	} else {
		profiles = profileStore
	}

	// Identity: API tokens always, OIDC when configured.
	tokenStore := identity.NewTokenStore(conns.Primary())
	resolvers := []identity.Resolver{identity.NewTokenResolver(tokenStore)}
	if cfg.Auth.OIDCEnabled {
		oidcResolver, err := identity.NewOIDCResolver(ctx, cfg.Auth.OIDCIssuerURL, cfg.Auth.OIDCClientID)
		if err != nil {
			return fmt.Errorf("failed to configure OIDC: %w", err)
		}
		resolvers = append(resolvers, oidcResolver)
	}
	resolver := identity.NewChainResolver(resolvers...)

	auditLog := logrus.New()
	auditLog.SetFormatter(&logrus.JSONFormatter{})
	recorder := audit.NewRecorder(conns.Primary(), auditLog, 0)

	docService := documents.NewService(
		authz.NewEngine(),
		documents.NewLifecycle(),
		postgres.NewDocumentStore(conns),
		recorder,
	)

	blueprintService, err := blueprints.NewService(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to configure blueprint storage: %w", err)
	}

	var rateLimit *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rateLimit = middleware.NewRateLimitMiddlewareWithConfigs(redisClient,
			&middleware.RateLimitConfig{RequestsPerWindow: cfg.RateLimit.UserRequestsPerMin, WindowDuration: time.Minute},
			&middleware.RateLimitConfig{RequestsPerWindow: cfg.RateLimit.IPRequestsPerMin, WindowDuration: time.Minute},
		)
	}

	server := api.NewServer(api.Deps{
		Logger:       logger,
		Documents:    docService,
		Tokens:       tokenStore,
		Blueprints:   blueprintService,
		AuditTrail:   recorder,
		Auth:         middleware.NewAuthMiddleware(resolver, profiles),
		RateLimit:    rateLimit,
		Metrics:      metrics,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		OTelEnabled:  cfg.Observability.OTelEnabled,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate listener for probes and scraping.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(conns, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(cfg.Server.ShutdownTimeout, logger)
	shutdown.Register("api server", apiServer.Shutdown)
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("audit recorder", recorder.Close)
	shutdown.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	var g errgroup.Group
	g.Go(func() error {
		logger.Infof("API listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health and metrics listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		shutdown.Wait()
		return nil
	})

	return g.Wait()
}
