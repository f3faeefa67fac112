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

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/medicheck/internal/adapters/cache"
	"github.com/zatekoja/medicheck/internal/adapters/database"
	"github.com/zatekoja/medicheck/internal/adapters/memory"
	"github.com/zatekoja/medicheck/internal/adapters/search"
	"github.com/zatekoja/medicheck/internal/api/handlers"
	"github.com/zatekoja/medicheck/internal/api/middleware"
	"github.com/zatekoja/medicheck/internal/api/routes"
	"github.com/zatekoja/medicheck/internal/application/services"
	"github.com/zatekoja/medicheck/internal/domain/providers"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/redis"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/registry"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
	"github.com/zatekoja/medicheck/pkg/config"
	"github.com/zatekoja/medicheck/pkg/secrets"
)

func main() {
	vault, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load secrets from vault: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)
	if vault.Enabled {
		log.Info().Str("path", vault.Path).Strs("loaded", vault.Loaded).Strs("skipped", vault.Skipped).Msg("applied vault secrets")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Redis is optional; without it there is no read cache and no
	// Idempotency-Key deduplication.
	var cacheProvider providers.CacheProvider
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient.Client())
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("redis client initialized")
		}
	}

	var facilityRepo repositories.FacilityRepository
	switch cfg.Database.Driver {
	case config.StoreDriverMemory:
		facilityRepo = memory.NewFacilityStore()
		log.Warn().Msg("using in-memory hospital store, data is lost on restart")
	default:
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()
		if cfg.Database.Migrate {
			if err := pgClient.Migrate(ctx); err != nil {
				log.Fatal().Err(err).Msg("failed to apply migrations")
			}
		}
		facilityRepo = database.NewFacilityAdapter(pgClient, metrics)
		log.Info().Str("host", cfg.Database.Host).Msg("PostgreSQL client initialized")
	}
	if cacheProvider != nil {
		facilityRepo = database.NewCachedFacilityAdapter(facilityRepo, cacheProvider, metrics)
	}

	var searchRepo repositories.FacilitySearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("typesense unavailable, keyword search uses the database")
		} else {
			adapter := search.NewTypesenseAdapter(tsClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to ensure typesense collection")
			} else {
				searchRepo = adapter
			}
		}
	}

	registryClient := registry.NewClient(
		cfg.Registry.BaseURL,
		cfg.Registry.ServiceKey,
		registry.WithTimeout(cfg.Registry.Timeout),
		registry.WithRateLimit(cfg.Registry.RatePerSecond),
	)
	if !registryClient.KeyConfigured() {
		log.Warn().Msg("HIRA_SERVICE_KEY is not set, sync endpoints will report keyConfigured=false")
	}
	if cfg.Admin.SyncKey == "" {
		log.Error().Msg("ADMIN_SYNC_KEY is not set, every sync request will be rejected")
	}

	facilityService := services.NewFacilityService(facilityRepo, searchRepo)
	nearbyService := services.NewNearbyService(facilityRepo, cfg.Nearby, metrics)
	persistence := services.NewFacilityPersistenceService(facilityRepo, searchRepo)
	syncService := services.NewRegistrySyncService(registryClient, persistence, cfg.Sync, metrics)

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, cfg.Server.ResponseCacheTTL, metrics)
	}

	router := routes.NewRouter(
		handlers.NewFacilityHandler(facilityService, nearbyService),
		handlers.NewSyncHandler(syncService, registryClient, cacheProvider, cfg.Sync.IdempotencyTTL, cfg.Sync.PageSize),
		cacheMiddleware,
		cfg.Admin.SyncKey,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	// WriteTimeout covers a full sync, which walks every region synchronously.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("server stopped")
}
