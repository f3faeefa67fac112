package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/medicheck/internal/adapters/cache"
	"github.com/zatekoja/medicheck/internal/adapters/database"
	"github.com/zatekoja/medicheck/internal/adapters/search"
	"github.com/zatekoja/medicheck/internal/application/services"
	"github.com/zatekoja/medicheck/internal/domain/entities"
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
	var all bool
	var update bool
	var pageNo int
	var rows int
	var regions string

	flag.BoolVar(&all, "all", false, "Walk every region instead of a single page")
	flag.BoolVar(&update, "update", false, "Refresh hospitals that are already stored (with -all)")
	flag.IntVar(&pageNo, "page", 1, "Page number for a single-page sync")
	flag.IntVar(&rows, "rows", 0, "Rows per page (defaults to SYNC_PAGE_SIZE)")
	flag.StringVar(&regions, "regions", "", "Comma separated region codes (with -all)")
	flag.Parse()

	vault, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load secrets from vault")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("medicheck-sync", cfg.Env, cfg.LogLevel)
	if vault.Enabled {
		log.Info().Str("path", vault.Path).Strs("loaded", vault.Loaded).Msg("applied vault secrets")
	}

	if cfg.Database.Driver != config.StoreDriverPostgres {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("the sync command needs the postgres store")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()
	if cfg.Database.Migrate {
		if err := pgClient.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	var repo repositories.FacilityRepository = database.NewFacilityAdapter(pgClient, nil)
	// Evict cached hospitals the API may be serving.
	if cfg.Redis.Enabled {
		if redisClient, err := redis.NewClient(ctx, &cfg.Redis); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, cached hospitals expire on their own")
		} else {
			defer redisClient.Close()
			repo = database.NewCachedFacilityAdapter(repo, cache.NewRedisAdapter(redisClient.Client()), nil)
		}
	}

	var searchRepo repositories.FacilitySearchRepository
	if cfg.Typesense.Enabled {
		if tsClient, err := typesense.NewClient(ctx, &cfg.Typesense); err != nil {
			log.Warn().Err(err).Msg("typesense unavailable, skipping indexing")
		} else {
			searchRepo = search.NewTypesenseAdapter(tsClient)
		}
	}

	client := registry.NewClient(
		cfg.Registry.BaseURL,
		cfg.Registry.ServiceKey,
		registry.WithTimeout(cfg.Registry.Timeout),
		registry.WithRateLimit(cfg.Registry.RatePerSecond),
	)
	if !client.KeyConfigured() {
		log.Fatal().Msg("HIRA_SERVICE_KEY is not set")
	}

	svc := services.NewRegistrySyncService(client, services.NewFacilityPersistenceService(repo, searchRepo), cfg.Sync, nil)
	if rows <= 0 {
		rows = cfg.Sync.PageSize
	}

	start := time.Now()
	var result entities.SyncResult
	if all {
		opts := services.SyncOptions{UpdateExisting: update, Regions: splitRegions(regions)}
		log.Info().Int("rows", rows).Bool("update", update).Strs("regions", opts.Regions).Msg("starting full registry sync")
		result, err = svc.SyncAllRegions(ctx, rows, opts)
	} else {
		log.Info().Int("page_no", pageNo).Int("rows", rows).Msg("syncing a single registry page")
		result, err = svc.SyncOneQuery(ctx, pageNo, rows)
	}

	summary, _ := json.Marshal(result)
	log.Info().
		Dur("elapsed", time.Since(start)).
		Int("fetched", result.FetchedCount).
		Int("saved", result.Saved).
		Int("updated", result.Updated).
		RawJSON("result", summary).
		Msg("sync finished")
	if err != nil {
		log.Fatal().Err(err).Msg("sync failed")
	}
}

func splitRegions(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if code := strings.TrimSpace(part); code != "" {
			out = append(out, code)
		}
	}
	return out
}
