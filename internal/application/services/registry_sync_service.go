package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/registry"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
	"github.com/zatekoja/medicheck/pkg/config"
	"github.com/zatekoja/medicheck/pkg/retry"
)

// RegionCodes are the top-level administrative regions traversed by a full
// sync, in traversal order.
var RegionCodes = []string{
	"110000", // Seoul
	"210000", // Busan
	"220000", // Incheon
	"230000", // Daegu
	"240000", // Gwangju
	"250000", // Daejeon
	"260000", // Ulsan
	"310000", // Gyeonggi
	"320000", // Gangwon
	"330000", // Chungbuk
	"340000", // Chungnam
	"350000", // Jeonbuk
	"360000", // Jeonnam
	"370000", // Gyeongbuk
	"380000", // Gyeongnam
	"390000", // Jeju
	"410000", // Sejong
}

// FacilityPersister stores coerced registry pages.
type FacilityPersister interface {
	SaveNew(ctx context.Context, items []registry.RawItem) (int, error)
	UpdateExisting(ctx context.Context, items []registry.RawItem) (int, error)
}

// SyncOptions tunes a full sync.
type SyncOptions struct {
	// UpdateExisting also rewrites already stored facilities from each page.
	UpdateExisting bool
	// Regions overrides RegionCodes when non-empty.
	Regions []string
}

var errEmptyPage = errors.New("registry returned an empty page")

// RegistrySyncService pulls facility pages from the registry into the store.
// Traversal is sequential; each page is persisted in its own transaction.
type RegistrySyncService struct {
	client  registry.Client
	store   FacilityPersister
	cfg     config.SyncConfig
	metrics *observability.Metrics
}

// NewRegistrySyncService creates a new sync service
func NewRegistrySyncService(client registry.Client, store FacilityPersister, cfg config.SyncConfig, metrics *observability.Metrics) *RegistrySyncService {
	return &RegistrySyncService{
		client:  client,
		store:   store,
		cfg:     cfg,
		metrics: metrics,
	}
}

// KeyConfigured reports whether the registry credential is present
func (s *RegistrySyncService) KeyConfigured() bool {
	return s.client.KeyConfigured()
}

// SyncOneQuery fetches a single page of the default region and inserts the
// facilities not yet stored.
func (s *RegistrySyncService) SyncOneQuery(ctx context.Context, pageNo, pageSize int) (entities.SyncResult, error) {
	logger := observability.LoggerFromContext(ctx)
	if !s.client.KeyConfigured() {
		logger.Warn().Msg("registry service key not configured, skipping sync")
		return entities.SyncResult{}, nil
	}

	ctx, span := observability.StartSpan(ctx, "sync.OneQuery")
	defer span.End()

	items := s.client.FetchPage(ctx, pageNo, pageSize, registry.Filters{})
	observability.RecordSyncPage(ctx, s.metrics, registry.DefaultRegionCode, len(items))

	result := entities.SyncResult{KeyConfigured: true, FetchedCount: len(items)}
	saved, err := s.store.SaveNew(ctx, items)
	if err != nil {
		observability.RecordError(span, err)
		return result, err
	}
	result.Saved = saved
	observability.RecordSyncPersisted(ctx, s.metrics, registry.DefaultRegionCode, saved, 0)

	logger.Info().
		Int("page_no", pageNo).
		Int("fetched", result.FetchedCount).
		Int("saved", result.Saved).
		Msg("registry page synchronized")
	return result, nil
}

// SyncAllRegions walks every region page by page until an empty page or the
// per-region page ceiling. A failing region is logged and abandoned without
// affecting the others. A cancelled context stops the walk between pages and
// returns the partial totals with the context error.
func (s *RegistrySyncService) SyncAllRegions(ctx context.Context, pageSize int, opts SyncOptions) (entities.SyncResult, error) {
	logger := observability.LoggerFromContext(ctx)
	if !s.client.KeyConfigured() {
		logger.Warn().Msg("registry service key not configured, skipping full sync")
		return entities.SyncResult{}, nil
	}
	if pageSize <= 0 {
		pageSize = s.cfg.PageSize
	}

	regions := opts.Regions
	if len(regions) == 0 {
		regions = RegionCodes
	}

	result := entities.SyncResult{KeyConfigured: true, Regions: []entities.RegionSyncResult{}}
	for _, code := range regions {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Str("region_code", code).Msg("full sync cancelled")
			return result, err
		}
		result.Add(s.syncRegion(ctx, code, pageSize, opts))
	}

	logger.Info().
		Int("regions", len(result.Regions)).
		Int("fetched", result.FetchedCount).
		Int("saved", result.Saved).
		Int("updated", result.Updated).
		Msg("full registry sync finished")
	return result, ctx.Err()
}

func (s *RegistrySyncService) syncRegion(ctx context.Context, code string, pageSize int, opts SyncOptions) entities.RegionSyncResult {
	ctx, span := observability.StartSpan(ctx, "sync.Region")
	defer span.End()

	logger := observability.LoggerFromContext(ctx).With().Str("region_code", code).Logger()
	region := entities.RegionSyncResult{RegionCode: code}

	for page := 1; ; page++ {
		if page > s.cfg.MaxPagesPerRegion {
			logger.Warn().Int("max_pages", s.cfg.MaxPagesPerRegion).Msg("page ceiling reached, abandoning region")
			observability.RecordSyncCeiling(ctx, s.metrics, code)
			region.CeilingHit = true
			return region
		}
		if ctx.Err() != nil {
			return region
		}

		items := s.fetchPage(ctx, code, page, pageSize)
		observability.RecordSyncPage(ctx, s.metrics, code, len(items))
		if len(items) == 0 {
			logger.Debug().Int("page_no", page).Msg("empty page, region exhausted")
			return region
		}
		region.Pages++
		region.Fetched += len(items)

		// Update before insert: rows new on this page count as saved only.
		updated := 0
		if opts.UpdateExisting {
			n, err := s.store.UpdateExisting(ctx, items)
			if err != nil {
				return abandon(&logger, region, page, err)
			}
			updated = n
			region.Updated += updated
		}

		saved, err := s.store.SaveNew(ctx, items)
		if err != nil {
			return abandon(&logger, region, page, err)
		}
		region.Saved += saved
		observability.RecordSyncPersisted(ctx, s.metrics, code, saved, updated)

		logger.Info().
			Int("page_no", page).
			Int("fetched", len(items)).
			Int("saved", saved).
			Int("updated", updated).
			Msg("region page synchronized")
	}
}

func abandon(logger *zerolog.Logger, region entities.RegionSyncResult, page int, err error) entities.RegionSyncResult {
	logger.Error().Err(err).Int("page_no", page).Msg("failed to persist page, abandoning region")
	region.Error = err.Error()
	return region
}

// fetchPage re-requests an empty page up to EmptyPageRetries times before
// treating it as the end of the region.
func (s *RegistrySyncService) fetchPage(ctx context.Context, code string, page, pageSize int) []registry.RawItem {
	var items []registry.RawItem
	cfg := retry.Attempts(s.cfg.EmptyPageRetries+1, s.cfg.RetryDelay)
	_ = retry.Do(ctx, cfg, func() error {
		items = s.client.FetchPage(ctx, page, pageSize, registry.Filters{RegionCode: code})
		if len(items) == 0 {
			return errEmptyPage
		}
		return nil
	})
	return items
}
