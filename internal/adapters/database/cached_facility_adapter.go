package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/providers"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
)

// CachedFacilityAdapter caches single-facility reads in front of a
// FacilityRepository. Writes go straight through; updated IDs are evicted.
type CachedFacilityAdapter struct {
	repositories.FacilityRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedFacilityAdapter creates a new cached facility adapter
func NewCachedFacilityAdapter(adapter repositories.FacilityRepository, cache providers.CacheProvider, metrics *observability.Metrics) *CachedFacilityAdapter {
	return &CachedFacilityAdapter{
		FacilityRepository: adapter,
		cache:              cache,
		metrics:            metrics,
	}
}

// facilityByIDTTL is in seconds.
const facilityByIDTTL = 600

const facilityCachePrefix = "hospital"

func facilityCacheKey(id int64) string {
	return fmt.Sprintf("%s:%d", facilityCachePrefix, id)
}

// GetByID retrieves a facility by ID with caching
func (a *CachedFacilityAdapter) GetByID(ctx context.Context, id int64) (*entities.Facility, error) {
	logger := observability.LoggerFromContext(ctx)
	cacheKey := facilityCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var facility entities.Facility
		if err := json.Unmarshal(cached, &facility); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, facilityCachePrefix)
			return &facility, nil
		}
		logger.Warn().Err(err).Int64("hospital_id", id).Msg("discarding unreadable cached hospital")
	}
	observability.RecordCacheMiss(ctx, a.metrics, facilityCachePrefix)

	facility, err := a.FacilityRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(facility); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, facilityByIDTTL); err != nil {
			logger.Warn().Err(err).Int64("hospital_id", id).Msg("failed to cache hospital")
		}
	}
	return facility, nil
}

// UpdateMany updates through to the store and evicts the cached entries
func (a *CachedFacilityAdapter) UpdateMany(ctx context.Context, facilities []entities.Facility) (int, error) {
	n, err := a.FacilityRepository.UpdateMany(ctx, facilities)
	a.evict(ctx, facilities)
	return n, err
}

func (a *CachedFacilityAdapter) evict(ctx context.Context, facilities []entities.Facility) {
	logger := observability.LoggerFromContext(ctx)
	for _, f := range facilities {
		if err := a.cache.Delete(ctx, facilityCacheKey(f.ID)); err != nil {
			logger.Warn().Err(err).Int64("hospital_id", f.ID).Msg("failed to evict cached hospital")
		}
	}
}
