package services

import (
	"context"
	"math"
	"sort"

	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
	"github.com/zatekoja/medicheck/pkg/config"
	apperrors "github.com/zatekoja/medicheck/pkg/errors"
	"github.com/zatekoja/medicheck/pkg/geo"
)

// NearbyService answers bounded-radius "near me" queries.
type NearbyService struct {
	repo    repositories.FacilityRepository
	cfg     config.NearbyConfig
	metrics *observability.Metrics
}

// NewNearbyService creates a new nearby service
func NewNearbyService(repo repositories.FacilityRepository, cfg config.NearbyConfig, metrics *observability.Metrics) *NearbyService {
	return &NearbyService{repo: repo, cfg: cfg, metrics: metrics}
}

// FindNearby returns located facilities within radiusMeters of (lat, lon),
// nearest first. The radius is capped at the configured maximum and at most
// MaxResults rows are returned; metadata.Truncated reports whether more
// matched.
func (s *NearbyService) FindNearby(ctx context.Context, lat, lon *float64, radiusMeters float64) ([]entities.NearbyResult, entities.NearbyMetadata, error) {
	if lat == nil || lon == nil {
		return nil, entities.NearbyMetadata{}, apperrors.NewValidationError("lat and lng are required")
	}
	if !geo.ValidLatitude(*lat) {
		return nil, entities.NearbyMetadata{}, apperrors.NewValidationError("lat must be between -90 and 90")
	}
	if !geo.ValidLongitude(*lon) {
		return nil, entities.NearbyMetadata{}, apperrors.NewValidationError("lng must be between -180 and 180")
	}
	if math.IsNaN(radiusMeters) || radiusMeters <= 0 {
		return nil, entities.NearbyMetadata{}, apperrors.NewValidationError("radius must be positive")
	}

	ctx, span := observability.StartSpan(ctx, "nearby.FindNearby")
	defer span.End()

	radius := math.Min(radiusMeters, s.cfg.MaxRadiusMeters)
	meta := entities.NearbyMetadata{MaxResults: s.cfg.MaxResults, EffectiveRadiusMeters: radius}

	hits, err := s.repo.FindNearbyIDs(ctx, repositories.NearbyQuery{
		Latitude:     *lat,
		Longitude:    *lon,
		RadiusMeters: radius,
		Limit:        s.cfg.MaxResults + 1,
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, meta, err
	}
	if len(hits) > s.cfg.MaxResults {
		meta.Truncated = true
		hits = hits[:s.cfg.MaxResults]
		observability.RecordNearbyTruncated(ctx, s.metrics)
	}
	if len(hits) == 0 {
		return []entities.NearbyResult{}, meta, nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	facilities, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		observability.RecordError(span, err)
		return nil, meta, err
	}
	byID := make(map[int64]entities.Facility, len(facilities))
	for _, f := range facilities {
		byID[f.ID] = f
	}

	results := make([]entities.NearbyResult, 0, len(hits))
	for _, h := range hits {
		f, ok := byID[h.ID]
		if !ok {
			// removed between the two queries
			continue
		}
		results = append(results, entities.NearbyResult{Facility: f, DistanceMeters: h.DistanceMeters})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].DistanceMeters < results[j].DistanceMeters
	})

	meta.ReturnedCount = len(results)
	return results, meta, nil
}
