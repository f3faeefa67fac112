package services_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/medicheck/internal/adapters/memory"
	"github.com/zatekoja/medicheck/internal/application/services"
	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	"github.com/zatekoja/medicheck/pkg/config"
	apperrors "github.com/zatekoja/medicheck/pkg/errors"
	"github.com/zatekoja/medicheck/pkg/geo"
)

func floatPtr(f float64) *float64 { return &f }

func seedLocated(t *testing.T, store *memory.FacilityStore, specs ...[3]float64) {
	t.Helper()
	facilities := make([]entities.Facility, 0, len(specs))
	for i, s := range specs {
		facilities = append(facilities, entities.Facility{
			PublicCode: fmt.Sprintf("P%d", int(s[0])*1000+i),
			Name:       fmt.Sprintf("Facility %d", i),
			Latitude:   floatPtr(s[1]),
			Longitude:  floatPtr(s[2]),
		})
	}
	_, err := store.InsertMany(context.Background(), facilities)
	require.NoError(t, err)
}

func nearbyConfig(maxResults int) config.NearbyConfig {
	return config.NearbyConfig{MaxResults: maxResults, MaxRadiusMeters: 50000}
}

func TestFindNearby_ValidatesInput(t *testing.T) {
	svc := services.NewNearbyService(memory.NewFacilityStore(), nearbyConfig(10), nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		lat    *float64
		lon    *float64
		radius float64
	}{
		{"missing lat", nil, floatPtr(127), 1000},
		{"missing lon", floatPtr(37.5), nil, 1000},
		{"lat out of range", floatPtr(91), floatPtr(127), 1000},
		{"lon out of range", floatPtr(37.5), floatPtr(-181), 1000},
		{"zero radius", floatPtr(37.5), floatPtr(127), 0},
		{"negative radius", floatPtr(37.5), floatPtr(127), -5},
		{"NaN radius", floatPtr(37.5), floatPtr(127), math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.FindNearby(ctx, tt.lat, tt.lon, tt.radius)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)
		})
	}
}

func TestFindNearby_OrderedAndBounded(t *testing.T) {
	store := memory.NewFacilityStore()
	seedLocated(t, store,
		[3]float64{1, 37.5050, 127.0}, // ~556m
		[3]float64{2, 37.5010, 127.0}, // ~111m
		[3]float64{3, 37.5200, 127.0}, // ~2.2km, outside
		[3]float64{4, 37.5020, 127.0}, // ~222m
	)
	_, err := store.InsertMany(context.Background(), []entities.Facility{{PublicCode: "NOLOC", Name: "No location"}})
	require.NoError(t, err)

	svc := services.NewNearbyService(store, nearbyConfig(10), nil)
	results, meta, err := svc.FindNearby(context.Background(), floatPtr(37.5), floatPtr(127.0), 1000)
	require.NoError(t, err)

	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].DistanceMeters, results[i].DistanceMeters)
	}
	for _, r := range results {
		assert.LessOrEqual(t, r.DistanceMeters, 1000.0)
		assert.True(t, r.Facility.HasLocation())
	}
	assert.Equal(t, 3, meta.ReturnedCount)
	assert.False(t, meta.Truncated)
	assert.Equal(t, 1000.0, meta.EffectiveRadiusMeters)
}

func TestFindNearby_BoundaryIsInclusive(t *testing.T) {
	store := memory.NewFacilityStore()
	seedLocated(t, store, [3]float64{1, 37.5090, 127.0})
	exact := geo.DistanceMeters(37.5, 127.0, 37.5090, 127.0)

	svc := services.NewNearbyService(store, nearbyConfig(10), nil)
	results, _, err := svc.FindNearby(context.Background(), floatPtr(37.5), floatPtr(127.0), exact)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFindNearby_JustBeyondRadiusExcluded(t *testing.T) {
	store := memory.NewFacilityStore()
	seedLocated(t, store, [3]float64{1, 37.5090, 127.0})
	exact := geo.DistanceMeters(37.5, 127.0, 37.5090, 127.0)

	svc := services.NewNearbyService(store, nearbyConfig(10), nil)
	results, meta, err := svc.FindNearby(context.Background(), floatPtr(37.5), floatPtr(127.0), math.Nextafter(exact, 0))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, meta.ReturnedCount)
}

func TestFindNearby_Truncation(t *testing.T) {
	store := memory.NewFacilityStore()
	seedLocated(t, store,
		[3]float64{1, 37.5001, 127.0},
		[3]float64{2, 37.5002, 127.0},
		[3]float64{3, 37.5003, 127.0},
	)
	ctx := context.Background()

	svc := services.NewNearbyService(store, nearbyConfig(2), nil)
	results, meta, err := svc.FindNearby(ctx, floatPtr(37.5), floatPtr(127.0), 1000)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.True(t, meta.Truncated)
	assert.Equal(t, 2, meta.ReturnedCount)
	assert.Equal(t, 2, meta.MaxResults)

	exactly := services.NewNearbyService(store, nearbyConfig(3), nil)
	results, meta, err = exactly.FindNearby(ctx, floatPtr(37.5), floatPtr(127.0), 1000)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.False(t, meta.Truncated)
}

func TestFindNearby_RadiusCapped(t *testing.T) {
	store := memory.NewFacilityStore()
	seedLocated(t, store, [3]float64{1, 38.5, 127.0}) // ~111km away
	svc := services.NewNearbyService(store, nearbyConfig(10), nil)

	results, meta, err := svc.FindNearby(context.Background(), floatPtr(37.5), floatPtr(127.0), 500000)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
	assert.Equal(t, 50000.0, meta.EffectiveRadiusMeters)
}

// vanishingRepo drops one facility between the id query and hydration.
type vanishingRepo struct {
	*memory.FacilityStore
	vanish int64
	err    error
}

func (r *vanishingRepo) FindByIDs(ctx context.Context, ids []int64) ([]entities.Facility, error) {
	if r.err != nil {
		return nil, r.err
	}
	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != r.vanish {
			kept = append(kept, id)
		}
	}
	return r.FacilityStore.FindByIDs(ctx, kept)
}

var _ repositories.FacilityRepository = (*vanishingRepo)(nil)

func TestFindNearby_SkipsVanishedAndKeepsDistanceOrder(t *testing.T) {
	store := memory.NewFacilityStore()
	seedLocated(t, store,
		[3]float64{1, 37.5030, 127.0},
		[3]float64{2, 37.5010, 127.0},
		[3]float64{3, 37.5020, 127.0},
	)
	svc := services.NewNearbyService(&vanishingRepo{FacilityStore: store, vanish: 3}, nearbyConfig(10), nil)

	results, meta, err := svc.FindNearby(context.Background(), floatPtr(37.5), floatPtr(127.0), 1000)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].Facility.ID)
	assert.Equal(t, int64(1), results[1].Facility.ID)
	assert.Equal(t, 2, meta.ReturnedCount)
}

func TestFindNearby_StoreErrorPropagates(t *testing.T) {
	store := memory.NewFacilityStore()
	seedLocated(t, store, [3]float64{1, 37.5010, 127.0})
	boom := apperrors.NewInternalError("failed to query hospitals", errors.New("boom"))
	svc := services.NewNearbyService(&vanishingRepo{FacilityStore: store, err: boom}, nearbyConfig(10), nil)

	_, _, err := svc.FindNearby(context.Background(), floatPtr(37.5), floatPtr(127.0), 1000)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}
