package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	apperrors "github.com/zatekoja/medicheck/pkg/errors"
	"github.com/zatekoja/medicheck/pkg/geo"
)

func located(code, name string, lat, lon float64) entities.Facility {
	return entities.Facility{PublicCode: code, Name: name, Latitude: &lat, Longitude: &lon}
}

func TestFacilityStore_InsertManySkipsExistingCodes(t *testing.T) {
	ctx := context.Background()
	store := NewFacilityStore()

	first, err := store.InsertMany(ctx, []entities.Facility{{PublicCode: "A", Name: "Alpha"}, {PublicCode: "B", Name: "Beta"}})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(1), first[0].ID)
	assert.Equal(t, int64(2), first[1].ID)

	second, err := store.InsertMany(ctx, []entities.Facility{{PublicCode: "B", Name: "Beta again"}, {PublicCode: "C", Name: "Gamma"}})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "C", second[0].PublicCode)
	assert.Equal(t, 3, store.Len())

	got, err := store.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Beta", got.Name)
}

func TestFacilityStore_InsertManyRejectsBlankName(t *testing.T) {
	_, err := NewFacilityStore().InsertMany(context.Background(), []entities.Facility{{PublicCode: "A", Name: "  "}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestFacilityStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewFacilityStore()
	_, err := store.InsertMany(ctx, []entities.Facility{located("A", "Alpha", 37.5, 127.0)})
	require.NoError(t, err)

	got, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	*got.Latitude = 0

	again, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 37.5, *again.Latitude)
}

func TestFacilityStore_UpdateManyKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewFacilityStore()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.InsertMany(ctx, []entities.Facility{{PublicCode: "A", Name: "Alpha", CreatedAt: created}})
	require.NoError(t, err)

	n, err := store.UpdateMany(ctx, []entities.Facility{
		{ID: 1, PublicCode: "CHANGED", Name: "Alpha Prime"},
		{ID: 42, PublicCode: "X", Name: "Missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Prime", got.Name)
	assert.Equal(t, "A", got.PublicCode)
	assert.Equal(t, created, got.CreatedAt)

	byCode, err := store.FindByPublicCodes(ctx, []string{"A", "CHANGED"})
	require.NoError(t, err)
	require.Len(t, byCode, 1)
}

func TestFacilityStore_FindNearbyIDs(t *testing.T) {
	ctx := context.Background()
	store := NewFacilityStore()
	_, err := store.InsertMany(ctx, []entities.Facility{
		located("FAR", "Far", 37.60, 127.0),
		located("NEAR", "Near", 37.501, 127.0),
		located("SAME", "Same spot", 37.50, 127.0),
		{PublicCode: "NOLOC", Name: "No location"},
	})
	require.NoError(t, err)

	hits, err := store.FindNearbyIDs(ctx, repositories.NearbyQuery{Latitude: 37.5, Longitude: 127.0, RadiusMeters: 500, Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(3), hits[0].ID)
	assert.Equal(t, 0.0, hits[0].DistanceMeters)
	assert.Equal(t, int64(2), hits[1].ID)
	assert.InDelta(t, 111.2, hits[1].DistanceMeters, 0.5)
}

func TestFacilityStore_FindNearbyIDs_BoundaryIsInclusive(t *testing.T) {
	ctx := context.Background()
	store := NewFacilityStore()
	_, err := store.InsertMany(ctx, []entities.Facility{located("EDGE", "Edge", 37.501, 127.0)})
	require.NoError(t, err)

	exact := geo.DistanceMeters(37.5, 127.0, 37.501, 127.0)
	hits, err := store.FindNearbyIDs(ctx, repositories.NearbyQuery{Latitude: 37.5, Longitude: 127.0, RadiusMeters: exact, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestFacilityStore_FindNearbyIDs_JustBeyondRadiusExcluded(t *testing.T) {
	ctx := context.Background()
	store := NewFacilityStore()
	_, err := store.InsertMany(ctx, []entities.Facility{located("EDGE", "Edge", 37.501, 127.0)})
	require.NoError(t, err)

	exact := geo.DistanceMeters(37.5, 127.0, 37.501, 127.0)
	hits, err := store.FindNearbyIDs(ctx, repositories.NearbyQuery{Latitude: 37.5, Longitude: 127.0, RadiusMeters: math.Nextafter(exact, 0), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFacilityStore_FindNearbyIDs_TiesOrderedByIDAndLimited(t *testing.T) {
	ctx := context.Background()
	store := NewFacilityStore()
	for _, code := range []string{"A", "B", "C"} {
		_, err := store.InsertMany(ctx, []entities.Facility{located(code, code, 37.5, 127.0)})
		require.NoError(t, err)
	}

	hits, err := store.FindNearbyIDs(ctx, repositories.NearbyQuery{Latitude: 37.5, Longitude: 127.0, RadiusMeters: 10, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []repositories.NearbyHit{{ID: 1}, {ID: 2}}, hits)
}

func TestFacilityStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewFacilityStore()
	clinic, hospital := "Clinic", "Hospital"
	_, err := store.InsertMany(ctx, []entities.Facility{
		{PublicCode: "1", Name: "Mapo Clinic", Department: &clinic},
		{PublicCode: "2", Name: "Gangnam Hospital", Department: &hospital},
		{PublicCode: "3", Name: "Apgu Clinic", Department: &clinic},
		{PublicCode: "4", Name: "Seodaemun Hospital", Department: &hospital},
	})
	require.NoError(t, err)

	items, total, err := store.List(ctx, repositories.FacilityFilter{Department: "Clinic", SortField: repositories.SortByName})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, "Apgu Clinic", items[0].Name)

	items, total, err = store.List(ctx, repositories.FacilityFilter{Keyword: "HOSPITAL", SortField: repositories.SortByName, SortDesc: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Seodaemun Hospital", items[0].Name)

	items, total, err = store.List(ctx, repositories.FacilityFilter{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Empty(t, items)
}
