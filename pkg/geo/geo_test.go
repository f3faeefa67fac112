package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMeters(t *testing.T) {
	// Seoul City Hall to Gangnam Station is roughly 8.8 km.
	d := DistanceMeters(37.5663, 126.9779, 37.4979, 127.0276)
	assert.InDelta(t, 8800, d, 300)

	assert.Zero(t, DistanceMeters(37.5, 127.0, 37.5, 127.0))

	// One degree of latitude on the PostGIS sphere.
	assert.InDelta(t, EarthRadiusMeters*math.Pi/180, DistanceMeters(0, 0, 1, 0), 1e-6)
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := DistanceMeters(35.1796, 129.0756, 37.5665, 126.9780)
	b := DistanceMeters(37.5665, 126.9780, 35.1796, 129.0756)
	assert.InDelta(t, a, b, 1e-6)
}

func TestValidCoordinate(t *testing.T) {
	assert.True(t, ValidCoordinate(37.5, 127.0))
	assert.True(t, ValidCoordinate(-90, 180))
	assert.False(t, ValidCoordinate(90.1, 0))
	assert.False(t, ValidCoordinate(0, -180.5))
	assert.False(t, ValidCoordinate(math.NaN(), 0))
}

func TestPointEWKBHex_RoundTrip(t *testing.T) {
	encoded, err := PointEWKBHex(37.5665, 126.9780)
	require.NoError(t, err)
	// little-endian point with SRID flag set
	assert.Equal(t, "0101000020e6100000", encoded[:18])

	lat, lon, err := DecodePointEWKBHex(encoded)
	require.NoError(t, err)
	assert.Equal(t, 37.5665, lat)
	assert.Equal(t, 126.9780, lon)
}

func TestPointEWKBHex_RejectsOutOfRange(t *testing.T) {
	_, err := PointEWKBHex(120, 10)
	assert.Error(t, err)
}

func TestSearchBox_ContainsCircle(t *testing.T) {
	lat, lon, radius := 37.5, 127.0, 5000.0
	dLat, dLon := SearchBox(lat, lon, radius)

	// Points exactly on the circle due north and due east sit inside the box.
	north := math.Asin(math.Sin(toRadians(lat))*math.Cos(radius/EarthRadiusMeters)+
		math.Cos(toRadians(lat))*math.Sin(radius/EarthRadiusMeters)) * 180 / math.Pi
	assert.Less(t, north-lat, dLat)
	assert.InDelta(t, radius, DistanceMeters(lat, lon, north, lon), 1e-3)

	for lonOff := 0.0; ; lonOff += 0.0005 {
		if DistanceMeters(lat, lon, lat, lon+lonOff) > radius {
			assert.Less(t, lonOff-0.0005, dLon)
			break
		}
	}
	assert.Greater(t, dLon, dLat, "longitude degrees are shorter away from the equator")
}

func TestSearchBox_PoleAndAntimeridian(t *testing.T) {
	_, dLon := SearchBox(89.99, 0, 5000)
	assert.Equal(t, 180.0, dLon)

	_, dLon = SearchBox(0, 179.99, 5000)
	assert.Equal(t, 180.0, dLon)

	dLat, dLon := SearchBox(0, 0, 1000)
	assert.Less(t, dLat, 0.01)
	assert.Less(t, dLon, 0.01)
}
