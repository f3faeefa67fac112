// Package geo holds the spherical math and point encoding shared by the
// PostGIS and in-memory facility stores.
package geo

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID of every stored facility location (WGS84).
const SRID = 4326

// EarthRadiusMeters matches the sphere used by PostGIS ST_DistanceSphere so
// both stores agree on radius boundaries.
const EarthRadiusMeters = 6370986.0

// ValidLatitude reports whether lat is a finite WGS84 latitude.
func ValidLatitude(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lon is a finite WGS84 longitude.
func ValidLongitude(lon float64) bool {
	return !math.IsNaN(lon) && lon >= -180 && lon <= 180
}

// ValidCoordinate reports whether both halves of the pair are in range.
func ValidCoordinate(lat, lon float64) bool {
	return ValidLatitude(lat) && ValidLongitude(lon)
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// boxMargin widens search boxes past float rounding at the radius edge.
const boxMargin = 1.001

// SearchBox returns the half-widths in degrees (dLat, dLon) of a box around
// (lat, lon) that contains every point within radiusMeters. dLon is 180
// when the circle reaches a pole or crosses the antimeridian.
func SearchBox(lat, lon, radiusMeters float64) (float64, float64) {
	angular := radiusMeters / EarthRadiusMeters
	dLat := toDegrees(angular) * boxMargin
	if angular >= math.Pi/2-toRadians(math.Abs(lat)) {
		return dLat, 180
	}
	dLon := toDegrees(math.Asin(math.Min(1, math.Sin(angular)/math.Cos(toRadians(lat))))) * boxMargin
	if lon-dLon < -180 || lon+dLon > 180 {
		return dLat, 180
	}
	return dLat, dLon
}

// Point builds the SRID-tagged point geometry for a coordinate pair.
// Geometry axis order is (lon, lat).
func Point(lat, lon float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(SRID)
}

// PointEWKBHex encodes the point as hex EWKB, suitable for
// ST_GeomFromEWKB(decode(?, 'hex')).
func PointEWKBHex(lat, lon float64) (string, error) {
	if !ValidCoordinate(lat, lon) {
		return "", fmt.Errorf("geo: coordinate out of range (%f, %f)", lat, lon)
	}
	data, err := ewkb.Marshal(Point(lat, lon), ewkb.NDR)
	if err != nil {
		return "", fmt.Errorf("geo: encode EWKB: %w", err)
	}
	return hex.EncodeToString(data), nil
}

// DecodePointEWKBHex is the inverse of PointEWKBHex and returns (lat, lon).
func DecodePointEWKBHex(s string) (float64, float64, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return 0, 0, fmt.Errorf("geo: decode hex: %w", err)
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, fmt.Errorf("geo: decode EWKB: %w", err)
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, fmt.Errorf("geo: expected point, got %T", g)
	}
	return p.Y(), p.X(), nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func toDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
