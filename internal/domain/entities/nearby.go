package entities

// NearbyResult pairs a facility with its distance from the query point.
type NearbyResult struct {
	Facility       Facility `json:"hospital"`
	DistanceMeters float64  `json:"distanceMeters"`
}

// NearbyMetadata describes how a proximity result list was cut.
type NearbyMetadata struct {
	ReturnedCount         int     `json:"returnedCount"`
	Truncated             bool    `json:"truncated"`
	MaxResults            int     `json:"maxResults"`
	EffectiveRadiusMeters float64 `json:"effectiveRadiusMeters"`
}
