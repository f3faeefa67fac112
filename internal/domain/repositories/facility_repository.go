package repositories

import (
	"context"

	"github.com/zatekoja/medicheck/internal/domain/entities"
)

// FacilityRepository defines the interface for facility persistence.
type FacilityRepository interface {
	// GetByID retrieves a facility by its surrogate ID
	GetByID(ctx context.Context, id int64) (*entities.Facility, error)

	// FindByIDs retrieves the facilities with the given IDs; missing IDs are skipped
	FindByIDs(ctx context.Context, ids []int64) ([]entities.Facility, error)

	// FindByPublicCodes retrieves the facilities whose public code is in codes
	FindByPublicCodes(ctx context.Context, codes []string) ([]entities.Facility, error)

	// InsertMany inserts the facilities in a single transaction. Rows whose
	// public code already exists are skipped; only inserted rows are returned.
	InsertMany(ctx context.Context, facilities []entities.Facility) ([]entities.Facility, error)

	// UpdateMany writes the mutable fields of each facility, matched by ID,
	// in a single transaction and returns the number of rows changed.
	UpdateMany(ctx context.Context, facilities []entities.Facility) (int, error)

	// FindNearbyIDs returns up to query.Limit located facilities within
	// query.RadiusMeters of the query point, nearest first.
	FindNearbyIDs(ctx context.Context, query NearbyQuery) ([]NearbyHit, error)

	// List retrieves one page of facilities and the total match count
	List(ctx context.Context, filter FacilityFilter) ([]entities.Facility, int64, error)
}

// NearbyQuery is a bounded-radius proximity lookup.
type NearbyQuery struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	Limit        int
}

// NearbyHit is one row of a proximity lookup.
type NearbyHit struct {
	ID             int64
	DistanceMeters float64
}

// Sortable listing fields.
const (
	SortByID        = "id"
	SortByName      = "name"
	SortByCreatedAt = "createdAt"
	SortByUpdatedAt = "updatedAt"
)

// FacilityFilter defines filters for listing facilities
type FacilityFilter struct {
	Keyword    string
	Department string
	SortField  string
	SortDesc   bool
	Limit      int
	Offset     int
}

// FacilitySearchRepository defines the interface for the facility search index (Typesense)
type FacilitySearchRepository interface {
	// Index upserts facilities into the search index
	Index(ctx context.Context, facilities []entities.Facility) error

	// Search returns matching facility IDs in relevance order and the total hit count
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
}

// SearchParams defines a keyword search against the index
type SearchParams struct {
	Query      string
	Department string
	Page       int
	PerPage    int
}

// SearchResult is one page of search hits
type SearchResult struct {
	IDs   []int64
	Total int64
}
