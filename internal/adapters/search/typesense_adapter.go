package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	tsclient "github.com/zatekoja/medicheck/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
)

// TypesenseAdapter implements facility search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.FacilitySearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.EnsureCollection(ctx)
}

// ResetSchema drops the collection and creates it again.
func (a *TypesenseAdapter) ResetSchema(ctx context.Context) error {
	if err := a.client.DropCollection(ctx); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to drop typesense collection")
	}
	return a.client.EnsureCollection(ctx)
}

// Index upserts each facility. It stops at the first failure.
func (a *TypesenseAdapter) Index(ctx context.Context, facilities []entities.Facility) error {
	ctx, span := observability.StartSpan(ctx, "search.Index")
	defer span.End()

	docs := a.client.Client().Collection(tsclient.HospitalsCollection).Documents()
	for _, f := range facilities {
		if _, err := docs.Upsert(ctx, buildDocument(f)); err != nil {
			observability.RecordError(span, err)
			return fmt.Errorf("failed to index hospital %d: %w", f.ID, err)
		}
	}
	return nil
}

// Search runs a keyword query and returns matching IDs in relevance order
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.SearchParams) (*repositories.SearchResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = 20
	}

	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("name,address,department"),
		Page:    pointer.Int(page),
		PerPage: pointer.Int(perPage),
	}
	if dept := strings.TrimSpace(params.Department); dept != "" {
		searchParams.FilterBy = pointer.String(fmt.Sprintf("department:=`%s`", strings.ReplaceAll(dept, "`", "")))
	}

	result, err := a.client.Client().Collection(tsclient.HospitalsCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search hospitals: %w", err)
	}

	out := &repositories.SearchResult{IDs: []int64{}}
	if result.Found != nil {
		out.Total = int64(*result.Found)
	}
	if result.Hits == nil {
		return out, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		raw, _ := doc["id"].(string)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out.IDs = append(out.IDs, id)
	}
	return out, nil
}

func buildDocument(f entities.Facility) map[string]interface{} {
	doc := map[string]interface{}{
		"id":          strconv.FormatInt(f.ID, 10),
		"public_code": f.PublicCode,
		"name":        f.Name,
		"created_at":  f.CreatedAt.Unix(),
	}
	if f.Address != nil {
		doc["address"] = *f.Address
	}
	if f.Department != nil {
		doc["department"] = *f.Department
	}
	if f.RegionName != nil {
		doc["region_name"] = *f.RegionName
	}
	if f.DistrictName != nil {
		doc["district_name"] = *f.DistrictName
	}
	if f.HasLocation() {
		doc["location"] = []float64{*f.Latitude, *f.Longitude}
	}
	if f.DoctorTotalCount != nil {
		doc["doctor_total_count"] = *f.DoctorTotalCount
	}
	return doc
}
