package services

import (
	"context"
	"strings"

	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
)

// Listing bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListParams defines one page of the flat facility listing. Page is
// zero-based.
type ListParams struct {
	Page       int
	Size       int
	Keyword    string
	Department string
	SortField  string
	SortDesc   bool
}

// FacilityService handles facility reads
type FacilityService struct {
	repo       repositories.FacilityRepository
	searchRepo repositories.FacilitySearchRepository
}

// NewFacilityService creates a new facility service. searchRepo may be nil,
// in which case keyword listing falls back to the store.
func NewFacilityService(repo repositories.FacilityRepository, searchRepo repositories.FacilitySearchRepository) *FacilityService {
	return &FacilityService{
		repo:       repo,
		searchRepo: searchRepo,
	}
}

// GetByID retrieves a facility by ID
func (s *FacilityService) GetByID(ctx context.Context, id int64) (*entities.Facility, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of facilities. Keyword queries go to the search
// index when one is configured and are ordered by relevance; if the index
// fails the store is queried instead.
func (s *FacilityService) List(ctx context.Context, params ListParams) (entities.FacilityPage, error) {
	params = normalizeListParams(params)

	if s.searchRepo != nil && strings.TrimSpace(params.Keyword) != "" {
		page, err := s.searchList(ctx, params)
		if err == nil {
			return page, nil
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("keyword", params.Keyword).Msg("search index unavailable, listing from store")
	}

	items, total, err := s.repo.List(ctx, repositories.FacilityFilter{
		Keyword:    params.Keyword,
		Department: params.Department,
		SortField:  params.SortField,
		SortDesc:   params.SortDesc,
		Limit:      params.Size,
		Offset:     params.Page * params.Size,
	})
	if err != nil {
		return entities.FacilityPage{}, err
	}
	return entities.NewFacilityPage(items, params.Page, params.Size, total), nil
}

func (s *FacilityService) searchList(ctx context.Context, params ListParams) (entities.FacilityPage, error) {
	result, err := s.searchRepo.Search(ctx, repositories.SearchParams{
		Query:      params.Keyword,
		Department: params.Department,
		Page:       params.Page + 1,
		PerPage:    params.Size,
	})
	if err != nil {
		return entities.FacilityPage{}, err
	}

	facilities, err := s.repo.FindByIDs(ctx, result.IDs)
	if err != nil {
		return entities.FacilityPage{}, err
	}
	byID := make(map[int64]entities.Facility, len(facilities))
	for _, f := range facilities {
		byID[f.ID] = f
	}

	// Keep the index's relevance order; skip hits the store no longer has.
	content := make([]entities.Facility, 0, len(result.IDs))
	for _, id := range result.IDs {
		if f, ok := byID[id]; ok {
			content = append(content, f)
		}
	}
	return entities.NewFacilityPage(content, params.Page, params.Size, result.Total), nil
}

func normalizeListParams(p ListParams) ListParams {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	p.Keyword = strings.TrimSpace(p.Keyword)
	p.Department = strings.TrimSpace(p.Department)
	return p
}
