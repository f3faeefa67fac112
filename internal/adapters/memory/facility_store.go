// Package memory provides an in-process FacilityRepository used when no
// database is configured and by the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	apperrors "github.com/zatekoja/medicheck/pkg/errors"
	"github.com/zatekoja/medicheck/pkg/geo"
)

// FacilityStore keeps facilities in memory keyed by ID with a unique index on
// public code. Stored values are cloned on the way in and out.
type FacilityStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]entities.Facility
	byCode map[string]int64
}

var _ repositories.FacilityRepository = (*FacilityStore)(nil)

// NewFacilityStore creates an empty store
func NewFacilityStore() *FacilityStore {
	return &FacilityStore{
		byID:   make(map[int64]entities.Facility),
		byCode: make(map[string]int64),
	}
}

// Len returns the number of stored facilities
func (s *FacilityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// GetByID retrieves a facility by ID
func (s *FacilityStore) GetByID(_ context.Context, id int64) (*entities.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("hospital %d not found", id))
	}
	c := f.Clone()
	return &c, nil
}

// FindByIDs retrieves facilities by ID in ascending ID order
func (s *FacilityStore) FindByIDs(_ context.Context, ids []int64) ([]entities.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []entities.Facility{}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if f, ok := s.byID[id]; ok {
			out = append(out, f.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

// FindByPublicCodes retrieves facilities by registry code
func (s *FacilityStore) FindByPublicCodes(_ context.Context, codes []string) ([]entities.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []entities.Facility{}
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true
		if id, ok := s.byCode[code]; ok {
			out = append(out, s.byID[id].Clone())
		}
	}
	sortByID(out)
	return out, nil
}

// InsertMany assigns IDs and stores facilities whose public code is not yet
// present. Conflicting rows are skipped.
func (s *FacilityStore) InsertMany(_ context.Context, facilities []entities.Facility) ([]entities.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := []entities.Facility{}
	for _, f := range facilities {
		if _, exists := s.byCode[f.PublicCode]; exists {
			continue
		}
		if strings.TrimSpace(f.Name) == "" {
			return nil, apperrors.NewValidationError("hospital name must not be blank")
		}
		s.nextID++
		stored := f.Clone()
		stored.ID = s.nextID
		s.byID[stored.ID] = stored
		s.byCode[stored.PublicCode] = stored.ID
		inserted = append(inserted, stored.Clone())
	}
	return inserted, nil
}

// UpdateMany replaces the mutable fields of facilities matched by ID.
// ID, PublicCode and CreatedAt of the stored row are kept.
func (s *FacilityStore) UpdateMany(_ context.Context, facilities []entities.Facility) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, f := range facilities {
		current, ok := s.byID[f.ID]
		if !ok {
			continue
		}
		next := f.Clone()
		next.ID = current.ID
		next.PublicCode = current.PublicCode
		next.CreatedAt = current.CreatedAt
		s.byID[next.ID] = next
		updated++
	}
	return updated, nil
}

// FindNearbyIDs scans every located facility. The radius bound is inclusive.
func (s *FacilityStore) FindNearbyIDs(_ context.Context, q repositories.NearbyQuery) ([]repositories.NearbyHit, error) {
	s.mu.RLock()
	hits := []repositories.NearbyHit{}
	for id, f := range s.byID {
		if !f.HasLocation() {
			continue
		}
		d := geo.DistanceMeters(q.Latitude, q.Longitude, *f.Latitude, *f.Longitude)
		if d <= q.RadiusMeters {
			hits = append(hits, repositories.NearbyHit{ID: id, DistanceMeters: d})
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceMeters != hits[j].DistanceMeters {
			return hits[i].DistanceMeters < hits[j].DistanceMeters
		}
		return hits[i].ID < hits[j].ID
	})
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// List filters by keyword and department, sorts, and pages
func (s *FacilityStore) List(_ context.Context, filter repositories.FacilityFilter) ([]entities.Facility, int64, error) {
	kw := strings.ToLower(strings.TrimSpace(filter.Keyword))
	dept := strings.TrimSpace(filter.Department)

	s.mu.RLock()
	matched := []entities.Facility{}
	for _, f := range s.byID {
		if kw != "" && !matchesKeyword(f, kw) {
			continue
		}
		if dept != "" && (f.Department == nil || *f.Department != dept) {
			continue
		}
		matched = append(matched, f.Clone())
	}
	s.mu.RUnlock()

	less := lessFunc(filter.SortField)
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if filter.SortDesc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []entities.Facility{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func matchesKeyword(f entities.Facility, kw string) bool {
	if strings.Contains(strings.ToLower(f.Name), kw) {
		return true
	}
	for _, field := range []*string{f.Address, f.Department} {
		if field != nil && strings.Contains(strings.ToLower(*field), kw) {
			return true
		}
	}
	return false
}

func lessFunc(field string) func(a, b entities.Facility) bool {
	switch field {
	case repositories.SortByName:
		return func(a, b entities.Facility) bool { return a.Name < b.Name }
	case repositories.SortByCreatedAt:
		return func(a, b entities.Facility) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case repositories.SortByUpdatedAt:
		return func(a, b entities.Facility) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return func(a, b entities.Facility) bool { return a.ID < b.ID }
	}
}

func sortByID(fs []entities.Facility) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].ID < fs[j].ID })
}
