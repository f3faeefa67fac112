package services

import (
	"context"
	"time"

	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/registry"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
)

// FacilityPersistenceService reconciles registry items with the store,
// keyed by public code. Both operations are idempotent: replaying the same
// page inserts nothing new and rewrites the same values.
type FacilityPersistenceService struct {
	repo   repositories.FacilityRepository
	search repositories.FacilitySearchRepository
	now    func() time.Time
}

// NewFacilityPersistenceService creates a new persistence service. search may
// be nil.
func NewFacilityPersistenceService(repo repositories.FacilityRepository, search repositories.FacilitySearchRepository) *FacilityPersistenceService {
	return &FacilityPersistenceService{
		repo:   repo,
		search: search,
		now:    time.Now,
	}
}

// SaveNew inserts the items whose public code is neither stored nor seen
// earlier in the batch, and returns how many rows were written.
func (s *FacilityPersistenceService) SaveNew(ctx context.Context, items []registry.RawItem) (int, error) {
	logger := observability.LoggerFromContext(ctx)

	facilities, dropped := CoerceItems(items)
	if dropped > 0 {
		logger.Debug().Int("dropped", dropped).Msg("skipped registry items without public code or name")
	}
	if len(facilities) == 0 {
		return 0, nil
	}

	existing, err := s.repo.FindByPublicCodes(ctx, distinctCodes(facilities))
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(existing)+len(facilities))
	for _, f := range existing {
		seen[f.PublicCode] = true
	}

	now := s.now()
	fresh := make([]entities.Facility, 0, len(facilities))
	for _, f := range facilities {
		if seen[f.PublicCode] {
			continue
		}
		seen[f.PublicCode] = true
		f.CreatedAt = now
		f.UpdatedAt = now
		fresh = append(fresh, f)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	inserted, err := s.repo.InsertMany(ctx, fresh)
	if err != nil {
		return 0, err
	}
	s.index(ctx, inserted)
	return len(inserted), nil
}

// UpdateExisting rewrites the stored facilities that match an item's public
// code. Items without a stored match are skipped.
func (s *FacilityPersistenceService) UpdateExisting(ctx context.Context, items []registry.RawItem) (int, error) {
	facilities, _ := CoerceItems(items)
	if len(facilities) == 0 {
		return 0, nil
	}

	existing, err := s.repo.FindByPublicCodes(ctx, distinctCodes(facilities))
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 0, nil
	}

	byCode := make(map[string]entities.Facility, len(existing))
	for _, f := range existing {
		byCode[f.PublicCode] = f
	}

	now := s.now()
	var order []string
	pending := make(map[string]bool, len(byCode))
	for _, f := range facilities {
		current, ok := byCode[f.PublicCode]
		if !ok {
			continue
		}
		// a repeated code folds onto the pending value
		byCode[f.PublicCode] = current.ApplyUpdate(f, now)
		if !pending[f.PublicCode] {
			pending[f.PublicCode] = true
			order = append(order, f.PublicCode)
		}
	}
	if len(order) == 0 {
		return 0, nil
	}

	updates := make([]entities.Facility, 0, len(order))
	for _, code := range order {
		updates = append(updates, byCode[code])
	}

	n, err := s.repo.UpdateMany(ctx, updates)
	if err != nil {
		return 0, err
	}
	s.index(ctx, updates)
	return n, nil
}

// index is best effort; the store stays the source of truth.
func (s *FacilityPersistenceService) index(ctx context.Context, facilities []entities.Facility) {
	if s.search == nil || len(facilities) == 0 {
		return
	}
	if err := s.search.Index(ctx, facilities); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Int("count", len(facilities)).Msg("failed to index hospitals")
	}
}

func distinctCodes(facilities []entities.Facility) []string {
	seen := make(map[string]bool, len(facilities))
	codes := make([]string, 0, len(facilities))
	for _, f := range facilities {
		if seen[f.PublicCode] {
			continue
		}
		seen[f.PublicCode] = true
		codes = append(codes, f.PublicCode)
	}
	return codes
}
