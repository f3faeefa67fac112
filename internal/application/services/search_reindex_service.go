package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/medicheck/internal/domain/repositories"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
)

// DefaultReindexBatchSize is the page size used to walk the store.
const DefaultReindexBatchSize = 500

// SearchReindexService copies every stored hospital into the search index.
type SearchReindexService struct {
	repo      repositories.FacilityRepository
	index     repositories.FacilitySearchRepository
	batchSize int
}

// NewSearchReindexService creates a new reindex service
func NewSearchReindexService(repo repositories.FacilityRepository, index repositories.FacilitySearchRepository, batchSize int) *SearchReindexService {
	if batchSize <= 0 {
		batchSize = DefaultReindexBatchSize
	}
	return &SearchReindexService{repo: repo, index: index, batchSize: batchSize}
}

// Reindex walks the store in id order and indexes each batch. It returns the
// number of hospitals indexed before any failure.
func (s *SearchReindexService) Reindex(ctx context.Context) (int, error) {
	logger := observability.LoggerFromContext(ctx)
	ctx, span := observability.StartSpan(ctx, "search.Reindex")
	defer span.End()

	indexed := 0
	for offset := 0; ; offset += s.batchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		batch, _, err := s.repo.List(ctx, repositories.FacilityFilter{
			SortField: repositories.SortByID,
			Limit:     s.batchSize,
			Offset:    offset,
		})
		if err != nil {
			observability.RecordError(span, err)
			return indexed, fmt.Errorf("failed to list hospitals at offset %d: %w", offset, err)
		}
		if len(batch) == 0 {
			break
		}
		if err := s.index.Index(ctx, batch); err != nil {
			observability.RecordError(span, err)
			return indexed, fmt.Errorf("failed to index hospitals at offset %d: %w", offset, err)
		}
		indexed += len(batch)
		logger.Debug().Int("offset", offset).Int("count", len(batch)).Msg("indexed hospital batch")
		if len(batch) < s.batchSize {
			break
		}
	}

	logger.Info().Int("indexed", indexed).Msg("search reindex complete")
	return indexed, nil
}
