package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/medicheck/internal/adapters/memory"
	"github.com/zatekoja/medicheck/internal/application/services"
	"github.com/zatekoja/medicheck/internal/domain/entities"
)

func batchOf(n int) interface{} {
	return mock.MatchedBy(func(fs []entities.Facility) bool { return len(fs) == n })
}

func TestSearchReindex_WalksAllBatches(t *testing.T) {
	store := memory.NewFacilityStore()
	seedNamed(t, store, "A", "B", "C", "D", "E")
	index := new(MockSearchRepository)
	index.On("Index", mock.Anything, batchOf(2)).Return(nil).Twice()
	index.On("Index", mock.Anything, batchOf(1)).Return(nil).Once()

	n, err := services.NewSearchReindexService(store, index, 2).Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	index.AssertExpectations(t)
}

func TestSearchReindex_ExactMultipleStopsOnEmptyPage(t *testing.T) {
	store := memory.NewFacilityStore()
	seedNamed(t, store, "A", "B", "C", "D")
	index := new(MockSearchRepository)
	index.On("Index", mock.Anything, batchOf(2)).Return(nil)

	n, err := services.NewSearchReindexService(store, index, 2).Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	index.AssertNumberOfCalls(t, "Index", 2)
}

func TestSearchReindex_StopsOnIndexError(t *testing.T) {
	store := memory.NewFacilityStore()
	seedNamed(t, store, "A", "B", "C")
	index := new(MockSearchRepository)
	index.On("Index", mock.Anything, mock.Anything).Return(nil).Once()
	index.On("Index", mock.Anything, mock.Anything).Return(errors.New("typesense down")).Once()

	n, err := services.NewSearchReindexService(store, index, 2).Reindex(context.Background())
	assert.ErrorContains(t, err, "typesense down")
	assert.Equal(t, 2, n)
}

func TestSearchReindex_EmptyStore(t *testing.T) {
	index := new(MockSearchRepository)
	n, err := services.NewSearchReindexService(memory.NewFacilityStore(), index, 0).Reindex(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	index.AssertNotCalled(t, "Index", mock.Anything, mock.Anything)
}
