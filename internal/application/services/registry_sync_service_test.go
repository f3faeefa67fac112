package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/medicheck/internal/adapters/memory"
	"github.com/zatekoja/medicheck/internal/application/services"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/registry"
	"github.com/zatekoja/medicheck/pkg/config"
)

// fakeRegistry serves scripted pages per region. Pages not scripted are empty.
type fakeRegistry struct {
	mu     sync.Mutex
	key    bool
	pages  map[string][][]registry.RawItem
	calls  map[string]int
	onCall func(region string, pageNo int)
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{key: true, pages: map[string][][]registry.RawItem{}, calls: map[string]int{}}
}

func (f *fakeRegistry) KeyConfigured() bool { return f.key }

func (f *fakeRegistry) FetchPage(_ context.Context, pageNo, _ int, filters registry.Filters) []registry.RawItem {
	region := filters.RegionCode
	if region == "" {
		region = registry.DefaultRegionCode
	}
	f.mu.Lock()
	f.calls[region]++
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(region, pageNo)
	}

	f.mu.Lock()
	pages := f.pages[region]
	f.mu.Unlock()
	if pageNo < 1 || pageNo > len(pages) {
		return []registry.RawItem{}
	}
	return pages[pageNo-1]
}

func (f *fakeRegistry) FetchRaw(_ context.Context, _, _ int, _ string) registry.RawResponse {
	return registry.RawResponse{KeyConfigured: f.key}
}

func (f *fakeRegistry) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func syncConfig() config.SyncConfig {
	return config.SyncConfig{PageSize: 100, MaxPagesPerRegion: 100, EmptyPageRetries: 1}
}

func newSyncService(client registry.Client, cfg config.SyncConfig) (*services.RegistrySyncService, *memory.FacilityStore) {
	store := memory.NewFacilityStore()
	persistence := services.NewFacilityPersistenceService(store, nil)
	return services.NewRegistrySyncService(client, persistence, cfg, nil), store
}

func TestSyncAllRegions_SeoulThreeThenEmpty(t *testing.T) {
	client := newFakeRegistry()
	client.pages["110000"] = [][]registry.RawItem{{rawItem("A", "Alpha"), rawItem("B", "Beta"), rawItem("C", "Gamma")}}
	svc, store := newSyncService(client, syncConfig())

	result, err := svc.SyncAllRegions(context.Background(), 100, services.SyncOptions{})
	require.NoError(t, err)

	assert.True(t, result.KeyConfigured)
	assert.Equal(t, 3, result.FetchedCount)
	assert.Equal(t, 3, result.Saved)
	assert.Zero(t, result.Updated)
	assert.Len(t, result.Regions, len(services.RegionCodes))
	assert.Equal(t, 3, store.Len())

	// Seoul: page 1, page 2 plus one retry. Every other region: page 1 plus one retry.
	assert.Equal(t, 3, client.calls["110000"])
	assert.Equal(t, 2, client.calls["210000"])
}

func TestSyncAllRegions_IsIdempotent(t *testing.T) {
	client := newFakeRegistry()
	client.pages["110000"] = [][]registry.RawItem{{rawItem("A", "Alpha"), rawItem("B", "Beta")}}
	client.pages["390000"] = [][]registry.RawItem{{rawItem("J", "Jeju")}}
	svc, store := newSyncService(client, syncConfig())

	first, err := svc.SyncAllRegions(context.Background(), 100, services.SyncOptions{})
	require.NoError(t, err)
	second, err := svc.SyncAllRegions(context.Background(), 100, services.SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, first.Saved)
	assert.Zero(t, second.Saved)
	assert.Equal(t, 3, second.FetchedCount)
	assert.Equal(t, 3, store.Len())
}

func TestSyncAllRegions_NoKeyMakesNoCalls(t *testing.T) {
	client := newFakeRegistry()
	client.key = false
	svc, _ := newSyncService(client, syncConfig())

	result, err := svc.SyncAllRegions(context.Background(), 100, services.SyncOptions{})
	require.NoError(t, err)
	assert.False(t, result.KeyConfigured)
	assert.Zero(t, result.FetchedCount)
	assert.Zero(t, client.totalCalls())

	one, err := svc.SyncOneQuery(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.False(t, one.KeyConfigured)
	assert.Zero(t, client.totalCalls())
}

func TestSyncAllRegions_PageCeiling(t *testing.T) {
	client := newFakeRegistry()
	var pages [][]registry.RawItem
	for i := 1; i <= 5; i++ {
		pages = append(pages, []registry.RawItem{rawItem(fmt.Sprintf("S%d", i), "Seoul")})
	}
	client.pages["110000"] = pages

	cfg := syncConfig()
	cfg.MaxPagesPerRegion = 3
	svc, store := newSyncService(client, cfg)

	result, err := svc.SyncAllRegions(context.Background(), 1, services.SyncOptions{Regions: []string{"110000", "210000"}})
	require.NoError(t, err)

	require.Len(t, result.Regions, 2)
	assert.True(t, result.Regions[0].CeilingHit)
	assert.Equal(t, 3, result.Regions[0].Pages)
	assert.False(t, result.Regions[1].CeilingHit)
	assert.Equal(t, 3, result.Saved)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 3, client.calls["110000"])
}

func TestSyncAllRegions_TransientEmptyPageRecovers(t *testing.T) {
	client := newFakeRegistry()
	full := [][]registry.RawItem{{rawItem("A", "Alpha")}, {rawItem("B", "Beta")}}
	client.pages["110000"] = full[:1]
	pageTwoCalls := 0
	client.onCall = func(region string, pageNo int) {
		if region == "110000" && pageNo == 2 {
			pageTwoCalls++
			if pageTwoCalls == 2 {
				client.mu.Lock()
				client.pages["110000"] = full
				client.mu.Unlock()
			}
		}
	}
	svc, store := newSyncService(client, syncConfig())

	result, err := svc.SyncAllRegions(context.Background(), 1, services.SyncOptions{Regions: []string{"110000"}})
	require.NoError(t, err)
	assert.Equal(t, 2, pageTwoCalls)
	assert.Equal(t, 2, result.Saved)
	assert.Equal(t, 2, result.Regions[0].Pages)
	assert.Equal(t, 2, store.Len())
}

func TestSyncAllRegions_NoEmptyPageRetries(t *testing.T) {
	client := newFakeRegistry()
	client.pages["110000"] = [][]registry.RawItem{{rawItem("A", "Alpha")}}
	cfg := syncConfig()
	cfg.EmptyPageRetries = 0
	svc, _ := newSyncService(client, cfg)

	_, err := svc.SyncAllRegions(context.Background(), 1, services.SyncOptions{Regions: []string{"110000"}})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls["110000"])
}

type failingPersister struct {
	failRegionCalls int
	calls           int
}

func (p *failingPersister) SaveNew(_ context.Context, items []registry.RawItem) (int, error) {
	p.calls++
	if p.calls == p.failRegionCalls {
		return 0, errors.New("connection refused")
	}
	return len(items), nil
}

func (p *failingPersister) UpdateExisting(_ context.Context, _ []registry.RawItem) (int, error) {
	return 0, nil
}

func TestSyncAllRegions_PersistenceErrorAbandonsRegionOnly(t *testing.T) {
	client := newFakeRegistry()
	client.pages["110000"] = [][]registry.RawItem{{rawItem("A", "Alpha")}, {rawItem("B", "Beta")}, {rawItem("C", "Gamma")}}
	client.pages["210000"] = [][]registry.RawItem{{rawItem("D", "Delta")}}

	persister := &failingPersister{failRegionCalls: 2}
	svc := services.NewRegistrySyncService(client, persister, syncConfig(), nil)

	result, err := svc.SyncAllRegions(context.Background(), 1, services.SyncOptions{Regions: []string{"110000", "210000"}})
	require.NoError(t, err)

	require.Len(t, result.Regions, 2)
	assert.Equal(t, 1, result.Regions[0].Saved)
	assert.Equal(t, "connection refused", result.Regions[0].Error)
	assert.Equal(t, 2, client.calls["110000"], "page 3 is never requested")
	assert.Equal(t, 1, result.Regions[1].Saved)
	assert.Equal(t, 2, result.Saved)
}

func TestSyncAllRegions_UpdateExisting(t *testing.T) {
	client := newFakeRegistry()
	client.pages["110000"] = [][]registry.RawItem{{rawItem("A", "Alpha"), rawItem("B", "Beta")}}
	svc, store := newSyncService(client, syncConfig())
	opts := services.SyncOptions{UpdateExisting: true, Regions: []string{"110000"}}

	first, err := svc.SyncAllRegions(context.Background(), 100, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Saved)
	assert.Zero(t, first.Updated, "fresh inserts are not counted as updates")

	client.pages["110000"] = [][]registry.RawItem{{rawItem("A", "Alpha Renamed"), rawItem("B", "Beta"), rawItem("C", "Gamma")}}
	second, err := svc.SyncAllRegions(context.Background(), 100, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Saved)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 3, store.Len())

	found, err := store.FindByPublicCodes(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, "Alpha Renamed", found[0].Name)
}

func TestSyncAllRegions_CancelledContextReturnsPartialTotals(t *testing.T) {
	client := newFakeRegistry()
	client.pages["110000"] = [][]registry.RawItem{{rawItem("A", "Alpha")}}
	client.pages["210000"] = [][]registry.RawItem{{rawItem("B", "Beta")}}

	ctx, cancel := context.WithCancel(context.Background())
	client.onCall = func(region string, pageNo int) {
		if region == "110000" && pageNo == 2 {
			cancel()
		}
	}
	svc, _ := newSyncService(client, syncConfig())

	result, err := svc.SyncAllRegions(ctx, 100, services.SyncOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Saved)
	assert.Zero(t, client.calls["210000"])
}

func TestSyncOneQuery(t *testing.T) {
	client := newFakeRegistry()
	client.pages["110000"] = [][]registry.RawItem{{rawItem("A", "Alpha"), rawItem("B", "Beta"), rawItem("", "Dropped")}}
	svc, store := newSyncService(client, syncConfig())

	result, err := svc.SyncOneQuery(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.True(t, result.KeyConfigured)
	assert.Equal(t, 3, result.FetchedCount)
	assert.Equal(t, 2, result.Saved)
	assert.Nil(t, result.Regions)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 1, client.calls["110000"])
}
