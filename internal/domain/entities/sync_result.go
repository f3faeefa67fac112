package entities

// SyncResult summarizes one ingestion run. It is built per call and never
// persisted.
type SyncResult struct {
	KeyConfigured bool               `json:"keyConfigured"`
	FetchedCount  int                `json:"fetchedCount"`
	Saved         int                `json:"saved"`
	Updated       int                `json:"updated"`
	Regions       []RegionSyncResult `json:"regions,omitempty"`
}

// RegionSyncResult is the per-region contribution to a full sync.
type RegionSyncResult struct {
	RegionCode string `json:"regionCode"`
	Pages      int    `json:"pages"`
	Fetched    int    `json:"fetched"`
	Saved      int    `json:"saved"`
	Updated    int    `json:"updated"`
	CeilingHit bool   `json:"ceilingHit,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Add folds a region's totals into the run summary.
func (r *SyncResult) Add(region RegionSyncResult) {
	r.FetchedCount += region.Fetched
	r.Saved += region.Saved
	r.Updated += region.Updated
	r.Regions = append(r.Regions, region)
}
