package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/medicheck/internal/application/services"
	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/providers"
	"github.com/zatekoja/medicheck/internal/infrastructure/clients/registry"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
)

// IdempotencyKeyHeader deduplicates full sync requests.
const IdempotencyKeyHeader = "Idempotency-Key"

const idempotencyKeyPrefix = "sync:idempotency:"

// maxNumOfRows bounds numOfRows on sync endpoints.
const maxNumOfRows = 1000

// RegistrySyncer runs registry ingestion
type RegistrySyncer interface {
	SyncOneQuery(ctx context.Context, pageNo, pageSize int) (entities.SyncResult, error)
	SyncAllRegions(ctx context.Context, pageSize int, opts services.SyncOptions) (entities.SyncResult, error)
}

// SyncHandler handles the admin sync endpoints
type SyncHandler struct {
	syncer          RegistrySyncer
	registry        registry.Client
	cache           providers.CacheProvider
	idempotencyTTL  time.Duration
	defaultPageSize int
}

// NewSyncHandler creates a new sync handler. cache may be nil, which
// disables Idempotency-Key handling.
func NewSyncHandler(syncer RegistrySyncer, client registry.Client, cache providers.CacheProvider, idempotencyTTL time.Duration, defaultPageSize int) *SyncHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 100
	}
	return &SyncHandler{
		syncer:          syncer,
		registry:        client,
		cache:           cache,
		idempotencyTTL:  idempotencyTTL,
		defaultPageSize: defaultPageSize,
	}
}

// SyncOne handles POST /api/hospitals/sync
func (h *SyncHandler) SyncOne(w http.ResponseWriter, r *http.Request) {
	pageNo, numOfRows, ok := h.pageParams(w, r, h.defaultPageSize)
	if !ok {
		return
	}

	result, err := h.syncer.SyncOneQuery(context.WithoutCancel(r.Context()), pageNo, numOfRows)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Int("page_no", pageNo).Msg("registry sync failed")
		respondWithError(w, http.StatusInternalServerError, "sync failed", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// SyncAll handles POST /api/hospitals/sync/all. A repeated Idempotency-Key
// within the TTL is rejected with 409.
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context())

	_, numOfRows, ok := h.pageParams(w, r, h.defaultPageSize)
	if !ok {
		return
	}
	update, err := strconv.ParseBool(defaultString(r.URL.Query().Get("update"), "false"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "bad_request", "update must be a boolean")
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if idemKey != "" && h.cache != nil {
		acquired, err := h.cache.SetIfAbsent(r.Context(), idempotencyKeyPrefix+idemKey, []byte(time.Now().UTC().Format(time.RFC3339)), h.idempotencyTTL)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("idempotency store unavailable, running sync without deduplication")
			idemKey = ""
		case !acquired:
			respondWithError(w, http.StatusConflict, "duplicate_request", "a sync with this Idempotency-Key was already accepted")
			return
		}
	}

	// The run outlives a client disconnect.
	ctx := context.WithoutCancel(r.Context())
	result, err := h.syncer.SyncAllRegions(ctx, numOfRows, services.SyncOptions{UpdateExisting: update})
	if err != nil {
		if idemKey != "" {
			if delErr := h.cache.Delete(ctx, idempotencyKeyPrefix+idemKey); delErr != nil {
				logger.Warn().Err(delErr).Msg("failed to release idempotency key")
			}
		}
		logger.Error().Err(err).Msg("full registry sync failed")
		respondWithError(w, http.StatusInternalServerError, "sync failed", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// Debug handles GET /api/hospitals/sync/debug and returns the raw registry body.
func (h *SyncHandler) Debug(w http.ResponseWriter, r *http.Request) {
	pageNo, numOfRows, ok := h.pageParams(w, r, 10)
	if !ok {
		return
	}
	raw := h.registry.FetchRaw(r.Context(), pageNo, numOfRows, r.URL.Query().Get("sidoCd"))
	respondWithJSON(w, http.StatusOK, raw)
}

func (h *SyncHandler) pageParams(w http.ResponseWriter, r *http.Request, defRows int) (int, int, bool) {
	pageNo, err := queryInt(r, "pageNo", 1)
	if err != nil {
		respondWithAppError(w, r, err)
		return 0, 0, false
	}
	numOfRows, err := queryInt(r, "numOfRows", defRows)
	if err != nil {
		respondWithAppError(w, r, err)
		return 0, 0, false
	}
	if pageNo < 1 || numOfRows < 1 || numOfRows > maxNumOfRows {
		respondWithError(w, http.StatusBadRequest, "bad_request", "pageNo must be >= 1 and numOfRows between 1 and 1000")
		return 0, 0, false
	}
	return pageNo, numOfRows, true
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
