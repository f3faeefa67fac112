package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/medicheck/internal/application/services"
	"github.com/zatekoja/medicheck/internal/domain/entities"
	"github.com/zatekoja/medicheck/internal/domain/repositories"
	apperrors "github.com/zatekoja/medicheck/pkg/errors"
)

// DefaultNearbyRadiusMeters applies when the radius parameter is omitted.
const DefaultNearbyRadiusMeters = 1000.0

// Response headers describing how a nearby result list was cut.
const (
	HeaderNearbyReturnedCount = "X-Nearby-Returned-Count"
	HeaderNearbyTruncated     = "X-Nearby-Truncated"
	HeaderNearbyMaxResults    = "X-Nearby-Max-Results"
)

// FacilityService is the read side used by FacilityHandler
type FacilityService interface {
	GetByID(ctx context.Context, id int64) (*entities.Facility, error)
	List(ctx context.Context, params services.ListParams) (entities.FacilityPage, error)
}

// NearbyFinder answers proximity queries
type NearbyFinder interface {
	FindNearby(ctx context.Context, lat, lon *float64, radiusMeters float64) ([]entities.NearbyResult, entities.NearbyMetadata, error)
}

// FacilityHandler handles hospital read endpoints
type FacilityHandler struct {
	service FacilityService
	nearby  NearbyFinder
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(service FacilityService, nearby NearbyFinder) *FacilityHandler {
	return &FacilityHandler{
		service: service,
		nearby:  nearby,
	}
}

// ListHospitals handles GET /api/hospitals
func (h *FacilityHandler) ListHospitals(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), params)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// GetHospital handles GET /api/hospitals/{id}
func (h *FacilityHandler) GetHospital(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "bad_request", "hospital id must be a positive integer")
		return
	}

	facility, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, facility)
}

// NearbyHospitals handles GET /api/hospitals/nearby
func (h *FacilityHandler) NearbyHospitals(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	radius := DefaultNearbyRadiusMeters
	if rp, err := queryFloat(r, "radius"); err != nil {
		respondWithAppError(w, r, err)
		return
	} else if rp != nil {
		radius = *rp
	}

	results, meta, err := h.nearby.FindNearby(r.Context(), lat, lng, radius)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	w.Header().Set(HeaderNearbyReturnedCount, strconv.Itoa(meta.ReturnedCount))
	w.Header().Set(HeaderNearbyTruncated, strconv.FormatBool(meta.Truncated))
	w.Header().Set(HeaderNearbyMaxResults, strconv.Itoa(meta.MaxResults))
	respondWithJSON(w, http.StatusOK, results)
}

var sortFields = map[string]string{
	"id":        repositories.SortByID,
	"name":      repositories.SortByName,
	"createdAt": repositories.SortByCreatedAt,
	"updatedAt": repositories.SortByUpdatedAt,
}

// parseListParams reads page, size, keyword, department and sort=field[,asc|desc].
func parseListParams(r *http.Request) (services.ListParams, error) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		return services.ListParams{}, err
	}
	size, err := queryInt(r, "size", services.DefaultPageSize)
	if err != nil {
		return services.ListParams{}, err
	}
	if page < 0 || size < 1 {
		return services.ListParams{}, apperrors.NewValidationError("page must be >= 0 and size >= 1")
	}

	q := r.URL.Query()
	params := services.ListParams{
		Page:       page,
		Size:       size,
		Keyword:    q.Get("keyword"),
		Department: q.Get("department"),
	}

	if sort := strings.TrimSpace(q.Get("sort")); sort != "" {
		field, dir, _ := strings.Cut(sort, ",")
		mapped, ok := sortFields[strings.TrimSpace(field)]
		if !ok {
			return services.ListParams{}, apperrors.NewValidationError("unsupported sort field: " + field)
		}
		params.SortField = mapped
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			params.SortDesc = true
		default:
			return services.ListParams{}, apperrors.NewValidationError("sort direction must be asc or desc")
		}
	}
	return params, nil
}
