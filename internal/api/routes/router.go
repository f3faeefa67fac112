package routes

import (
	"net/http"

	"github.com/zatekoja/medicheck/internal/api/handlers"
	"github.com/zatekoja/medicheck/internal/api/middleware"
	"github.com/zatekoja/medicheck/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	facilityHandler *handlers.FacilityHandler
	syncHandler     *handlers.SyncHandler

	cacheMiddleware *middleware.CacheMiddleware
	adminKey        string
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware may be nil.
func NewRouter(
	facilityHandler *handlers.FacilityHandler,
	syncHandler *handlers.SyncHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	adminKey string,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		facilityHandler: facilityHandler,
		syncHandler:     syncHandler,
		cacheMiddleware: cacheMiddleware,
		adminKey:        adminKey,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Hospital reads
	var list http.Handler = http.HandlerFunc(r.facilityHandler.ListHospitals)
	if r.cacheMiddleware != nil {
		list = r.cacheMiddleware.Middleware(list)
	}
	r.mux.Handle("GET /api/hospitals", middleware.ETag(list))
	r.mux.Handle("GET /api/hospitals/nearby", middleware.ETag(http.HandlerFunc(r.facilityHandler.NearbyHospitals)))
	r.mux.Handle("GET /api/hospitals/{id}", middleware.ETag(http.HandlerFunc(r.facilityHandler.GetHospital)))

	// Admin sync endpoints
	admin := middleware.AdminKey(r.adminKey)
	r.mux.Handle("POST /api/hospitals/sync", admin(http.HandlerFunc(r.syncHandler.SyncOne)))
	r.mux.Handle("POST /api/hospitals/sync/all", admin(http.HandlerFunc(r.syncHandler.SyncAll)))
	r.mux.Handle("GET /api/hospitals/sync/debug", admin(http.HandlerFunc(r.syncHandler.Debug)))

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.Compression(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)
	// CORS wraps everything so preflights never reach the admin gate.
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
