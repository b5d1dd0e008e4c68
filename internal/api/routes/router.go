package routes

import (
	"net/http"

	"github.com/zatekoja/providerdirectory/internal/api/handlers"
	"github.com/zatekoja/providerdirectory/internal/api/loaders"
	"github.com/zatekoja/providerdirectory/internal/api/middleware"
	"github.com/zatekoja/providerdirectory/internal/domain/repositories"
	"github.com/zatekoja/providerdirectory/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	directoryHandler *handlers.DirectoryHandler
	locationHandler  *handlers.LocationHandler
	mapHandler       *handlers.MapHandler
	sseHandler       *handlers.SSEHandler

	// providerRepo backs the per-request loaders
	providerRepo    repositories.ProviderRepository
	cacheMiddleware *middleware.CacheMiddleware
	rateLimiter     *middleware.IPRateLimiter
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// Options carries the optional pieces of the router. Nil members are skipped.
type Options struct {
	ProviderRepo    repositories.ProviderRepository
	CacheMiddleware *middleware.CacheMiddleware
	RateLimiter     *middleware.IPRateLimiter
	AllowedOrigins  []string
	Metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	directoryHandler *handlers.DirectoryHandler,
	locationHandler *handlers.LocationHandler,
	mapHandler *handlers.MapHandler,
	sseHandler *handlers.SSEHandler,
	opts Options,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		directoryHandler: directoryHandler,
		locationHandler:  locationHandler,
		mapHandler:       mapHandler,
		sseHandler:       sseHandler,
		providerRepo:     opts.ProviderRepo,
		cacheMiddleware:  opts.CacheMiddleware,
		rateLimiter:      opts.RateLimiter,
		allowedOrigins:   opts.AllowedOrigins,
		metrics:          opts.Metrics,
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

	// Directory endpoints
	r.mux.HandleFunc("GET /api/providers", r.directoryHandler.SearchProviders)
	r.mux.HandleFunc("GET /api/providers/facets", r.directoryHandler.GetFacets)
	r.mux.HandleFunc("GET /api/providers/suggest", r.directoryHandler.SuggestProviders)
	r.mux.HandleFunc("GET /api/providers/batch", r.directoryHandler.BatchProviders)
	r.mux.HandleFunc("GET /api/providers/{id}", r.directoryHandler.GetProvider)

	// Location endpoints
	r.mux.HandleFunc("POST /api/location", r.locationHandler.RequestLocation)
	r.mux.HandleFunc("DELETE /api/location", r.locationHandler.ClearLocation)

	// Map session endpoints
	if r.mapHandler != nil {
		r.mux.HandleFunc("POST /api/map/sessions", r.mapHandler.OpenSession)
		r.mux.HandleFunc("POST /api/map/sessions/{id}/reconcile", r.mapHandler.ReconcileSession)
		r.mux.HandleFunc("DELETE /api/map/sessions/{id}", r.mapHandler.CloseSession)
	}

	// Directory change stream
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/directory", r.sseHandler.StreamDirectoryUpdates)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// Observability sits directly on the mux so it can read the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	if r.providerRepo != nil {
		handler = loaders.Middleware(r.providerRepo)(handler)
	}

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.LoggingMiddleware(handler)

	if r.rateLimiter != nil {
		handler = r.rateLimiter.Middleware(handler)
	}

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
