package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/providerdirectory/internal/api/middleware"
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
)

// LocationKeyHeader carries the caller's location key when the body has none
const LocationKeyHeader = "X-Location-Key"

// LocationService acquires and caches user positions
type LocationService interface {
	RequestLocation(ctx context.Context, req entities.PositionRequest) entities.LocationResult
	ClearLocation(key string) bool
	SourceName() string
}

// LocationHandler handles user location requests
type LocationHandler struct {
	service LocationService
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(service LocationService) *LocationHandler {
	return &LocationHandler{service: service}
}

type locationRequest struct {
	Key     string                   `json:"key,omitempty" validate:"max=128"`
	Refresh bool                     `json:"refresh,omitempty"`
	Report  *entities.PositionReport `json:"report,omitempty"`
}

// RequestLocation handles POST /api/location. A failed acquisition is still a
// 200 with ok=false and a reason; only malformed requests are rejected.
func (h *LocationHandler) RequestLocation(w http.ResponseWriter, r *http.Request) {
	var body locationRequest
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if err := validate.Struct(body); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	clientIP := middleware.ClientIP(r)
	result := h.service.RequestLocation(r.Context(), entities.PositionRequest{
		Key:      locationKey(r, body.Key, clientIP),
		ClientIP: clientIP,
		Report:   body.Report,
		Refresh:  body.Refresh,
	})

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"result": result,
		"source": h.service.SourceName(),
	})
}

// ClearLocation handles DELETE /api/location
func (h *LocationHandler) ClearLocation(w http.ResponseWriter, r *http.Request) {
	var body locationRequest
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if body.Key == "" {
		body.Key = r.URL.Query().Get("key")
	}

	cleared := h.service.ClearLocation(locationKey(r, body.Key, middleware.ClientIP(r)))
	respondWithJSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
}

// locationKey picks the body key, then the header, then the client address
func locationKey(r *http.Request, bodyKey, clientIP string) string {
	if key := strings.TrimSpace(bodyKey); key != "" {
		return key
	}
	if key := strings.TrimSpace(r.Header.Get(LocationKeyHeader)); key != "" {
		return key
	}
	return "ip:" + clientIP
}
