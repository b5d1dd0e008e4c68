package routes_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/adapters/database"
	"github.com/zatekoja/providerdirectory/internal/adapters/events"
	"github.com/zatekoja/providerdirectory/internal/adapters/maps"
	"github.com/zatekoja/providerdirectory/internal/adapters/providers/geolocation"
	"github.com/zatekoja/providerdirectory/internal/api/handlers"
	"github.com/zatekoja/providerdirectory/internal/api/routes"
	"github.com/zatekoja/providerdirectory/internal/application/services"
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo := database.NewStaticProviderAdapter([]*entities.Provider{
		{
			ID: "1", Name: "Dr. Sarah Johnson", Specialty: "Chiropractic Care", Tier: entities.TierPremier,
			Address:  entities.Address{City: "Denver", State: "CO"},
			Position: &geo.Coordinate{Latitude: 39.7392, Longitude: -104.9903},
		},
		{
			ID: "2", Name: "Emily Rodriguez", Specialty: "Massage Therapy", Tier: entities.TierBasic,
			Address:  entities.Address{City: "Austin", State: "TX"},
			Position: &geo.Coordinate{Latitude: 30.2672, Longitude: -97.7431},
		},
		{
			ID: "3", Name: "Hidden Draft", Specialty: "Chiropractic Care", Tier: entities.TierBasic,
			ProfileStatus: entities.ProfileStatusDraft,
		},
	})
	bus := events.NewMemoryEventBus()
	t.Cleanup(func() { _ = bus.Close() })

	directory := services.NewDirectoryService(repo, nil, bus, nil, nil)
	location := services.NewLocationService(
		geolocation.NewStaticSource(geo.Coordinate{Latitude: 39.74, Longitude: -104.99}),
		services.LocationOptions{}, nil)
	sessions := services.NewMapSessionService(directory, services.MapSessionOptions{
		NewAdapter: func(id string) services.RecordingMapAdapter { return maps.NewOpRecorder(id) },
	}, nil)

	router := routes.NewRouter(
		handlers.NewDirectoryHandler(directory),
		handlers.NewLocationHandler(location),
		handlers.NewMapHandler(sessions),
		handlers.NewSSEHandler(bus),
		routes.Options{ProviderRepo: repo, AllowedOrigins: []string{"http://localhost:5173"}},
	)

	server := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(server.Close)
	return server
}

func TestRouter_Health(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_DirectoryRoutes(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/providers?specialty=chiropractic+care")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result entities.SearchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, 1, result.Total, "drafts are never listed")
	assert.Equal(t, "1", result.Providers[0].ID)

	resp, err = http.Get(server.URL + "/api/providers/facets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/providers/2")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/providers/3")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/providers/batch?ids=2,3,1")
	require.NoError(t, err)
	defer resp.Body.Close()
	var batch struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	assert.Equal(t, 2, batch.Count)
}

func TestRouter_LocationRoutes(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/location", "application/json", strings.NewReader(`{"key":"k1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Result entities.LocationResult `json:"result"`
		Source string                  `json:"source"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Result.OK)
	assert.Equal(t, "static", got.Source)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/location", strings.NewReader(`{"key":"k1"}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/providers", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/map/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
