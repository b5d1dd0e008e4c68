package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/api/handlers"
	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

type MockLocationService struct {
	mock.Mock
}

func (m *MockLocationService) RequestLocation(ctx context.Context, req entities.PositionRequest) entities.LocationResult {
	args := m.Called(ctx, req)
	return args.Get(0).(entities.LocationResult)
}

func (m *MockLocationService) ClearLocation(key string) bool {
	return m.Called(key).Bool(0)
}

func (m *MockLocationService) SourceName() string {
	return "browser"
}

type locationResponse struct {
	Result entities.LocationResult `json:"result"`
	Source string                  `json:"source"`
}

func TestLocationHandler_RequestLocation_Success(t *testing.T) {
	mockService := new(MockLocationService)
	handler := handlers.NewLocationHandler(mockService)

	denver := geo.Coordinate{Latitude: 39.7392, Longitude: -104.9903}
	mockService.On("RequestLocation", mock.Anything, mock.MatchedBy(func(req entities.PositionRequest) bool {
		return req.Key == "tab-1" && req.Refresh && req.Report != nil &&
			req.Report.Coords != nil && *req.Report.Coords == denver && req.ClientIP == "198.51.100.9"
	})).Return(entities.LocationSuccess(denver, time.Now(), false))

	body := `{"key":"tab-1","refresh":true,"report":{"coords":{"latitude":39.7392,"longitude":-104.9903},"accuracy":12}}`
	req := httptest.NewRequest(http.MethodPost, "/api/location", strings.NewReader(body))
	req.RemoteAddr = "198.51.100.9:40000"
	rec := httptest.NewRecorder()
	handler.RequestLocation(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got locationResponse
	decodeBody(t, rec, &got)
	assert.True(t, got.Result.OK)
	assert.Equal(t, denver, *got.Result.Location)
	assert.Equal(t, "browser", got.Source)
	mockService.AssertExpectations(t)
}

func TestLocationHandler_RequestLocation_FailureIsAnOutcome(t *testing.T) {
	mockService := new(MockLocationService)
	handler := handlers.NewLocationHandler(mockService)
	mockService.On("RequestLocation", mock.Anything, mock.Anything).
		Return(entities.LocationFailure(entities.LocationPermissionDenied))

	req := httptest.NewRequest(http.MethodPost, "/api/location", strings.NewReader(`{"report":{"error_code":1}}`))
	rec := httptest.NewRecorder()
	handler.RequestLocation(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got locationResponse
	decodeBody(t, rec, &got)
	assert.False(t, got.Result.OK)
	assert.Equal(t, entities.LocationPermissionDenied, got.Result.Reason)
	assert.NotEmpty(t, got.Result.Message)
}

func TestLocationHandler_KeyPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		header string
		want   string
	}{
		{name: "body key", body: `{"key":"from-body"}`, header: "from-header", want: "from-body"},
		{name: "header key", body: `{}`, header: "from-header", want: "from-header"},
		{name: "client address", body: ``, want: "ip:203.0.113.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := new(MockLocationService)
			handler := handlers.NewLocationHandler(mockService)
			mockService.On("RequestLocation", mock.Anything, mock.MatchedBy(func(req entities.PositionRequest) bool {
				return req.Key == tc.want
			})).Return(entities.LocationFailure(entities.LocationUnsupported))

			req := httptest.NewRequest(http.MethodPost, "/api/location", strings.NewReader(tc.body))
			req.RemoteAddr = "203.0.113.5:1234"
			if tc.header != "" {
				req.Header.Set(handlers.LocationKeyHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			handler.RequestLocation(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestLocationHandler_RequestLocation_RejectsBadBodies(t *testing.T) {
	bodies := map[string]string{
		"not json":          `{"key":`,
		"unknown field":     `{"keyy":"x"}`,
		"latitude of range": `{"report":{"coords":{"latitude":95,"longitude":0}}}`,
		"bad error code":    `{"report":{"error_code":9}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			mockService := new(MockLocationService)
			handler := handlers.NewLocationHandler(mockService)

			rec := httptest.NewRecorder()
			handler.RequestLocation(rec, httptest.NewRequest(http.MethodPost, "/api/location", strings.NewReader(body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			mockService.AssertNotCalled(t, "RequestLocation", mock.Anything, mock.Anything)
		})
	}
}

func TestLocationHandler_ClearLocation(t *testing.T) {
	mockService := new(MockLocationService)
	handler := handlers.NewLocationHandler(mockService)
	mockService.On("ClearLocation", "tab-1").Return(true).Once()
	mockService.On("ClearLocation", "tab-2").Return(false).Once()

	rec := httptest.NewRecorder()
	handler.ClearLocation(rec, httptest.NewRequest(http.MethodDelete, "/api/location", strings.NewReader(`{"key":"tab-1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cleared":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ClearLocation(rec, httptest.NewRequest(http.MethodDelete, "/api/location?key=tab-2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cleared":false}`, rec.Body.String())
	mockService.AssertExpectations(t)
}
