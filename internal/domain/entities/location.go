package entities

import (
	"time"

	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// LocationFailureReason classifies why a location request produced no fix
type LocationFailureReason string

const (
	LocationPermissionDenied LocationFailureReason = "permission_denied"
	LocationUnavailable      LocationFailureReason = "unavailable"
	LocationTimeout          LocationFailureReason = "timeout"
	LocationUnsupported      LocationFailureReason = "unsupported"
)

// Message is the user-facing explanation for the failure. Each reason has its
// own message because each needs a different remedy.
func (r LocationFailureReason) Message() string {
	switch r {
	case LocationPermissionDenied:
		return "Location access was denied. Enable location permission for this site to search near you."
	case LocationUnavailable:
		return "Your location could not be determined right now. Check your connection and try again."
	case LocationTimeout:
		return "Finding your location took too long. Please try again."
	case LocationUnsupported:
		return "Location lookup is not supported here. Enter a city or state in the search instead."
	default:
		return "Your location is not available."
	}
}

// LocationResult is the outcome of a location request. Exactly one of
// Location (OK) or Reason (not OK) is set.
type LocationResult struct {
	OK         bool                  `json:"ok"`
	Location   *geo.Coordinate       `json:"location,omitempty"`
	Reason     LocationFailureReason `json:"reason,omitempty"`
	Message    string                `json:"message,omitempty"`
	Cached     bool                  `json:"cached"`
	AcquiredAt *time.Time            `json:"acquired_at,omitempty"`
}

// LocationSuccess builds a successful result
func LocationSuccess(c geo.Coordinate, acquiredAt time.Time, cached bool) LocationResult {
	return LocationResult{OK: true, Location: &c, Cached: cached, AcquiredAt: &acquiredAt}
}

// LocationFailure builds a failed result carrying the reason's message
func LocationFailure(reason LocationFailureReason) LocationResult {
	return LocationResult{Reason: reason, Message: reason.Message()}
}

// W3C Geolocation API PositionError codes
const (
	PositionErrorPermissionDenied    = 1
	PositionErrorPositionUnavailable = 2
	PositionErrorTimeout             = 3
)

// PositionReport is what a browser posts after calling getCurrentPosition:
// either coordinates or a PositionError code.
type PositionReport struct {
	Coords    *geo.Coordinate `json:"coords,omitempty" validate:"omitempty"`
	Accuracy  float64         `json:"accuracy,omitempty" validate:"gte=0"`
	ErrorCode int             `json:"error_code,omitempty" validate:"gte=0,lte=3"`
	Supported *bool           `json:"supported,omitempty"`
}

// PositionRequest identifies who is asking for a location and carries any
// client-side report.
type PositionRequest struct {
	Key      string
	ClientIP string
	Report   *PositionReport
	// Refresh ignores a cached fix
	Refresh bool
}
