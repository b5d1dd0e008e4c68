package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	apperrors "github.com/zatekoja/providerdirectory/pkg/errors"
	"github.com/zatekoja/providerdirectory/pkg/geo"
	"github.com/zatekoja/providerdirectory/pkg/validation"
)

var validate = validation.New()

// ParseFilterState reads a FilterState from query parameters. Facets may be
// repeated (state=CO&state=TX) or comma separated (state=CO,TX). Unknown
// parameters are ignored.
func ParseFilterState(query url.Values) (entities.FilterState, error) {
	state := entities.FilterState{
		Query:  strings.TrimSpace(query.Get("q")),
		Facets: make(map[string][]string),
	}

	for key, raw := range query {
		facet, ok := entities.CanonicalFacet(key)
		if !ok {
			continue
		}
		for _, value := range raw {
			for _, part := range strings.Split(value, ",") {
				if part = strings.TrimSpace(part); part != "" {
					state.Facets[facet] = append(state.Facets[facet], part)
				}
			}
		}
	}

	latRaw, lngRaw := query.Get("lat"), query.Get("lng")
	if lngRaw == "" {
		lngRaw = query.Get("lon")
	}
	if (latRaw == "") != (lngRaw == "") {
		return state, apperrors.NewValidationError("lat and lng must be given together")
	}
	if latRaw != "" {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			return state, apperrors.NewValidationError("invalid latitude parameter")
		}
		lng, err := strconv.ParseFloat(lngRaw, 64)
		if err != nil {
			return state, apperrors.NewValidationError("invalid longitude parameter")
		}
		location := geo.Coordinate{Latitude: lat, Longitude: lng}
		if err := validate.Struct(location); err != nil {
			return state, err
		}
		state.Location = &location
	}

	if radiusRaw := query.Get("radius"); radiusRaw != "" {
		radius, err := strconv.ParseFloat(radiusRaw, 64)
		if err != nil {
			return state, apperrors.NewValidationError("invalid radius parameter")
		}
		state.RadiusMiles = radius
	}

	return state, validate.Struct(state)
}

// ValidateFilterState checks a FilterState that arrived in a JSON body
func ValidateFilterState(state entities.FilterState) error {
	if state.Location != nil {
		if err := validate.Struct(*state.Location); err != nil {
			return err
		}
	}
	return validate.Struct(state)
}
