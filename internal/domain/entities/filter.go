package entities

import (
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// Facet names accepted in a FilterState. Aliases used by older links are
// resolved by CanonicalFacet.
const (
	FacetTier               = "tier"
	FacetSpecialty          = "specialty"
	FacetState              = "state"
	FacetCity               = "city"
	FacetClinicianType      = "clinicianType"
	FacetCertificationLevel = "certificationLevel"
	FacetSpecializations    = "specializations"
	FacetLanguages          = "languages"
	FacetPatientTypes       = "patientTypes"
	FacetConditionsTreated  = "conditionsTreated"
	FacetInsuranceAccepted  = "insuranceAccepted"
	FacetExperience         = "experience"
)

var facetAliases = map[string]string{
	"grastonLevel":   FacetCertificationLevel,
	"specialization": FacetSpecializations,
	"language":       FacetLanguages,
	"patientType":    FacetPatientTypes,
	"condition":      FacetConditionsTreated,
	"insurance":      FacetInsuranceAccepted,
}

// CanonicalFacet resolves an alias to its facet name and reports whether the
// name is a known facet.
func CanonicalFacet(name string) (string, bool) {
	if canonical, ok := facetAliases[name]; ok {
		return canonical, true
	}
	switch name {
	case FacetTier, FacetSpecialty, FacetState, FacetCity, FacetClinicianType,
		FacetCertificationLevel, FacetSpecializations, FacetLanguages,
		FacetPatientTypes, FacetConditionsTreated, FacetInsuranceAccepted,
		FacetExperience:
		return name, true
	}
	return "", false
}

// FilterState is the full set of constraints for one directory search.
// A missing facet key, or a key with no values, places no constraint.
type FilterState struct {
	Query       string              `json:"q,omitempty"`
	Facets      map[string][]string `json:"facets,omitempty"`
	Location    *geo.Coordinate     `json:"location,omitempty" validate:"omitempty"`
	RadiusMiles float64             `json:"radius,omitempty" validate:"gte=0"`
}

// HasProximity reports whether the proximity stage applies
func (f FilterState) HasProximity() bool {
	return f.Location != nil && f.RadiusMiles > 0
}

// IsEmpty reports whether the state constrains nothing
func (f FilterState) IsEmpty() bool {
	if f.Query != "" || f.HasProximity() {
		return false
	}
	for _, values := range f.Facets {
		if len(values) > 0 {
			return false
		}
	}
	return true
}
