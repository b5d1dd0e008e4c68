package entities

import (
	"strings"
	"time"

	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// Tier is the service level of a listed provider
type Tier string

const (
	TierBasic     Tier = "basic"
	TierPreferred Tier = "preferred"
	TierPremier   Tier = "premier"
)

// Tiers lists every tier from highest to lowest rank
var Tiers = []Tier{TierPremier, TierPreferred, TierBasic}

// Rank orders tiers for sorting; higher ranks sort first. Unknown tiers rank 0.
func (t Tier) Rank() int {
	switch t {
	case TierPremier:
		return 3
	case TierPreferred:
		return 2
	case TierBasic:
		return 1
	default:
		return 0
	}
}

// ParseTier normalizes s into a Tier, reporting whether it is known
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Rank() > 0
}

// ProfileStatus is the publication state of a provider profile
type ProfileStatus string

const (
	ProfileStatusPublished ProfileStatus = "published"
	ProfileStatusDraft     ProfileStatus = "draft"
	ProfileStatusPending   ProfileStatus = "pending"
)

// Provider is one listed practitioner in the directory
type Provider struct {
	ID                 string          `json:"id" db:"id" yaml:"id"`
	Name               string          `json:"name" db:"name" yaml:"name"`
	Credentials        string          `json:"credentials,omitempty" db:"credentials" yaml:"credentials"`
	ClinicianType      string          `json:"clinician_type,omitempty" db:"clinician_type" yaml:"clinician_type"`
	Specialty          string          `json:"specialty" db:"specialty" yaml:"specialty"`
	Practice           string          `json:"practice,omitempty" db:"practice" yaml:"practice"`
	Tier               Tier            `json:"tier" db:"tier" yaml:"tier"`
	SearchPriority     int             `json:"search_priority" db:"search_priority" yaml:"search_priority"`
	ProfileStatus      ProfileStatus   `json:"profile_status" db:"profile_status" yaml:"profile_status"`
	Address            Address         `json:"address" db:"-" yaml:"address"`
	Position           *geo.Coordinate `json:"position,omitempty" db:"-" yaml:"position"`
	Phone              string          `json:"phone,omitempty" db:"phone" yaml:"phone"`
	Email              string          `json:"email,omitempty" db:"email" yaml:"email"`
	Website            string          `json:"website,omitempty" db:"website" yaml:"website"`
	BookingURL         string          `json:"booking_url,omitempty" db:"booking_url" yaml:"booking_url"`
	Bio                string          `json:"bio,omitempty" db:"bio" yaml:"bio"`
	YearsExperience    int             `json:"years_experience" db:"years_experience" yaml:"years_experience"`
	CertificationLevel string          `json:"certification_level,omitempty" db:"certification_level" yaml:"certification_level"`
	Certifications     []string        `json:"certifications,omitempty" db:"-" yaml:"certifications"`
	Specializations    []string        `json:"specializations,omitempty" db:"-" yaml:"specializations"`
	Languages          []string        `json:"languages,omitempty" db:"-" yaml:"languages"`
	PatientTypes       []string        `json:"patient_types,omitempty" db:"-" yaml:"patient_types"`
	ConditionsTreated  []string        `json:"conditions_treated,omitempty" db:"-" yaml:"conditions_treated"`
	InsuranceAccepted  []string        `json:"insurance_accepted,omitempty" db:"-" yaml:"insurance_accepted"`
	IsVerified         bool            `json:"is_verified" db:"is_verified" yaml:"is_verified"`
	// Rating is the aggregate 0-5 star rating; 0 means unrated
	Rating             float64         `json:"rating,omitempty" db:"rating" yaml:"rating"`
	TotalReviews       int             `json:"total_reviews" db:"total_reviews" yaml:"total_reviews"`
	Availability       Availability    `json:"availability,omitempty" db:"-" yaml:"availability"`
	Treatments         []Treatment     `json:"treatments,omitempty" db:"-" yaml:"treatments"`
	Reviews            []Review        `json:"reviews,omitempty" db:"-" yaml:"reviews"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at" yaml:"updated_at"`
}

// Address represents a physical address
type Address struct {
	Street  string `json:"street,omitempty" db:"street" yaml:"street"`
	City    string `json:"city" db:"city" yaml:"city"`
	State   string `json:"state" db:"state" yaml:"state"`
	ZipCode string `json:"zip_code,omitempty" db:"zip_code" yaml:"zip_code"`
	Country string `json:"country,omitempty" db:"country" yaml:"country"`
}

// HasValidPosition reports whether the provider can be placed on a map
func (p *Provider) HasValidPosition() bool {
	return p.Position != nil && p.Position.Valid()
}

// IsListed reports whether the profile is visible in the directory.
// An empty status is treated as published.
func (p *Provider) IsListed() bool {
	return p.ProfileStatus == "" || p.ProfileStatus == ProfileStatusPublished
}

// ProviderMatch is a provider as returned by a directory search
type ProviderMatch struct {
	*Provider
	DistanceMiles *float64 `json:"distance_miles,omitempty"`
}

// SearchResult is the outcome of one directory search
type SearchResult struct {
	Providers       []ProviderMatch `json:"providers"`
	Total           int             `json:"total"`
	TierCounts      map[Tier]int    `json:"tier_counts"`
	ProximityActive bool            `json:"proximity_active"`
}

// FacetValues lists the distinct values available for each facet, used to
// build filter sidebars.
type FacetValues struct {
	Values     map[string][]string `json:"values"`
	TierCounts map[Tier]int        `json:"tier_counts"`
}

// Suggestion is one autocomplete entry for the search bar
type Suggestion struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
}
