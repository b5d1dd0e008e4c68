package services

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// FilterComposer reduces a provider collection to the entries matching a
// FilterState. Stages run in order (text, facets, experience, proximity) and
// each narrows the previous stage's output.
type FilterComposer struct {
	matchAllTokens bool
}

// NewFilterComposer creates a composer. With matchAllTokens every query token
// must match some field; otherwise any single token is enough.
func NewFilterComposer(matchAllTokens bool) *FilterComposer {
	return &FilterComposer{matchAllTokens: matchAllTokens}
}

// ApplyFilters filters with the default any-token text matching
func ApplyFilters(entries []*entities.Provider, state entities.FilterState) []*entities.Provider {
	return NewFilterComposer(false).ApplyFilters(entries, state)
}

// ApplyFilters returns the matching entries, sorted by tier rank, then by
// distance when a location is set or by name otherwise. When an id appears
// more than once only its first entry is considered. The input slice is not
// modified.
func (c *FilterComposer) ApplyFilters(entries []*entities.Provider, state entities.FilterState) []*entities.Provider {
	tokens := strings.Fields(strings.ToLower(state.Query))
	facets := normalizeFacets(state.Facets)
	minYears, hasThreshold := experienceThreshold(facets[entities.FacetExperience])
	delete(facets, entities.FacetExperience)

	var origin *geo.Coordinate
	if state.Location != nil && state.Location.Valid() {
		origin = state.Location
	}
	proximity := origin != nil && state.RadiusMiles > 0

	matched := make([]rankedProvider, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, p := range entries {
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if len(tokens) > 0 && !c.matchesText(p, tokens) {
			continue
		}
		if !matchesFacets(p, facets) {
			continue
		}
		if hasThreshold && p.YearsExperience < minYears {
			continue
		}

		r := rankedProvider{provider: p, distance: math.Inf(1)}
		if origin != nil && p.HasValidPosition() {
			r.distance = geo.DistanceMiles(*origin, *p.Position)
		}
		if proximity && r.distance > state.RadiusMiles {
			continue
		}
		matched = append(matched, r)
	}

	sortRanked(matched, origin != nil)

	out := make([]*entities.Provider, len(matched))
	for i, r := range matched {
		out[i] = r.provider
	}
	return out
}

type rankedProvider struct {
	provider *entities.Provider
	distance float64
}

func sortRanked(list []rankedProvider, byDistance bool) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].provider, list[j].provider
		if ra, rb := a.Tier.Rank(), b.Tier.Rank(); ra != rb {
			return ra > rb
		}
		if byDistance && list[i].distance != list[j].distance {
			return list[i].distance < list[j].distance
		}
		if na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name); na != nb {
			return na < nb
		}
		return a.ID < b.ID
	})
}

func (c *FilterComposer) matchesText(p *entities.Provider, tokens []string) bool {
	fields := []string{p.Name, p.Practice, p.Specialty, p.Address.City, p.Address.State}
	fields = append(fields, p.Specializations...)
	fields = append(fields, p.ConditionsTreated...)
	for i := range fields {
		fields[i] = strings.ToLower(fields[i])
	}

	for _, token := range tokens {
		hit := false
		for _, f := range fields {
			if strings.Contains(f, token) {
				hit = true
				break
			}
		}
		if hit && !c.matchAllTokens {
			return true
		}
		if !hit && c.matchAllTokens {
			return false
		}
	}
	return c.matchAllTokens
}

// normalizeFacets resolves aliases, drops unknown facet names and empty
// values, and lowercases values for comparison.
func normalizeFacets(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for name, values := range in {
		facet, ok := entities.CanonicalFacet(name)
		if !ok {
			continue
		}
		for _, v := range values {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				out[facet] = append(out[facet], v)
			}
		}
	}
	return out
}

func matchesFacets(p *entities.Provider, facets map[string][]string) bool {
	for facet, selected := range facets {
		attr := facetAttribute(p, facet)
		if !containsAny(attr, selected) {
			return false
		}
	}
	return true
}

// facetAttribute returns the provider's values for a facet. Single-valued
// attributes come back as a one-element slice, so equality and set
// membership share one check.
func facetAttribute(p *entities.Provider, facet string) []string {
	switch facet {
	case entities.FacetTier:
		return []string{string(p.Tier)}
	case entities.FacetSpecialty:
		return []string{p.Specialty}
	case entities.FacetState:
		return []string{p.Address.State}
	case entities.FacetCity:
		return []string{p.Address.City}
	case entities.FacetClinicianType:
		return []string{p.ClinicianType}
	case entities.FacetCertificationLevel:
		return []string{p.CertificationLevel}
	case entities.FacetSpecializations:
		return p.Specializations
	case entities.FacetLanguages:
		return p.Languages
	case entities.FacetPatientTypes:
		return p.PatientTypes
	case entities.FacetConditionsTreated:
		return p.ConditionsTreated
	case entities.FacetInsuranceAccepted:
		return p.InsuranceAccepted
	}
	return nil
}

func containsAny(attr []string, selected []string) bool {
	for _, a := range attr {
		a = strings.ToLower(strings.TrimSpace(a))
		for _, s := range selected {
			if a == s {
				return true
			}
		}
	}
	return false
}

// experienceThreshold parses "N+" (or a bare "N") values. With several values
// the smallest threshold wins; unparseable values are ignored.
func experienceThreshold(values []string) (int, bool) {
	min, found := 0, false
	for _, v := range values {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "+"))
		if err != nil || n < 0 {
			continue
		}
		if !found || n < min {
			min, found = n, true
		}
	}
	return min, found
}

// DistancesFrom pairs each entry with its distance from location. Entries
// without a valid position, or a nil location, get no distance.
func DistancesFrom(entries []*entities.Provider, location *geo.Coordinate) []entities.ProviderMatch {
	out := make([]entities.ProviderMatch, len(entries))
	for i, p := range entries {
		out[i] = entities.ProviderMatch{Provider: p}
		if location != nil && location.Valid() && p.HasValidPosition() {
			d := geo.DistanceMiles(*location, *p.Position)
			out[i].DistanceMiles = &d
		}
	}
	return out
}

// TierCounts counts entries per tier
func TierCounts(entries []*entities.Provider) map[entities.Tier]int {
	counts := make(map[entities.Tier]int, len(entities.Tiers))
	for _, t := range entities.Tiers {
		counts[t] = 0
	}
	for _, p := range entries {
		if p.Tier.Rank() > 0 {
			counts[p.Tier]++
		}
	}
	return counts
}

// Facets lists the distinct values of every facet across entries, sorted
// case-insensitively. Experience is offered as fixed thresholds.
func Facets(entries []*entities.Provider) entities.FacetValues {
	names := []string{
		entities.FacetTier, entities.FacetSpecialty, entities.FacetState, entities.FacetCity,
		entities.FacetClinicianType, entities.FacetCertificationLevel, entities.FacetSpecializations,
		entities.FacetLanguages, entities.FacetPatientTypes, entities.FacetConditionsTreated,
		entities.FacetInsuranceAccepted,
	}

	values := make(map[string][]string, len(names)+1)
	for _, facet := range names {
		seen := make(map[string]bool)
		list := []string{}
		for _, p := range entries {
			for _, v := range facetAttribute(p, facet) {
				v = strings.TrimSpace(v)
				key := strings.ToLower(v)
				if v == "" || seen[key] {
					continue
				}
				seen[key] = true
				list = append(list, v)
			}
		}
		sort.Slice(list, func(i, j int) bool { return strings.ToLower(list[i]) < strings.ToLower(list[j]) })
		values[facet] = list
	}
	values[entities.FacetExperience] = []string{"5+", "10+", "15+", "20+"}

	return entities.FacetValues{Values: values, TierCounts: TierCounts(entries)}
}
