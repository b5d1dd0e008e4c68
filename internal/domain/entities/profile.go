package entities

import (
	"math"
	"time"
)

// BusinessHours is one day's opening window in "HH:mm"
type BusinessHours struct {
	Open  string `json:"open" yaml:"open"`
	Close string `json:"close" yaml:"close"`
}

// Availability maps a lowercase weekday ("monday".."sunday") to its hours.
// Days without an entry are closed.
type Availability map[string]BusinessHours

// Weekdays lists the keys Availability accepts, in calendar order
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Treatment is a service offered by a provider
type Treatment struct {
	Title           string  `json:"title" yaml:"title"`
	Description     string  `json:"description,omitempty" yaml:"description"`
	Price           float64 `json:"price" yaml:"price"`
	DurationMinutes int     `json:"duration_minutes" yaml:"duration_minutes"`
}

// Review is one patient review of a provider
type Review struct {
	ID        string    `json:"id" yaml:"id"`
	Author    string    `json:"author" yaml:"author"`
	Rating    int       `json:"rating" yaml:"rating"`
	Comment   string    `json:"comment,omitempty" yaml:"comment"`
	Condition string    `json:"condition,omitempty" yaml:"condition"`
	Date      time.Time `json:"date" yaml:"date"`
	Verified  bool      `json:"verified" yaml:"verified"`
}

// RatingBucket counts the reviews given one star value
type RatingBucket struct {
	Stars      int `json:"stars"`
	Count      int `json:"count"`
	Percentage int `json:"percentage"`
}

// RatingSummary is the review overview shown on a provider profile
type RatingSummary struct {
	Average         float64        `json:"average"`
	Total           int            `json:"total"`
	VerifiedReviews int            `json:"verified_reviews"`
	Distribution    []RatingBucket `json:"distribution"`
}

// RatingSummary builds the review overview for p. Average and Total come from
// the provider's aggregate rating when one is recorded, since the held
// reviews may be a sample; otherwise they are computed from the reviews.
// Distribution always describes the held reviews, five stars first. Reviews
// rated outside 1-5 are ignored.
func (p *Provider) RatingSummary() RatingSummary {
	summary := RatingSummary{Distribution: make([]RatingBucket, 5)}
	for i := range summary.Distribution {
		summary.Distribution[i].Stars = 5 - i
	}

	counted, sum := 0, 0
	for _, r := range p.Reviews {
		if r.Rating < 1 || r.Rating > 5 {
			continue
		}
		summary.Distribution[5-r.Rating].Count++
		counted++
		sum += r.Rating
		if r.Verified {
			summary.VerifiedReviews++
		}
	}
	if counted > 0 {
		for i := range summary.Distribution {
			summary.Distribution[i].Percentage = int(math.Round(float64(summary.Distribution[i].Count) * 100 / float64(counted)))
		}
	}

	switch {
	case p.Rating > 0:
		summary.Average = p.Rating
	case counted > 0:
		summary.Average = math.Round(float64(sum)/float64(counted)*10) / 10
	}
	summary.Total = p.TotalReviews
	if summary.Total < counted {
		summary.Total = counted
	}
	return summary
}

// ProviderDetail is a single provider profile with its review overview
type ProviderDetail struct {
	*Provider
	RatingSummary RatingSummary `json:"rating_summary"`
}

// NewProviderDetail wraps p with its rating summary
func NewProviderDetail(p *Provider) *ProviderDetail {
	return &ProviderDetail{Provider: p, RatingSummary: p.RatingSummary()}
}
