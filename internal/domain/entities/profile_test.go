package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingSummary_FromReviews(t *testing.T) {
	p := &Provider{Reviews: []Review{
		{ID: "a", Rating: 5, Verified: true},
		{ID: "b", Rating: 5},
		{ID: "c", Rating: 4, Verified: true},
		{ID: "d", Rating: 1},
		{ID: "e", Rating: 0},
		{ID: "f", Rating: 9},
	}}

	got := p.RatingSummary()

	assert.Equal(t, 3.8, got.Average)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 2, got.VerifiedReviews)
	assert.Equal(t, []RatingBucket{
		{Stars: 5, Count: 2, Percentage: 50},
		{Stars: 4, Count: 1, Percentage: 25},
		{Stars: 3},
		{Stars: 2},
		{Stars: 1, Count: 1, Percentage: 25},
	}, got.Distribution)
}

func TestRatingSummary_AggregateOverridesSample(t *testing.T) {
	p := &Provider{
		Rating:       4.7,
		TotalReviews: 120,
		Reviews:      []Review{{ID: "a", Rating: 3}},
	}

	got := p.RatingSummary()

	assert.Equal(t, 4.7, got.Average)
	assert.Equal(t, 120, got.Total)
	assert.Equal(t, 100, got.Distribution[2].Percentage)
}

func TestRatingSummary_Unrated(t *testing.T) {
	got := (&Provider{}).RatingSummary()

	assert.Zero(t, got.Average)
	assert.Zero(t, got.Total)
	require.Len(t, got.Distribution, 5)
	for i, b := range got.Distribution {
		assert.Equal(t, 5-i, b.Stars)
		assert.Zero(t, b.Count)
	}
}

func TestProviderDetail_JSONCarriesProfileAndSummary(t *testing.T) {
	p := &Provider{ID: "7", Name: "Dr. Lee", IsVerified: true, Reviews: []Review{{ID: "r", Rating: 4}}}

	raw, err := json.Marshal(NewProviderDetail(p))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "7", decoded["id"])
	assert.Equal(t, true, decoded["is_verified"])
	assert.Len(t, decoded["reviews"], 1)
	summary, ok := decoded["rating_summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 4.0, summary["average"])
}

func TestPopupFor_CarriesRating(t *testing.T) {
	popup := PopupFor(&Provider{ID: "1", Name: "A", Rating: 4.5, TotalReviews: 12, IsVerified: true})

	assert.Equal(t, 4.5, popup.Rating)
	assert.Equal(t, 12, popup.TotalReviews)
	assert.True(t, popup.Verified)
}
