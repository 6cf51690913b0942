package geoip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleAt(city, country string) Sample {
	return Sample{City: city, Country: country}
}

func TestScoreRisk(t *testing.T) {
	history := []Sample{
		sampleAt("Lisbon", "Portugal"),
		sampleAt("Porto", "Portugal"),
	}

	tests := []struct {
		name    string
		current Sample
		history []Sample
		want    int
	}{
		{"no history", sampleAt("Lisbon", "Portugal"), nil, RiskNoHistory},
		{"city match", sampleAt("Lisbon", "Portugal"), history, RiskCityMatch},
		{"city match case-insensitive", sampleAt("LISBON", "PORTUGAL"), history, RiskCityMatch},
		{"country match only", sampleAt("Faro", "Portugal"), history, RiskCountryMatch},
		{"new country", sampleAt("Madrid", "Spain"), history, RiskNewCountry},
		{"denylisted", sampleAt("Pyongyang", "North Korea"), history, RiskDenylisted},
		{"denylisted beats no history", sampleAt("", "Anonymous Proxy"), nil, RiskDenylisted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreRisk(tt.current, tt.history, DefaultDenylist))
		})
	}
}

func TestScoreRiskMonotonicity(t *testing.T) {
	history := []Sample{sampleAt("Lisbon", "Portugal")}

	cityScore := ScoreRisk(sampleAt("Lisbon", "Portugal"), history, DefaultDenylist)
	noHistoryScore := ScoreRisk(sampleAt("Lisbon", "Portugal"), nil, DefaultDenylist)
	denylistScore := ScoreRisk(sampleAt("Pyongyang", "North Korea"), history, DefaultDenylist)

	assert.Less(t, cityScore, noHistoryScore)
	assert.Less(t, noHistoryScore, denylistScore)
}

func TestVerificationRequired(t *testing.T) {
	assert.False(t, VerificationRequired(RiskCityMatch))
	assert.False(t, VerificationRequired(RiskCountryMatch))
	assert.False(t, VerificationRequired(RiskNewCountry))
	assert.False(t, VerificationRequired(VerificationThreshold))
	assert.True(t, VerificationRequired(RiskNoHistory))
	assert.True(t, VerificationRequired(RiskDenylisted))
}

func TestDenylistBeatsHistoryMatch(t *testing.T) {
	// Even with a matching entry in history, a denylisted country stays
	// high-risk.
	history := []Sample{sampleAt("Pyongyang", "North Korea")}
	score := ScoreRisk(sampleAt("Pyongyang", "North Korea"), history, DefaultDenylist)
	assert.Equal(t, RiskDenylisted, score)
	assert.True(t, VerificationRequired(score))
}

func TestHaversineDistanceKm(t *testing.T) {
	lisbon := Coordinates{Latitude: 38.7223, Longitude: -9.1393}
	porto := Coordinates{Latitude: 41.1579, Longitude: -8.6291}
	madrid := Coordinates{Latitude: 40.4168, Longitude: -3.7038}

	assert.InDelta(t, 0, HaversineDistanceKm(lisbon, lisbon), 0.001)
	// Lisbon to Porto is roughly 274 km by great circle.
	assert.InDelta(t, 274, HaversineDistanceKm(lisbon, porto), 10)
	// Distance is symmetric.
	assert.InDelta(t, HaversineDistanceKm(lisbon, madrid), HaversineDistanceKm(madrid, lisbon), 0.001)
}

func TestWithinKm(t *testing.T) {
	lisbon := Coordinates{Latitude: 38.7223, Longitude: -9.1393}
	nearby := Coordinates{Latitude: 38.75, Longitude: -9.2}
	porto := Coordinates{Latitude: 41.1579, Longitude: -8.6291}

	assert.True(t, WithinKm(lisbon, nearby, ProximityRadiusKm))
	assert.False(t, WithinKm(lisbon, porto, ProximityRadiusKm))
}
