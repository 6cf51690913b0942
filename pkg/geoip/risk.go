package geoip

import "strings"

// Risk scores by familiarity bucket. A fresh account with no history scores
// above the verification threshold on purpose: new users always get a
// location challenge.
const (
	RiskCityMatch    = 10
	RiskCountryMatch = 30
	RiskNewCountry   = 60
	RiskNoHistory    = 75
	RiskDenylisted   = 90

	// VerificationThreshold is the score above which a location OTP
	// challenge is required.
	VerificationThreshold = 70
)

// DefaultDenylist holds the country labels treated as high-risk regardless
// of history. Matching is case-insensitive.
var DefaultDenylist = []string{
	"Anonymous Proxy",
	"Satellite Provider",
	"North Korea",
}

// ScoreRisk rates how familiar the current location is against the user's
// history, 0..100, higher meaning less familiar. The denylist wins over any
// partial history match.
func ScoreRisk(current Sample, history []Sample, denylist []string) int {
	if denylisted(current.Country, denylist) {
		return RiskDenylisted
	}

	if len(history) == 0 {
		return RiskNoHistory
	}

	countryMatch := false
	for _, prior := range history {
		if !strings.EqualFold(prior.Country, current.Country) {
			continue
		}
		countryMatch = true
		if prior.City != "" && strings.EqualFold(prior.City, current.City) {
			return RiskCityMatch
		}
	}
	if countryMatch {
		return RiskCountryMatch
	}
	return RiskNewCountry
}

// VerificationRequired reports whether the risk score demands an OTP
// challenge.
func VerificationRequired(riskScore int) bool {
	return riskScore > VerificationThreshold
}

func denylisted(country string, denylist []string) bool {
	for _, entry := range denylist {
		if strings.EqualFold(entry, country) {
			return true
		}
	}
	return false
}
