// Package secscore aggregates independent verification factors into a
// single confidence score and risk tier. It is the single source of truth
// for tier thresholds across signup, login, and the security dashboard.
package secscore

// FactorSet records which verification factors were satisfied during a flow.
type FactorSet struct {
	ValidCredentials       bool `json:"valid_credentials"`
	TrustedDevice          bool `json:"trusted_device"`
	RecognizedLocation     bool `json:"recognized_location"`
	AdditionalVerification bool `json:"additional_verification"`
}

// Tier buckets a score into a risk level.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Each factor contributes equally to the score.
const pointsPerFactor = 25

// MaxScore is the score with all factors satisfied.
const MaxScore = 4 * pointsPerFactor

// Result is the aggregated assessment for a completed flow.
type Result struct {
	Score           int       `json:"score"`
	Tier            Tier      `json:"tier"`
	Factors         FactorSet `json:"factors"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// Score sums 25 points per satisfied factor.
func Score(factors FactorSet) int {
	score := 0
	if factors.ValidCredentials {
		score += pointsPerFactor
	}
	if factors.TrustedDevice {
		score += pointsPerFactor
	}
	if factors.RecognizedLocation {
		score += pointsPerFactor
	}
	if factors.AdditionalVerification {
		score += pointsPerFactor
	}
	return score
}

// TierForScore maps a score to its risk tier.
func TierForScore(score int) Tier {
	switch {
	case score >= 75:
		return TierLow
	case score >= 50:
		return TierMedium
	case score >= 25:
		return TierHigh
	default:
		return TierCritical
	}
}

// Assess computes the full result for a factor set. Pure function: the same
// factors always produce the same result.
func Assess(factors FactorSet) Result {
	score := Score(factors)
	return Result{
		Score:           score,
		Tier:            TierForScore(score),
		Factors:         factors,
		Recommendations: recommendations(factors),
	}
}

// recommendations yields one next action per unmet factor, in a fixed order
// so responses stay deterministic.
func recommendations(factors FactorSet) []string {
	var recs []string
	if !factors.ValidCredentials {
		recs = append(recs, "Verify your account credentials")
	}
	if !factors.TrustedDevice {
		recs = append(recs, "Verify this device with a one-time code")
	}
	if !factors.RecognizedLocation {
		recs = append(recs, "Confirm your sign-in location")
	}
	if !factors.AdditionalVerification {
		recs = append(recs, "Complete an additional verification factor")
	}
	return recs
}
