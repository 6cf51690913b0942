package config

import (
	"time"
)

// OtpConfig tunes challenge issuance.
type OtpConfig struct {
	Expiry           string  `env:"OTP_EXPIRY" env-default:"PT10M"`
	ResendCapacity   int     `env:"OTP_RESEND_CAPACITY" env-default:"5"`
	ResendRefillRate float64 `env:"OTP_RESEND_REFILL_RATE" env-default:"0.0167"` // ~1 per minute
}

// ParseExpiry parses the challenge lifetime.
func (o OtpConfig) ParseExpiry() (time.Duration, error) {
	return parseDurationISO8601(o.Expiry)
}

// DeviceConfig tunes device trust and matching.
type DeviceConfig struct {
	TrustDays int `env:"DEVICE_TRUST_DAYS" env-default:"90"`

	// MatchPolicy is "any" (one matching component suffices) or "two"
	// (at least two components must match).
	MatchPolicy string `env:"DEVICE_MATCH_POLICY" env-default:"any"`

	// MigrationDeadline closes the legacy-to-hybrid continuity allowance.
	// RFC 3339; empty leaves the window open.
	MigrationDeadline string `env:"DEVICE_MIGRATION_DEADLINE"`
}

// ParseMigrationDeadline parses the deadline, returning the zero time when
// unset.
func (d DeviceConfig) ParseMigrationDeadline() (time.Time, error) {
	if d.MigrationDeadline == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, d.MigrationDeadline)
}

// GeoConfig points at the IP geolocation provider.
type GeoConfig struct {
	ProviderURL string `env:"GEO_PROVIDER_URL" env-default:"http://ip-api.com/json"`
	Timeout     string `env:"GEO_TIMEOUT" env-default:"PT5S"`

	// Denylist is a comma-separated list of high-risk countries. Empty
	// keeps the built-in default.
	Denylist string `env:"GEO_COUNTRY_DENYLIST"`
}

// ParseTimeout parses the provider timeout.
func (g GeoConfig) ParseTimeout() (time.Duration, error) {
	return parseDurationISO8601(g.Timeout)
}

// RateLimitConfig bounds request rates on the verification endpoints.
type RateLimitConfig struct {
	PerIPEnabled    bool    `env:"RATELIMIT_PER_IP_ENABLED" env-default:"true"`
	PerIPCapacity   int     `env:"RATELIMIT_PER_IP_CAPACITY" env-default:"60"`
	PerIPRefillRate float64 `env:"RATELIMIT_PER_IP_REFILL_RATE" env-default:"1.0"` // ~60 per minute
}
