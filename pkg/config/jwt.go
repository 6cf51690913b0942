package config

import (
	"time"

	"github.com/sosodev/duration"
)

// JWTConfig holds token signing configuration for flow continuation and
// completion tokens.
type JWTConfig struct {
	Secret                string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer                string `env:"JWT_ISSUER" env-default:"verifid"`
	Audience              string `env:"JWT_AUDIENCE" env-default:"verifid"`
	CompletionTokenExpiry string `env:"COMPLETION_TOKEN_EXPIRY" env-default:"PT1H"`
}

// ParseCompletionTokenExpiry parses the completion token expiry duration.
func (j JWTConfig) ParseCompletionTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(j.CompletionTokenExpiry)
}

// parseDurationISO8601 tries to parse duration as ISO8601 first, then Go
// duration.
func parseDurationISO8601(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
